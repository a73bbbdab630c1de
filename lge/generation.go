// Copyright (C) 2025, Floorfi Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package lge

import (
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/floorfi/floorkit/access"
	"github.com/floorfi/floorkit/contract"
	"github.com/floorfi/floorkit/gated"
)

// LiquidityGeneration fronts the distribution: it collects native coin
// while holding the entire economy token supply, and hands both over to
// the distribution on completion. Swapping the distribution mid-flight
// opens a refund window so contributors unhappy with the switch can exit
// before their coin is committed.
type LiquidityGeneration struct {
	access.Owned

	addr    common.Address
	log     log.Logger
	economy *gated.Token

	// Seconds contributors get to exit after a distribution swap.
	refundWindow uint64

	mu             sync.Mutex
	active         bool
	completed      bool
	refunding      bool
	refundDeadline uint64
	dist           *Distribution

	contributors  []common.Address
	contributions map[common.Address]*big.Int
	totalRaised   *big.Int
}

// NewLiquidityGeneration creates an inactive generation contract.
func NewLiquidityGeneration(addr, owner common.Address, logger log.Logger, economy *gated.Token, refundWindow uint64) *LiquidityGeneration {
	g := &LiquidityGeneration{
		addr:          addr,
		log:           logger,
		economy:       economy,
		refundWindow:  refundWindow,
		contributions: make(map[common.Address]*big.Int),
		totalRaised:   big.NewInt(0),
	}
	g.Init(owner)
	return g
}

func (g *LiquidityGeneration) Address() common.Address { return g.addr }

// IsActive reports whether contributions are open.
func (g *LiquidityGeneration) IsActive() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// TotalRaised returns the native coin collected so far.
func (g *LiquidityGeneration) TotalRaised() *big.Int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return new(big.Int).Set(g.totalRaised)
}

// Contribution returns what a contributor has paid in and not refunded.
func (g *LiquidityGeneration) Contribution(contributor common.Address) *big.Int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.contributions[contributor]; ok {
		return new(big.Int).Set(c)
	}
	return big.NewInt(0)
}

// Activate opens the contribution window. Owner only. The contract must
// hold the entire economy supply so completion can hand all of it over.
func (g *LiquidityGeneration) Activate(caller common.Address, dist *Distribution) error {
	if err := g.CheckOwner(caller); err != nil {
		return err
	}
	if dist == nil {
		return ErrInvalidParameters
	}
	supply := g.economy.TotalSupply()
	if supply.Sign() == 0 || g.economy.BalanceOf(g.addr).Cmp(supply) < 0 {
		return ErrMissingSupply
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active || g.completed {
		return ErrWrongState
	}
	g.active = true
	g.dist = dist
	if g.log != nil {
		g.log.Info("liquidity generation activated", "addr", g.addr, "supply", supply)
	}
	return nil
}

// Contribute accepts native coin while active.
func (g *LiquidityGeneration) Contribute(stateDB contract.StateDB, contributor common.Address, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return contract.ErrNegativeAmount
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.active || g.refunding {
		return ErrNotActive
	}
	if err := contract.TransferNative(stateDB, contributor, g.addr, amount); err != nil {
		return err
	}
	cur, ok := g.contributions[contributor]
	if !ok {
		g.contributors = append(g.contributors, contributor)
		cur = big.NewInt(0)
	}
	g.contributions[contributor] = new(big.Int).Add(cur, amount)
	g.totalRaised = new(big.Int).Add(g.totalRaised, amount)
	return nil
}

// SetDistribution swaps the downstream distribution while active. Owner
// only. Opens the refund window: completion is refused until it passes,
// and contributors may claim their coin back in the meantime.
func (g *LiquidityGeneration) SetDistribution(stateDB contract.StateDB, caller common.Address, dist *Distribution) error {
	if err := g.CheckOwner(caller); err != nil {
		return err
	}
	if dist == nil {
		return ErrInvalidParameters
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.active {
		return ErrNotActive
	}
	g.dist = dist
	g.refundDeadline = stateDB.GetTimestamp() + g.refundWindow
	if g.log != nil {
		g.log.Warn("distribution swapped, refund window open",
			"addr", g.addr, "deadline", g.refundDeadline)
	}
	return nil
}

// AllowRefunds abandons the generation. Owner only, active only.
func (g *LiquidityGeneration) AllowRefunds(caller common.Address) error {
	if err := g.CheckOwner(caller); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.active {
		return ErrNotActive
	}
	g.active = false
	g.refunding = true
	if g.log != nil {
		g.log.Warn("liquidity generation broken, refunds open", "addr", g.addr, "raised", g.totalRaised)
	}
	return nil
}

// Complete hands everything to the distribution: the remaining native
// coin, the economy supply, and the contribution ledger. Owner only,
// refused while a refund window is open.
func (g *LiquidityGeneration) Complete(stateDB contract.StateDB, caller common.Address) error {
	if err := g.CheckOwner(caller); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.active {
		return ErrNotActive
	}
	if g.refundDeadline > 0 && stateDB.GetTimestamp() < g.refundDeadline {
		return ErrRefundWindow
	}

	for _, contributor := range g.contributors {
		amount := g.contributions[contributor]
		if amount.Sign() == 0 {
			continue
		}
		if err := g.dist.CreditContribution(g.addr, contributor, amount); err != nil {
			return err
		}
	}
	if balance := stateDB.GetBalance(g.addr).ToBig(); balance.Sign() > 0 {
		if err := contract.TransferNative(stateDB, g.addr, g.dist.Address(), balance); err != nil {
			return err
		}
	}
	if held := g.economy.BalanceOf(g.addr); held.Sign() > 0 {
		if err := g.economy.Transfer(stateDB, g.addr, g.dist.Address(), held); err != nil {
			return err
		}
	}

	g.active = false
	g.completed = true
	if g.log != nil {
		g.log.Info("liquidity generation complete", "addr", g.addr,
			"raised", g.totalRaised, "contributors", len(g.contributors))
	}
	return nil
}

// Claim routes a contributor's stake. After completion it forwards to
// the distribution's claim; in refund mode it pays the recorded
// contribution back exactly once.
func (g *LiquidityGeneration) Claim(stateDB contract.StateDB, contributor common.Address) error {
	g.mu.Lock()
	if g.completed {
		dist := g.dist
		g.mu.Unlock()
		return dist.Claim(stateDB, contributor)
	}
	defer g.mu.Unlock()

	if !g.refunding && !(g.refundDeadline > 0 && stateDB.GetTimestamp() < g.refundDeadline) {
		return ErrNotComplete
	}
	amount, ok := g.contributions[contributor]
	if !ok || amount.Sign() == 0 {
		return ErrNothingToClaim
	}
	g.contributions[contributor] = big.NewInt(0)
	g.totalRaised = new(big.Int).Sub(g.totalRaised, amount)
	return contract.TransferNative(stateDB, g.addr, contributor, amount)
}
