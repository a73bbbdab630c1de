// Copyright (C) 2025, Floorfi Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gate implements the transfer policy for the fee token: burn and
// fee rates in basis points, free participants, unrestricted controllers
// and the allowed-pool-token list that keeps liquidity in sanctioned pools.
package gate

import (
	"errors"
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"

	"github.com/floorfi/floorkit/access"
	"github.com/floorfi/floorkit/gated"
)

var (
	ErrInvalidParameters         = errors.New("rates exceed 100 percent")
	ErrPoolNotApproved           = errors.New("pool counter asset not approved")
	ErrNotUnrestrictedController = errors.New("caller is not an unrestricted controller")
)

// PoolRegistry reports the constituent tokens of a known AMM pair. The
// factory satisfies this.
type PoolRegistry interface {
	KnownPool(pair common.Address) (token0, token1 common.Address, ok bool)
}

// Parameters are the gate's fee configuration, all rates in basis points
// of the transfer amount.
type Parameters struct {
	Dev      common.Address
	Reserve  common.Address
	PoolRate uint32
	BurnRate uint32
	DevRate  uint32
}

// Gate decides the fate of every public fee-token transfer. It never moves
// funds itself; it returns burn and redirect instructions the token ledger
// applies atomically.
type Gate struct {
	access.Owned

	mu               sync.RWMutex
	params           Parameters
	freeParticipants map[common.Address]bool
	unrestricted     bool

	allowedPoolTokens []common.Address
	allowedSet        map[common.Address]bool

	unrestrictedControllers access.Controllers

	registry PoolRegistry
}

// New creates a gate with zero rates. The registry may be nil until the
// factory exists; pool checks are skipped without one.
func New(owner common.Address, registry PoolRegistry) *Gate {
	g := &Gate{
		freeParticipants: make(map[common.Address]bool),
		allowedSet:       make(map[common.Address]bool),
		registry:         registry,
	}
	g.Init(owner)
	return g
}

// SetRegistry installs the pool registry. Owner only.
func (g *Gate) SetRegistry(caller common.Address, registry PoolRegistry) error {
	if err := g.CheckOwner(caller); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.registry = registry
	return nil
}

// SetParameters configures fee targets and rates. Owner only. The combined
// rate is validated here so HandleTransfer can assume it never exceeds the
// transfer amount.
func (g *Gate) SetParameters(caller common.Address, params Parameters) error {
	if err := g.CheckOwner(caller); err != nil {
		return err
	}
	if params.PoolRate+params.BurnRate+params.DevRate > gated.BasisPoints {
		return ErrInvalidParameters
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.params = params
	return nil
}

// Parameters returns the current configuration.
func (g *Gate) Parameters() Parameters {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.params
}

// SetFreeParticipant exempts an address from fees and pool checks on
// either side of a transfer. Owner only.
func (g *Gate) SetFreeParticipant(caller, participant common.Address, free bool) error {
	if err := g.CheckOwner(caller); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if free {
		g.freeParticipants[participant] = true
	} else {
		delete(g.freeParticipants, participant)
	}
	return nil
}

// SetUnrestrictedController grants or revokes the ability to toggle
// unrestricted mode. Owner only; the owner is not implicitly a controller.
func (g *Gate) SetUnrestrictedController(caller, controller common.Address, allowed bool) error {
	if err := g.CheckOwner(caller); err != nil {
		return err
	}
	g.unrestrictedControllers.Set(controller, allowed)
	return nil
}

// SetUnrestricted toggles unrestricted mode, under which every transfer
// passes untouched. Unrestricted controllers only.
func (g *Gate) SetUnrestricted(caller common.Address, on bool) error {
	if !g.unrestrictedControllers.Has(caller) {
		return ErrNotUnrestrictedController
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unrestricted = on
	return nil
}

// Unrestricted reports whether unrestricted mode is on.
func (g *Gate) Unrestricted() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.unrestricted
}

// AllowPool approves or revokes a counter asset for liquidity pools of the
// gated token. Owner only. Insertion order is preserved.
func (g *Gate) AllowPool(caller, counterToken common.Address, allowed bool) error {
	if err := g.CheckOwner(caller); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if allowed {
		if !g.allowedSet[counterToken] {
			g.allowedSet[counterToken] = true
			g.allowedPoolTokens = append(g.allowedPoolTokens, counterToken)
		}
		return nil
	}
	if g.allowedSet[counterToken] {
		delete(g.allowedSet, counterToken)
		for i, tok := range g.allowedPoolTokens {
			if tok == counterToken {
				g.allowedPoolTokens = append(g.allowedPoolTokens[:i], g.allowedPoolTokens[i+1:]...)
				break
			}
		}
	}
	return nil
}

// AllowedPoolTokens returns the approved counter assets in insertion order.
func (g *Gate) AllowedPoolTokens() []common.Address {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]common.Address, len(g.allowedPoolTokens))
	copy(out, g.allowedPoolTokens)
	return out
}

// HandleTransfer implements gated.TransferGate.
func (g *Gate) HandleTransfer(token, from, to common.Address, amount *big.Int) (*big.Int, []gated.TransferTarget, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.unrestricted || g.freeParticipants[from] || g.freeParticipants[to] {
		return big.NewInt(0), nil, nil
	}

	if err := g.checkPoolLocked(token, from); err != nil {
		return nil, nil, err
	}
	if err := g.checkPoolLocked(token, to); err != nil {
		return nil, nil, err
	}

	burn := cut(amount, g.params.BurnRate)
	var targets []gated.TransferTarget
	if poolFee := cut(amount, g.params.PoolRate); poolFee.Sign() > 0 {
		targets = append(targets, gated.TransferTarget{Destination: g.params.Reserve, Amount: poolFee})
	}
	if devFee := cut(amount, g.params.DevRate); devFee.Sign() > 0 {
		targets = append(targets, gated.TransferTarget{Destination: g.params.Dev, Amount: devFee})
	}
	return burn, targets, nil
}

// checkPoolLocked refuses transfers touching a known pool of the gated
// token whose counter asset is not approved.
func (g *Gate) checkPoolLocked(token, participant common.Address) error {
	if g.registry == nil {
		return nil
	}
	token0, token1, ok := g.registry.KnownPool(participant)
	if !ok {
		return nil
	}
	var counter common.Address
	switch token {
	case token0:
		counter = token1
	case token1:
		counter = token0
	default:
		// Pool of two other assets; not this gate's concern.
		return nil
	}
	if !g.allowedSet[counter] {
		return ErrPoolNotApproved
	}
	return nil
}

func cut(amount *big.Int, rate uint32) *big.Int {
	c := new(big.Int).Mul(amount, big.NewInt(int64(rate)))
	return c.Div(c, big.NewInt(gated.BasisPoints))
}
