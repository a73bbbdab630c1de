// Copyright (C) 2025, Floorfi Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package lge implements the launch of the economy: a liquidity
// generation window that collects native coin, and a distribution state
// machine that converts the raised coin into backed liquidity and hands
// contributors their share as wrapped LP tokens.
package lge

import (
	"errors"
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/floorfi/floorkit/access"
	"github.com/floorfi/floorkit/amm"
	"github.com/floorfi/floorkit/backing"
	"github.com/floorfi/floorkit/contract"
	"github.com/floorfi/floorkit/gated"
)

var (
	ErrWrongState        = errors.New("operation not valid in current state")
	ErrNotActive         = errors.New("contributions are not open")
	ErrNotGeneration     = errors.New("caller is not the generation contract")
	ErrNotComplete       = errors.New("distribution is not complete")
	ErrNothingToClaim    = errors.New("nothing to claim")
	ErrEverythingsFine   = errors.New("refunds are not enabled")
	ErrAlreadyClaimed    = errors.New("refund already claimed")
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrMissingSupply     = errors.New("full token supply not on hand")
	ErrRefundWindow      = errors.New("refund window still open")
)

// TreasuryCutBps is the share of raised coin taken for the treasury,
// in basis points.
const TreasuryCutBps = 1000

// State is the distribution lifecycle position.
type State uint8

const (
	StateSetup State = iota
	StateReady
	StateActivated
	StateCompleting
	StateComplete
	StateBroken
)

func (s State) String() string {
	switch s {
	case StateSetup:
		return "setup"
	case StateReady:
		return "ready"
	case StateActivated:
		return "activated"
	case StateCompleting:
		return "completing"
	case StateComplete:
		return "complete"
	case StateBroken:
		return "broken"
	default:
		return "unknown"
	}
}

// Fixed-order jenga phases. The cursor persists across Complete calls so
// a resumed run never repeats a finished phase.
const (
	phaseTreasuryCut = iota
	phaseWrapCoin
	phaseBuySecondary
	phaseSecondaryLiquidity
	phaseBackedLiquidity
	phaseWrapPositions
	phaseCreditContributors
)

// DistributionConfig carries the fixed collaborators and rates.
type DistributionConfig struct {
	Logger    log.Logger
	Economy   *gated.Token
	Wrapped   *gated.WrappedCoin
	Backed    *backing.Vault
	Secondary *gated.Token
	Factory   *amm.Factory
	Router    *amm.Router
	Treasury  common.Address

	// SecondaryBuyRate is the share of minted backed coin spent buying
	// the secondary asset; SecondaryPairRate the share of the economy
	// supply paired against it. Both in basis points.
	SecondaryBuyRate  uint32
	SecondaryPairRate uint32
}

type claimShare struct {
	wrappedBacked    *big.Int
	wrappedSecondary *big.Int
	economy          *big.Int
}

// Distribution converts raised native coin into backed liquidity. The
// whole run is resumable: Complete executes the phases behind a
// persisted cursor, crediting contributors in bounded batches, so a
// partial run picks up exactly where it stopped.
type Distribution struct {
	access.Owned

	addr common.Address
	log  log.Logger

	economy   *gated.Token
	wrapped   *gated.WrappedCoin
	backed    *backing.Vault
	secondary *gated.Token
	factory   *amm.Factory
	router    *amm.Router
	treasury  common.Address

	secondaryBuyRate  uint32
	secondaryPairRate uint32

	mu         sync.Mutex
	state      State
	generation common.Address

	backedPair       *amm.Pair
	secondaryPair    *amm.Pair
	wrappedBacked    *backing.Vault
	wrappedSecondary *backing.Vault

	contributors  []common.Address
	contributions map[common.Address]*big.Int
	totalRaised   *big.Int

	phase int
	index int

	totalWrappedBacked    *big.Int
	totalWrappedSecondary *big.Int
	totalEconomy          *big.Int

	creditedWrappedBacked    *big.Int
	creditedWrappedSecondary *big.Int
	creditedEconomy          *big.Int

	claims   map[common.Address]*claimShare
	refunded map[common.Address]bool
}

// NewDistribution creates the distribution in Setup state.
func NewDistribution(addr, owner common.Address, cfg DistributionConfig) (*Distribution, error) {
	if cfg.Economy == nil || cfg.Wrapped == nil || cfg.Backed == nil ||
		cfg.Factory == nil || cfg.Router == nil {
		return nil, ErrInvalidParameters
	}
	if cfg.SecondaryBuyRate > gated.BasisPoints || cfg.SecondaryPairRate > gated.BasisPoints {
		return nil, ErrInvalidParameters
	}
	if cfg.SecondaryBuyRate > 0 && cfg.Secondary == nil {
		return nil, ErrInvalidParameters
	}
	d := &Distribution{
		addr:              addr,
		log:               cfg.Logger,
		economy:           cfg.Economy,
		wrapped:           cfg.Wrapped,
		backed:            cfg.Backed,
		secondary:         cfg.Secondary,
		factory:           cfg.Factory,
		router:            cfg.Router,
		treasury:          cfg.Treasury,
		secondaryBuyRate:  cfg.SecondaryBuyRate,
		secondaryPairRate: cfg.SecondaryPairRate,

		totalRaised:              big.NewInt(0),
		totalWrappedBacked:       big.NewInt(0),
		totalWrappedSecondary:    big.NewInt(0),
		totalEconomy:             big.NewInt(0),
		creditedWrappedBacked:    big.NewInt(0),
		creditedWrappedSecondary: big.NewInt(0),
		creditedEconomy:          big.NewInt(0),

		contributions: make(map[common.Address]*big.Int),
		claims:        make(map[common.Address]*claimShare),
		refunded:      make(map[common.Address]bool),
	}
	d.Init(owner)
	return d, nil
}

func (d *Distribution) Address() common.Address { return d.addr }

// State returns the current lifecycle position.
func (d *Distribution) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// IsComplete reports whether every phase has run and contributors can
// claim.
func (d *Distribution) IsComplete() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == StateComplete
}

// TotalRaised returns the native coin credited so far.
func (d *Distribution) TotalRaised() *big.Int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return new(big.Int).Set(d.totalRaised)
}

// Setup1 creates the economy/backed-coin pair. Owner only, Setup state.
func (d *Distribution) Setup1(caller common.Address) error {
	if err := d.CheckOwner(caller); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateSetup || d.backedPair != nil {
		return ErrWrongState
	}
	pair, err := d.factory.CreatePair(d.economy, d.backed)
	if err != nil {
		return err
	}
	d.backedPair = pair
	return nil
}

// Setup2 creates the economy/secondary pair. Owner only, Setup state.
// Skipped entirely when no secondary asset is configured.
func (d *Distribution) Setup2(caller common.Address) error {
	if err := d.CheckOwner(caller); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateSetup || d.secondaryPair != nil {
		return ErrWrongState
	}
	if d.secondary == nil {
		return ErrInvalidParameters
	}
	pair, err := d.factory.CreatePair(d.economy, d.secondary)
	if err != nil {
		return err
	}
	d.secondaryPair = pair
	return nil
}

// Setup3 installs the wrapped-LP vaults and grants the approvals the
// jenga run needs, then moves to Ready. The secondary vault may be nil
// when no secondary leg is configured.
func (d *Distribution) Setup3(stateDB contract.StateDB, caller common.Address, wrappedBacked, wrappedSecondary *backing.Vault) error {
	if err := d.CheckOwner(caller); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateSetup || d.backedPair == nil {
		return ErrWrongState
	}
	if wrappedBacked == nil {
		return ErrInvalidParameters
	}
	if d.secondary != nil && (d.secondaryPair == nil || wrappedSecondary == nil) {
		return ErrInvalidParameters
	}

	d.wrappedBacked = wrappedBacked
	d.wrappedSecondary = wrappedSecondary

	if err := d.backedPair.Approve(stateDB, d.addr, wrappedBacked.Address(), gated.MaxUint256); err != nil {
		return err
	}
	if d.secondaryPair != nil {
		if err := d.secondaryPair.Approve(stateDB, d.addr, wrappedSecondary.Address(), gated.MaxUint256); err != nil {
			return err
		}
	}
	if err := d.wrapped.Approve(stateDB, d.addr, d.backed.Address(), gated.MaxUint256); err != nil {
		return err
	}

	d.state = StateReady
	if d.log != nil {
		d.log.Info("distribution ready", "addr", d.addr)
	}
	return nil
}

// SetGeneration registers the generation contract allowed to credit
// contributions on behalf of its own contributors. Owner only.
func (d *Distribution) SetGeneration(caller, generation common.Address) error {
	if err := d.CheckOwner(caller); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.generation = generation
	return nil
}

// Activate opens the contribution window. Owner only, Ready state.
func (d *Distribution) Activate(caller common.Address) error {
	if err := d.CheckOwner(caller); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateReady {
		return ErrWrongState
	}
	d.state = StateActivated
	if d.log != nil {
		d.log.Info("distribution activated", "addr", d.addr)
	}
	return nil
}

// Contribute accepts native coin from a contributor while activated.
func (d *Distribution) Contribute(stateDB contract.StateDB, contributor common.Address, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return contract.ErrNegativeAmount
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateActivated {
		return ErrNotActive
	}
	if err := contract.TransferNative(stateDB, contributor, d.addr, amount); err != nil {
		return err
	}
	d.recordLocked(contributor, amount)
	return nil
}

// CreditContribution records a contribution collected by the generation
// contract. The matching native coin arrives separately when the
// generation forwards its balance.
func (d *Distribution) CreditContribution(caller, contributor common.Address, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return contract.ErrNegativeAmount
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.generation == (common.Address{}) || caller != d.generation {
		return ErrNotGeneration
	}
	if d.state != StateActivated {
		return ErrNotActive
	}
	d.recordLocked(contributor, amount)
	return nil
}

func (d *Distribution) recordLocked(contributor common.Address, amount *big.Int) {
	cur, ok := d.contributions[contributor]
	if !ok {
		d.contributors = append(d.contributors, contributor)
		cur = big.NewInt(0)
	}
	d.contributions[contributor] = new(big.Int).Add(cur, amount)
	d.totalRaised = new(big.Int).Add(d.totalRaised, amount)
}

// AllowRefunds abandons the distribution. Owner only, Activated state.
// Terminal: contributors recover their coin through ClaimRefund.
func (d *Distribution) AllowRefunds(caller common.Address) error {
	if err := d.CheckOwner(caller); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateActivated {
		return ErrWrongState
	}
	d.state = StateBroken
	if d.log != nil {
		d.log.Warn("distribution broken, refunds open", "addr", d.addr, "raised", d.totalRaised)
	}
	return nil
}

// Complete drives the jenga sequence. Owner only. The first call moves
// Activated to Completing and runs the conversion phases; contributor
// crediting then proceeds in batches of at most jengaSteps per call
// (0 meaning all). The final batch settles dust to the owner and moves
// to Complete.
func (d *Distribution) Complete(stateDB contract.StateDB, caller common.Address, jengaSteps int) error {
	if err := d.CheckOwner(caller); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state {
	case StateActivated:
		d.state = StateCompleting
	case StateCompleting:
	default:
		return ErrWrongState
	}

	for d.phase < phaseCreditContributors {
		if err := d.runPhaseLocked(stateDB, d.phase); err != nil {
			return err
		}
		if d.log != nil {
			d.log.Info("distribution phase done", "addr", d.addr, "phase", d.phase)
		}
		d.phase++
	}

	limit := len(d.contributors)
	if jengaSteps > 0 && d.index+jengaSteps < limit {
		limit = d.index + jengaSteps
	}
	for ; d.index < limit; d.index++ {
		d.creditLocked(d.contributors[d.index])
	}
	if d.index < len(d.contributors) {
		return nil
	}
	return d.finishLocked(stateDB)
}

func (d *Distribution) runPhaseLocked(stateDB contract.StateDB, phase int) error {
	switch phase {
	case phaseTreasuryCut:
		cut := new(big.Int).Mul(d.totalRaised, big.NewInt(TreasuryCutBps))
		cut.Div(cut, big.NewInt(gated.BasisPoints))
		if cut.Sign() == 0 {
			return nil
		}
		if err := d.wrapped.Deposit(stateDB, d.addr, cut); err != nil {
			return err
		}
		return d.wrapped.Transfer(stateDB, d.addr, d.treasury, cut)

	case phaseWrapCoin:
		rest := stateDB.GetBalance(d.addr).ToBig()
		if rest.Sign() == 0 {
			return nil
		}
		if err := d.wrapped.Deposit(stateDB, d.addr, rest); err != nil {
			return err
		}
		return d.backed.DepositTokens(stateDB, d.addr, rest)

	case phaseBuySecondary:
		if d.secondaryBuyRate == 0 {
			return nil
		}
		buy := new(big.Int).Mul(d.backed.BalanceOf(d.addr), big.NewInt(int64(d.secondaryBuyRate)))
		buy.Div(buy, big.NewInt(gated.BasisPoints))
		if buy.Sign() == 0 {
			return nil
		}
		_, err := d.router.SwapExactTokensForTokens(
			stateDB, d.addr, buy, big.NewInt(0),
			[]amm.Token{d.backed, d.secondary}, d.addr)
		return err

	case phaseSecondaryLiquidity:
		if d.secondaryPairRate == 0 || d.secondary == nil {
			return nil
		}
		economySide := new(big.Int).Mul(d.economy.BalanceOf(d.addr), big.NewInt(int64(d.secondaryPairRate)))
		economySide.Div(economySide, big.NewInt(gated.BasisPoints))
		secondarySide := d.secondary.BalanceOf(d.addr)
		if economySide.Sign() == 0 || secondarySide.Sign() == 0 {
			return nil
		}
		_, _, _, err := d.router.AddLiquidity(
			stateDB, d.addr, d.economy, d.secondary, economySide, secondarySide, d.addr)
		return err

	case phaseBackedLiquidity:
		economySide := d.economy.BalanceOf(d.addr)
		backedSide := d.backed.BalanceOf(d.addr)
		if economySide.Sign() == 0 || backedSide.Sign() == 0 {
			return nil
		}
		_, _, _, err := d.router.AddLiquidity(
			stateDB, d.addr, d.economy, d.backed, economySide, backedSide, d.addr)
		return err

	case phaseWrapPositions:
		if lp := d.backedPair.BalanceOf(d.addr); lp.Sign() > 0 {
			if err := d.wrappedBacked.DepositTokens(stateDB, d.addr, lp); err != nil {
				return err
			}
		}
		if d.secondaryPair != nil {
			if lp := d.secondaryPair.BalanceOf(d.addr); lp.Sign() > 0 {
				if err := d.wrappedSecondary.DepositTokens(stateDB, d.addr, lp); err != nil {
					return err
				}
			}
		}
		d.totalWrappedBacked = d.wrappedBacked.BalanceOf(d.addr)
		if d.wrappedSecondary != nil {
			d.totalWrappedSecondary = d.wrappedSecondary.BalanceOf(d.addr)
		}
		d.totalEconomy = d.economy.BalanceOf(d.addr)
		return nil
	}
	return nil
}

// creditLocked assigns a contributor's pro-rata share of each payout
// asset. Integer division; the dust settles to the owner at the end.
func (d *Distribution) creditLocked(contributor common.Address) {
	contribution := d.contributions[contributor]
	share := &claimShare{
		wrappedBacked:    prorate(d.totalWrappedBacked, contribution, d.totalRaised),
		wrappedSecondary: prorate(d.totalWrappedSecondary, contribution, d.totalRaised),
		economy:          prorate(d.totalEconomy, contribution, d.totalRaised),
	}
	d.claims[contributor] = share
	d.creditedWrappedBacked.Add(d.creditedWrappedBacked, share.wrappedBacked)
	d.creditedWrappedSecondary.Add(d.creditedWrappedSecondary, share.wrappedSecondary)
	d.creditedEconomy.Add(d.creditedEconomy, share.economy)
}

func prorate(total, contribution, raised *big.Int) *big.Int {
	if total.Sign() == 0 || raised.Sign() == 0 {
		return big.NewInt(0)
	}
	share := new(big.Int).Mul(total, contribution)
	return share.Div(share, raised)
}

func (d *Distribution) finishLocked(stateDB contract.StateDB) error {
	owner := d.Owner()
	if dust := new(big.Int).Sub(d.totalWrappedBacked, d.creditedWrappedBacked); dust.Sign() > 0 {
		if err := d.wrappedBacked.Transfer(stateDB, d.addr, owner, dust); err != nil {
			return err
		}
	}
	if d.wrappedSecondary != nil {
		if dust := new(big.Int).Sub(d.totalWrappedSecondary, d.creditedWrappedSecondary); dust.Sign() > 0 {
			if err := d.wrappedSecondary.Transfer(stateDB, d.addr, owner, dust); err != nil {
				return err
			}
		}
	}
	if dust := new(big.Int).Sub(d.totalEconomy, d.creditedEconomy); dust.Sign() > 0 {
		if err := d.economy.Transfer(stateDB, d.addr, owner, dust); err != nil {
			return err
		}
	}
	d.state = StateComplete
	if d.log != nil {
		d.log.Info("distribution complete", "addr", d.addr,
			"raised", d.totalRaised, "contributors", len(d.contributors),
			"wrappedBacked", d.totalWrappedBacked, "wrappedSecondary", d.totalWrappedSecondary)
	}
	return nil
}

// Claim pays a contributor's credited share once. Complete state only.
func (d *Distribution) Claim(stateDB contract.StateDB, contributor common.Address) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateComplete {
		return ErrNotComplete
	}
	share, ok := d.claims[contributor]
	if !ok {
		return ErrNothingToClaim
	}

	if share.wrappedBacked.Sign() > 0 {
		if err := d.wrappedBacked.Transfer(stateDB, d.addr, contributor, share.wrappedBacked); err != nil {
			return err
		}
	}
	if share.wrappedSecondary.Sign() > 0 {
		if err := d.wrappedSecondary.Transfer(stateDB, d.addr, contributor, share.wrappedSecondary); err != nil {
			return err
		}
	}
	if share.economy.Sign() > 0 {
		if err := d.economy.Transfer(stateDB, d.addr, contributor, share.economy); err != nil {
			return err
		}
	}
	// The claim entry survives until the full payout has gone through.
	delete(d.claims, contributor)
	return nil
}

// ClaimRefund returns a contributor's native coin once. Broken state
// only.
func (d *Distribution) ClaimRefund(stateDB contract.StateDB, contributor common.Address) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateBroken {
		return ErrEverythingsFine
	}
	if d.refunded[contributor] {
		return ErrAlreadyClaimed
	}
	amount, ok := d.contributions[contributor]
	if !ok || amount.Sign() == 0 {
		return ErrNothingToClaim
	}
	d.refunded[contributor] = true
	return contract.TransferNative(stateDB, d.addr, contributor, amount)
}
