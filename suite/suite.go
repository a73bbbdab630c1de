// Copyright (C) 2025, Floorfi Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package suite assembles the full economy: the gated token and its fee
// gate, the wrapped and backed coins, the market, the launch pipeline,
// staking and the ownership timelock, all registered as engines at
// reserved addresses.
package suite

import (
	"errors"
	"math/big"

	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/floorfi/floorkit/amm"
	"github.com/floorfi/floorkit/backing"
	"github.com/floorfi/floorkit/contract"
	"github.com/floorfi/floorkit/gate"
	"github.com/floorfi/floorkit/gated"
	"github.com/floorfi/floorkit/lge"
	"github.com/floorfi/floorkit/modules"
	"github.com/floorfi/floorkit/staking"
	"github.com/floorfi/floorkit/timelock"
)

// Engine addresses, all inside the reserved ranges.
var (
	TokenAddr        = common.HexToAddress("0xe010")
	WETHAddr         = common.HexToAddress("0xe020")
	KETHAddr         = common.HexToAddress("0xe030")
	DistributionAddr = common.HexToAddress("0xe040")
	GenerationAddr   = common.HexToAddress("0xe050")
	WrappedLPAddr    = common.HexToAddress("0xe060")
	FactoryAddr      = common.HexToAddress("0xe100")
	StakingAddr      = common.HexToAddress("0xe210")
	TimelockAddr     = common.HexToAddress("0xe220")
)

// OwnershipDelay is the timelock delay for component handovers.
const OwnershipDelay = 86400

var ErrInvalidConfig = errors.New("invalid economy config")

// Config drives economy assembly.
type Config struct {
	Owner    common.Address
	Treasury common.Address
	Logger   log.Logger

	// Supply is the full economy token supply, minted to the generation
	// contract before activation.
	Supply *big.Int

	// RefundWindow is how long contributors may exit after a
	// distribution swap, in seconds.
	RefundWindow uint64

	// Fees holds the transfer gate rates and fee destinations.
	Fees gate.Parameters
}

// Economy is the assembled system.
type Economy struct {
	log log.Logger

	Owner    common.Address
	Treasury common.Address
	Supply   *big.Int

	Token        *gated.Token
	Gate         *gate.Gate
	WETH         *gated.WrappedCoin
	KETH         *backing.Vault
	Factory      *amm.Factory
	Router       *amm.Router
	Distribution *lge.Distribution
	Generation   *lge.LiquidityGeneration
	WrappedLP    *backing.Vault
	Staking      *staking.StakingPool
	Timelock     *timelock.Timelock
	Registry     *modules.Registry
}

type engineConfig struct {
	key  string
	addr common.Address
}

func (c engineConfig) Key() string { return c.key }

func (c engineConfig) Verify() error {
	if c.addr == (common.Address{}) {
		return ErrInvalidConfig
	}
	return nil
}

// New assembles the economy and registers its engines. The launch
// itself is driven afterwards through SetupLaunch and CompleteLaunch.
func New(cfg Config) (*Economy, error) {
	if cfg.Owner == (common.Address{}) || cfg.Supply == nil || cfg.Supply.Sign() <= 0 {
		return nil, ErrInvalidConfig
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewTestLogger(log.InfoLevel)
	}

	e := &Economy{
		log:      logger,
		Owner:    cfg.Owner,
		Treasury: cfg.Treasury,
		Supply:   new(big.Int).Set(cfg.Supply),
		Token:    gated.NewToken(TokenAddr, "Floor Token", "FLR", cfg.Owner),
		WETH:     gated.NewWrappedCoin(WETHAddr, "Wrapped Coin", "WETH", cfg.Owner),
		Factory:  amm.NewFactory(),
		Registry: modules.NewRegistry(),
	}
	e.KETH = backing.NewVault(KETHAddr, "Backed Coin", "KETH", cfg.Owner, e.WETH)
	e.Router = amm.NewRouter(e.Factory)
	e.Gate = gate.New(cfg.Owner, e.Factory)
	e.Staking = staking.NewStakingPool(StakingAddr, cfg.Owner, e.Token)
	e.Timelock = timelock.New(TimelockAddr, cfg.Owner, OwnershipDelay)

	dist, err := lge.NewDistribution(DistributionAddr, cfg.Owner, lge.DistributionConfig{
		Logger:   logger,
		Economy:  e.Token,
		Wrapped:  e.WETH,
		Backed:   e.KETH,
		Factory:  e.Factory,
		Router:   e.Router,
		Treasury: cfg.Treasury,
	})
	if err != nil {
		return nil, err
	}
	e.Distribution = dist
	e.Generation = lge.NewLiquidityGeneration(GenerationAddr, cfg.Owner, logger, e.Token, cfg.RefundWindow)

	if err := e.Gate.SetParameters(cfg.Owner, cfg.Fees); err != nil {
		return nil, err
	}
	if err := e.Token.SetTransferGate(cfg.Owner, e.Gate); err != nil {
		return nil, err
	}
	// Infrastructure moves funds at face value.
	for _, addr := range []common.Address{cfg.Owner, GenerationAddr, DistributionAddr, StakingAddr, TimelockAddr} {
		if err := e.Gate.SetFreeParticipant(cfg.Owner, addr, true); err != nil {
			return nil, err
		}
	}

	if err := e.registerEngines(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Economy) registerEngines() error {
	for _, m := range []modules.Module{
		{ConfigKey: "economyToken", Address: TokenAddr},
		{ConfigKey: "wrappedCoin", Address: WETHAddr},
		{ConfigKey: "backedCoin", Address: KETHAddr},
		{ConfigKey: "distribution", Address: DistributionAddr},
		{ConfigKey: "liquidityGeneration", Address: GenerationAddr},
		{ConfigKey: "wrappedLP", Address: WrappedLPAddr},
		{ConfigKey: "marketFactory", Address: FactoryAddr},
		{ConfigKey: "stakingPool", Address: StakingAddr},
		{ConfigKey: "timelock", Address: TimelockAddr},
	} {
		m.Config = engineConfig{key: m.ConfigKey, addr: m.Address}
		if err := e.Registry.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// SetupLaunch wires the launch pipeline: pairs, wrapped-LP vault, floor
// calculator, approvals, the full supply at the generation, and opens
// both contribution windows.
func (e *Economy) SetupLaunch(stateDB contract.StateDB) error {
	owner := e.Owner
	if err := e.Distribution.Setup1(owner); err != nil {
		return err
	}
	pair, ok := e.Factory.GetPair(TokenAddr, KETHAddr)
	if !ok {
		return amm.ErrPairNotFound
	}
	e.WrappedLP = backing.NewVault(WrappedLPAddr, "Wrapped Floor LP", "wFLP", owner, pair)
	if err := e.Distribution.Setup3(stateDB, owner, e.WrappedLP, nil); err != nil {
		return err
	}
	if err := e.Distribution.SetGeneration(owner, GenerationAddr); err != nil {
		return err
	}
	if err := e.Distribution.Activate(owner); err != nil {
		return err
	}

	// The market side: the backed coin is an approved counter asset, and
	// the vault floor tracks the launch pool.
	if err := e.Gate.AllowPool(owner, KETHAddr, true); err != nil {
		return err
	}
	if err := e.KETH.SetFloorCalculator(owner, backing.NewReserveFloorCalculator(e.Token, pair)); err != nil {
		return err
	}
	if err := e.Staking.AddPool(owner, 10, e.WrappedLP); err != nil {
		return err
	}

	if err := e.Token.Mint(stateDB, owner, GenerationAddr, e.Supply); err != nil {
		return err
	}
	if err := e.Generation.Activate(owner, e.Distribution); err != nil {
		return err
	}
	e.log.Info("launch open", "supply", e.Supply)
	return nil
}

// CompleteLaunch hands the raise to the distribution and drives it to
// completion, jengaSteps contributors at a time (0 meaning all).
func (e *Economy) CompleteLaunch(stateDB contract.StateDB, jengaSteps int) error {
	if err := e.Generation.Complete(stateDB, e.Owner); err != nil {
		return err
	}
	for !e.Distribution.IsComplete() {
		if err := e.Distribution.Complete(stateDB, e.Owner, jengaSteps); err != nil {
			return err
		}
	}
	e.log.Info("launch complete", "raised", e.Distribution.TotalRaised())
	return nil
}

// HandOverToTimelock moves token ownership behind the timelock and ties
// queued transfers to the distribution's completion.
func (e *Economy) HandOverToTimelock() error {
	if err := e.Token.TransferOwnership(e.Owner, TimelockAddr); err != nil {
		return err
	}
	if err := e.Timelock.CallClaimOwnership(e.Owner, e.Token); err != nil {
		return err
	}
	return e.Timelock.WatchDistribution(e.Owner, e.Distribution)
}

// SweepFloor moves backing above the floor to the treasury.
func (e *Economy) SweepFloor(stateDB contract.StateDB, caller common.Address) (*big.Int, error) {
	return e.KETH.SweepFloor(stateDB, caller, e.Treasury)
}
