// Copyright (C) 2025, Floorfi Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package suite

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	"github.com/stretchr/testify/require"

	"github.com/floorfi/floorkit/access"
	"github.com/floorfi/floorkit/backing"
	"github.com/floorfi/floorkit/contract"
	"github.com/floorfi/floorkit/gate"
	"github.com/floorfi/floorkit/lge"
	"github.com/floorfi/floorkit/timelock"
)

var (
	ownerAddr    = common.HexToAddress("0x1000")
	userA        = common.HexToAddress("0x1001")
	userB        = common.HexToAddress("0x1002")
	userC        = common.HexToAddress("0x1003")
	treasuryAddr = common.HexToAddress("0x1004")
	devAddr      = common.HexToAddress("0x1005")
)

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func fund(stateDB *contract.MockStateDB, addr common.Address, amount *big.Int) {
	stateDB.AddBalance(addr, uint256.MustFromBig(amount), tracing.BalanceChangeUnspecified)
}

func cut(amount *big.Int, rate int64) *big.Int {
	return new(big.Int).Div(new(big.Int).Mul(amount, big.NewInt(rate)), big.NewInt(10000))
}

// newEconomy assembles a 10000 token economy with a 1% pool fee paid to
// the staking pool, a 2% burn and a 0.5% dev fee.
func newEconomy(t *testing.T) (*Economy, *contract.MockStateDB) {
	t.Helper()
	stateDB := contract.NewMockStateDB()
	eco, err := New(Config{
		Owner:        ownerAddr,
		Treasury:     treasuryAddr,
		Supply:       tokens(10000),
		RefundWindow: 3600,
		Fees: gate.Parameters{
			Dev:      devAddr,
			Reserve:  StakingAddr,
			PoolRate: 100,
			BurnRate: 200,
			DevRate:  50,
		},
	})
	require.NoError(t, err)
	return eco, stateDB
}

// openLaunch runs SetupLaunch and contributes 1, 2 and 3 coins from the
// three users.
func openLaunch(t *testing.T, eco *Economy, stateDB *contract.MockStateDB) {
	t.Helper()
	require.NoError(t, eco.SetupLaunch(stateDB))
	for i, user := range []common.Address{userA, userB, userC} {
		amount := tokens(int64(i + 1))
		fund(stateDB, user, amount)
		require.NoError(t, eco.Generation.Contribute(stateDB, user, amount))
	}
	require.Equal(t, tokens(6), eco.Generation.TotalRaised())
}

func TestConfigValidation(t *testing.T) {
	_, err := New(Config{Supply: tokens(1)})
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(Config{Owner: ownerAddr})
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(Config{Owner: ownerAddr, Supply: big.NewInt(0)})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRegistryWiring(t *testing.T) {
	eco, _ := newEconomy(t)

	mods := eco.Registry.Modules()
	require.Len(t, mods, 9)
	require.Equal(t, TokenAddr, mods[0].Address, "address order is deterministic")
	require.Equal(t, TimelockAddr, mods[len(mods)-1].Address)

	m, ok := eco.Registry.ByKey("economyToken")
	require.True(t, ok)
	require.Equal(t, TokenAddr, m.Address)

	m, ok = eco.Registry.ByAddress(StakingAddr)
	require.True(t, ok)
	require.Equal(t, "stakingPool", m.ConfigKey)
}

func TestLaunchLifecycle(t *testing.T) {
	eco, stateDB := newEconomy(t)
	openLaunch(t, eco, stateDB)

	require.NoError(t, eco.CompleteLaunch(stateDB, 2))
	require.True(t, eco.Distribution.IsComplete())

	// 10% of the 6 coin raise goes to the treasury as wrapped coin.
	require.Equal(t, new(big.Int).Mul(big.NewInt(6), big.NewInt(1e17)),
		eco.WETH.BalanceOf(treasuryAddr))

	// The rest backs the launch pool: all 10000 economy tokens against
	// 5.4 backed coins.
	pair, ok := eco.Factory.GetPair(TokenAddr, KETHAddr)
	require.True(t, ok)
	reserve0, reserve1 := pair.GetReserves()
	econReserve, kethReserve := reserve0, reserve1
	if pair.Token0().Address() != TokenAddr {
		econReserve, kethReserve = reserve1, reserve0
	}
	require.Equal(t, tokens(10000), econReserve)
	require.Equal(t, new(big.Int).Mul(big.NewInt(54), big.NewInt(1e17)), kethReserve)

	// Claims pay wrapped LP pro rata and conserve the whole position.
	for _, user := range []common.Address{userA, userB, userC} {
		require.NoError(t, eco.Generation.Claim(stateDB, user))
	}
	shareA := eco.WrappedLP.BalanceOf(userA)
	shareB := eco.WrappedLP.BalanceOf(userB)
	shareC := eco.WrappedLP.BalanceOf(userC)
	require.Positive(t, shareA.Sign())
	require.True(t, shareB.Cmp(shareA) > 0)
	require.True(t, shareC.Cmp(shareB) > 0)

	claimed := new(big.Int).Add(shareA, shareB)
	claimed.Add(claimed, shareC)
	claimed.Add(claimed, eco.WrappedLP.BalanceOf(ownerAddr))
	require.Equal(t, eco.WrappedLP.TotalSupply(), claimed, "claims plus dust cover the supply")
	require.Equal(t, 0, eco.WrappedLP.BalanceOf(DistributionAddr).Sign())

	require.ErrorIs(t, eco.Generation.Claim(stateDB, userA), lge.ErrNothingToClaim)
}

func TestMarketFeesFeedStaking(t *testing.T) {
	eco, stateDB := newEconomy(t)
	openLaunch(t, eco, stateDB)
	require.NoError(t, eco.CompleteLaunch(stateDB, 0))

	// userA exits the wrapped position back to the raw assets. The pool
	// payout of economy tokens is itself a gated transfer, so fee income
	// starts accruing at the staking pool here already.
	require.NoError(t, eco.Generation.Claim(stateDB, userA))
	shareA := eco.WrappedLP.BalanceOf(userA)
	require.NoError(t, eco.WrappedLP.WithdrawTokens(stateDB, userA, shareA))
	_, _, err := eco.Router.RemoveLiquidity(stateDB, userA, eco.Token, eco.KETH, shareA, userA)
	require.NoError(t, err)

	held := eco.Token.BalanceOf(userA)
	require.Positive(t, held.Sign())
	require.Positive(t, eco.KETH.BalanceOf(userA).Sign())

	// A plain user transfer pays the burn, pool and dev fees.
	amount := new(big.Int).Div(held, big.NewInt(2))
	burnCut := cut(amount, 200)
	poolCut := cut(amount, 100)
	devCut := cut(amount, 50)

	supplyBefore := eco.Token.TotalSupply()
	stakingBefore := eco.Token.BalanceOf(StakingAddr)
	devBefore := eco.Token.BalanceOf(devAddr)

	require.NoError(t, eco.Token.Transfer(stateDB, userA, userC, amount))

	delivered := new(big.Int).Sub(amount, burnCut)
	delivered.Sub(delivered, poolCut)
	delivered.Sub(delivered, devCut)
	require.Equal(t, delivered, eco.Token.BalanceOf(userC))
	require.Equal(t, burnCut, new(big.Int).Sub(supplyBefore, eco.Token.TotalSupply()))
	require.Equal(t, poolCut, new(big.Int).Sub(eco.Token.BalanceOf(StakingAddr), stakingBefore))
	require.Equal(t, devCut, new(big.Int).Sub(eco.Token.BalanceOf(devAddr), devBefore))

	// userB stakes the wrapped LP and harvests the accumulated fee income.
	require.NoError(t, eco.Generation.Claim(stateDB, userB))
	shareB := eco.WrappedLP.BalanceOf(userB)
	require.NoError(t, eco.WrappedLP.Approve(stateDB, userB, StakingAddr, shareB))
	require.NoError(t, eco.Staking.Deposit(stateDB, userB, 0, shareB))

	feeIncome := eco.Token.BalanceOf(StakingAddr)
	require.Positive(t, feeIncome.Sign())

	// The sole staker accrues the whole fee income minus the fixed-point
	// truncation dust, which is under one reward unit per staked unit.
	pending := eco.Staking.PendingReward(0, userB)
	dust := new(big.Int).Sub(feeIncome, pending)
	require.True(t, dust.Sign() >= 0)
	maxDust := new(big.Int).Div(shareB, big.NewInt(1e12))
	require.True(t, dust.Cmp(maxDust.Add(maxDust, big.NewInt(1))) < 0)

	require.NoError(t, eco.Staking.Deposit(stateDB, userB, 0, big.NewInt(0)))
	require.Equal(t, pending, eco.Token.BalanceOf(userB))
	require.Equal(t, dust, eco.Token.BalanceOf(StakingAddr))
	require.Equal(t, 0, eco.Staking.PendingReward(0, userB).Sign())
}

func TestSweepFloorToTreasury(t *testing.T) {
	eco, stateDB := newEconomy(t)
	openLaunch(t, eco, stateDB)
	require.NoError(t, eco.CompleteLaunch(stateDB, 0))

	require.NoError(t, eco.KETH.SetSweeper(ownerAddr, ownerAddr, true))
	_, err := eco.SweepFloor(stateDB, userA)
	require.ErrorIs(t, err, backing.ErrNotSweeper)

	// Fully backed after launch, so there is nothing above the floor yet.
	swept, err := eco.SweepFloor(stateDB, ownerAddr)
	require.NoError(t, err)
	require.Equal(t, 0, swept.Sign())

	// Excess backing arrives as a donation of wrapped coin.
	fund(stateDB, userA, tokens(5))
	require.NoError(t, eco.WETH.Deposit(stateDB, userA, tokens(5)))
	require.NoError(t, eco.WETH.Transfer(stateDB, userA, KETHAddr, tokens(5)))

	treasuryBefore := eco.WETH.BalanceOf(treasuryAddr)
	swept, err = eco.SweepFloor(stateDB, ownerAddr)
	require.NoError(t, err)
	require.Equal(t, tokens(5), swept)
	require.Equal(t, swept, new(big.Int).Sub(eco.WETH.BalanceOf(treasuryAddr), treasuryBefore))

	// Redemption stays whole: backing never drops below the vault supply.
	require.True(t, eco.KETH.BackingBalance().Cmp(eco.KETH.TotalSupply()) >= 0)

	swept, err = eco.SweepFloor(stateDB, ownerAddr)
	require.NoError(t, err)
	require.Equal(t, 0, swept.Sign())
}

func TestOwnershipHandover(t *testing.T) {
	eco, stateDB := newEconomy(t)
	stateDB.SetTimestamp(1000)
	openLaunch(t, eco, stateDB)

	require.NoError(t, eco.HandOverToTimelock())
	require.Equal(t, TimelockAddr, eco.Token.Owner())
	require.ErrorIs(t, eco.Token.SetMinter(ownerAddr, userA, true), access.ErrNotOwner)

	require.NoError(t, eco.Timelock.CallTransferOwnership(stateDB, ownerAddr, eco.Token, ownerAddr))

	// Past the delay but the launch has not completed, so the watched
	// distribution still blocks the transfer.
	stateDB.SetTimestamp(1000 + OwnershipDelay)
	require.ErrorIs(t, eco.Timelock.CallTransferOwnershipNow(stateDB, ownerAddr, 0),
		timelock.ErrDistributionNotComplete)

	require.NoError(t, eco.CompleteLaunch(stateDB, 0))
	require.NoError(t, eco.Timelock.CallTransferOwnershipNow(stateDB, ownerAddr, 0))
	require.NoError(t, eco.Token.ClaimOwnership(ownerAddr))
	require.Equal(t, ownerAddr, eco.Token.Owner())
	require.NoError(t, eco.Token.SetMinter(ownerAddr, userA, true))
}
