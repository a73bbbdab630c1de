// Copyright (C) 2025, Floorfi Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package gated

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"

	"github.com/floorfi/floorkit/contract"
)

func TestWrappedCoinDepositWithdraw(t *testing.T) {
	stateDB := contract.NewMockStateDB()
	wethAddr := common.HexToAddress("0x000000000000000000000000000000000000e020")
	weth := NewWrappedCoin(wethAddr, "Wrapped Coin", "WETH", ownerAddr)

	fund := uint256.MustFromBig(tokens(10))
	stateDB.AddBalance(userA, fund, tracing.BalanceChangeUnspecified)

	if err := weth.Deposit(stateDB, userA, tokens(4)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if got := weth.BalanceOf(userA); got.Cmp(tokens(4)) != 0 {
		t.Fatalf("wrapped balance = %s, want 4", got)
	}
	if got := stateDB.GetBalance(userA); got.Cmp(uint256.MustFromBig(tokens(6))) != 0 {
		t.Fatalf("native balance = %s, want 6", got)
	}
	if got := stateDB.GetBalance(wethAddr); got.Cmp(uint256.MustFromBig(tokens(4))) != 0 {
		t.Fatalf("wrapper native balance = %s, want 4", got)
	}

	// Supply is always fully backed by native coin.
	if weth.TotalSupply().Cmp(tokens(4)) != 0 {
		t.Fatalf("supply = %s", weth.TotalSupply())
	}

	if err := weth.Withdraw(stateDB, userA, tokens(5)); err != ErrInsufficientBalance {
		t.Fatalf("over-withdraw err = %v", err)
	}
	if err := weth.Withdraw(stateDB, userA, tokens(4)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := stateDB.GetBalance(userA); got.Cmp(fund) != 0 {
		t.Fatalf("native balance after round trip = %s, want 10", got)
	}
	if weth.TotalSupply().Sign() != 0 {
		t.Fatalf("supply after round trip = %s", weth.TotalSupply())
	}
}

func TestWrappedCoinFailedPayoutKeepsBalance(t *testing.T) {
	stateDB := contract.NewMockStateDB()
	wethAddr := common.HexToAddress("0x000000000000000000000000000000000000e020")
	weth := NewWrappedCoin(wethAddr, "Wrapped Coin", "WETH", ownerAddr)

	fund := uint256.MustFromBig(tokens(4))
	stateDB.AddBalance(userA, fund, tracing.BalanceChangeUnspecified)
	if err := weth.Deposit(stateDB, userA, tokens(4)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	// With the wrapper's native coin gone, the withdrawal fails and the
	// wrapped balance stays whole.
	stateDB.SubBalance(wethAddr, fund, tracing.BalanceChangeUnspecified)
	if err := weth.Withdraw(stateDB, userA, tokens(4)); err != contract.ErrInsufficientNative {
		t.Fatalf("withdraw without backing err = %v", err)
	}
	if got := weth.BalanceOf(userA); got.Cmp(tokens(4)) != 0 {
		t.Fatalf("wrapped balance after failed withdraw = %s, want 4", got)
	}
	if weth.TotalSupply().Cmp(tokens(4)) != 0 {
		t.Fatalf("supply = %s, want 4", weth.TotalSupply())
	}

	stateDB.AddBalance(wethAddr, fund, tracing.BalanceChangeUnspecified)
	if err := weth.Withdraw(stateDB, userA, tokens(4)); err != nil {
		t.Fatalf("withdraw after restore: %v", err)
	}
	if weth.TotalSupply().Sign() != 0 {
		t.Fatalf("supply after withdraw = %s", weth.TotalSupply())
	}
}

func TestWrappedCoinDepositNeedsFunds(t *testing.T) {
	stateDB := contract.NewMockStateDB()
	weth := NewWrappedCoin(common.HexToAddress("0xe020"), "Wrapped Coin", "WETH", ownerAddr)

	if err := weth.Deposit(stateDB, userB, tokens(1)); err != contract.ErrInsufficientNative {
		t.Fatalf("err = %v, want ErrInsufficientNative", err)
	}
	if weth.TotalSupply().Sign() != 0 {
		t.Fatal("supply minted without native backing")
	}
}
