// Copyright (C) 2025, Floorfi Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package gated

import (
	"math/big"
	"testing"

	"github.com/luxfi/geth/common"

	"github.com/floorfi/floorkit/access"
	"github.com/floorfi/floorkit/contract"
)

var (
	ownerAddr = common.HexToAddress("0x0000000000000000000000000000000000001000")
	userA     = common.HexToAddress("0x0000000000000000000000000000000000001001")
	userB     = common.HexToAddress("0x0000000000000000000000000000000000001002")
	devAddr   = common.HexToAddress("0x0000000000000000000000000000000000001003")
	poolAddr  = common.HexToAddress("0x0000000000000000000000000000000000001004")
	tokenAddr = common.HexToAddress("0x000000000000000000000000000000000000e010")
)

func bigInt(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad bigInt literal: " + s)
	}
	return v
}

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func newTestToken(t *testing.T, stateDB contract.StateDB) *Token {
	t.Helper()
	tok := NewToken(tokenAddr, "Floor Token", "FLR", ownerAddr)
	if err := tok.Mint(stateDB, ownerAddr, ownerAddr, tokens(10000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	return tok
}

func TestTransferAndSupplyConservation(t *testing.T) {
	stateDB := contract.NewMockStateDB()
	tok := newTestToken(t, stateDB)

	if err := tok.Transfer(stateDB, ownerAddr, userA, tokens(100)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := tok.BalanceOf(userA); got.Cmp(tokens(100)) != 0 {
		t.Fatalf("userA balance = %s, want %s", got, tokens(100))
	}

	// Overdraw fails and changes nothing.
	if err := tok.Transfer(stateDB, userA, userB, tokens(101)); err != ErrInsufficientBalance {
		t.Fatalf("overdraw err = %v, want ErrInsufficientBalance", err)
	}
	if got := tok.BalanceOf(userA); got.Cmp(tokens(100)) != 0 {
		t.Fatalf("userA balance after failed transfer = %s", got)
	}

	sum := new(big.Int).Add(tok.BalanceOf(ownerAddr), tok.BalanceOf(userA))
	if sum.Cmp(tok.TotalSupply()) != 0 {
		t.Fatalf("balances %s do not sum to supply %s", sum, tok.TotalSupply())
	}
}

func TestTransferFromAllowance(t *testing.T) {
	stateDB := contract.NewMockStateDB()
	tok := newTestToken(t, stateDB)

	if err := tok.TransferFrom(stateDB, userA, ownerAddr, userB, tokens(1)); err != ErrInsufficientAllowance {
		t.Fatalf("no allowance err = %v", err)
	}

	if err := tok.Approve(stateDB, ownerAddr, userA, tokens(10)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := tok.TransferFrom(stateDB, userA, ownerAddr, userB, tokens(4)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	if got := tok.Allowance(ownerAddr, userA); got.Cmp(tokens(6)) != 0 {
		t.Fatalf("allowance = %s, want %s", got, tokens(6))
	}

	// A failed transfer must not consume allowance.
	if err := tok.TransferFrom(stateDB, userA, ownerAddr, userB, tokens(20000)); err != ErrInsufficientAllowance {
		t.Fatalf("err = %v", err)
	}
	if got := tok.Allowance(ownerAddr, userA); got.Cmp(tokens(6)) != 0 {
		t.Fatalf("allowance after failure = %s", got)
	}
}

func TestInfiniteAllowanceSentinel(t *testing.T) {
	stateDB := contract.NewMockStateDB()
	tok := newTestToken(t, stateDB)

	if err := tok.Approve(stateDB, ownerAddr, userA, MaxUint256); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := tok.TransferFrom(stateDB, userA, ownerAddr, userB, tokens(500)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	if got := tok.Allowance(ownerAddr, userA); got.Cmp(MaxUint256) != 0 {
		t.Fatalf("infinite allowance was decremented to %s", got)
	}
}

func TestMintAndBurnRestricted(t *testing.T) {
	stateDB := contract.NewMockStateDB()
	tok := newTestToken(t, stateDB)

	if err := tok.Mint(stateDB, userA, userA, tokens(1)); err != ErrNotMinter {
		t.Fatalf("non-minter mint err = %v", err)
	}
	if err := tok.SetMinter(userA, userA, true); err == nil {
		t.Fatal("non-owner could grant minter")
	}
	if err := tok.SetMinter(ownerAddr, userA, true); err != nil {
		t.Fatalf("setMinter: %v", err)
	}
	if err := tok.Mint(stateDB, userA, userB, tokens(5)); err != nil {
		t.Fatalf("minter mint: %v", err)
	}

	before := tok.TotalSupply()
	if err := tok.Burn(stateDB, userB, tokens(2)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	wantSupply := new(big.Int).Sub(before, tokens(2))
	if got := tok.TotalSupply(); got.Cmp(wantSupply) != 0 {
		t.Fatalf("supply = %s, want %s", got, wantSupply)
	}
	if got := tok.BalanceOf(userB); got.Cmp(tokens(3)) != 0 {
		t.Fatalf("userB balance = %s, want %s", got, tokens(3))
	}
}

// stubGate burns and redirects fixed basis-point cuts, like the production
// gate, without pool awareness.
type stubGate struct {
	burnRate int64
	poolRate int64
	devRate  int64
	pool     common.Address
	dev      common.Address
	fail     error
}

func (g *stubGate) HandleTransfer(token, from, to common.Address, amount *big.Int) (*big.Int, []TransferTarget, error) {
	if g.fail != nil {
		return nil, nil, g.fail
	}
	cut := func(rate int64) *big.Int {
		c := new(big.Int).Mul(amount, big.NewInt(rate))
		return c.Div(c, big.NewInt(BasisPoints))
	}
	burn := cut(g.burnRate)
	targets := []TransferTarget{
		{Destination: g.pool, Amount: cut(g.poolRate)},
		{Destination: g.dev, Amount: cut(g.devRate)},
	}
	return burn, targets, nil
}

func TestGatedTransferSplitsFees(t *testing.T) {
	stateDB := contract.NewMockStateDB()
	tok := newTestToken(t, stateDB)

	gate := &stubGate{burnRate: 200, poolRate: 100, devRate: 10, pool: poolAddr, dev: devAddr}
	if err := tok.SetTransferGate(userA, gate); err == nil {
		t.Fatal("non-owner installed gate")
	}
	if err := tok.SetTransferGate(ownerAddr, gate); err != nil {
		t.Fatalf("setTransferGate: %v", err)
	}

	supplyBefore := tok.TotalSupply()
	if err := tok.Transfer(stateDB, ownerAddr, userA, tokens(100)); err != nil {
		t.Fatalf("gated transfer: %v", err)
	}

	// 100 sent: 2 burned, 1 to pool, 0.1 to dev, 96.9 delivered.
	if got := tok.BalanceOf(userA); got.Cmp(bigInt("96900000000000000000")) != 0 {
		t.Fatalf("delivered = %s, want 96.9", got)
	}
	if got := tok.BalanceOf(poolAddr); got.Cmp(tokens(1)) != 0 {
		t.Fatalf("pool fee = %s, want 1", got)
	}
	if got := tok.BalanceOf(devAddr); got.Cmp(bigInt("100000000000000000")) != 0 {
		t.Fatalf("dev fee = %s, want 0.1", got)
	}
	wantSupply := new(big.Int).Sub(supplyBefore, tokens(2))
	if got := tok.TotalSupply(); got.Cmp(wantSupply) != 0 {
		t.Fatalf("supply = %s, want %s", got, wantSupply)
	}

	// Sender is short exactly the full amount.
	wantOwner := new(big.Int).Sub(tokens(10000), tokens(100))
	if got := tok.BalanceOf(ownerAddr); got.Cmp(wantOwner) != 0 {
		t.Fatalf("sender balance = %s, want %s", got, wantOwner)
	}
}

func TestGateRefusalBlocksTransfer(t *testing.T) {
	stateDB := contract.NewMockStateDB()
	tok := newTestToken(t, stateDB)

	gate := &stubGate{fail: ErrNotRecoverable}
	if err := tok.SetTransferGate(ownerAddr, gate); err != nil {
		t.Fatalf("setTransferGate: %v", err)
	}
	if err := tok.Transfer(stateDB, ownerAddr, userA, tokens(1)); err == nil {
		t.Fatal("transfer succeeded despite gate refusal")
	}
	if got := tok.BalanceOf(userA); got.Sign() != 0 {
		t.Fatalf("balance moved on refused transfer: %s", got)
	}
}

func TestGateRefusalKeepsAllowance(t *testing.T) {
	stateDB := contract.NewMockStateDB()
	tok := newTestToken(t, stateDB)

	if err := tok.Approve(stateDB, ownerAddr, userA, tokens(10)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := tok.SetTransferGate(ownerAddr, &stubGate{fail: ErrNotRecoverable}); err != nil {
		t.Fatalf("setTransferGate: %v", err)
	}

	if err := tok.TransferFrom(stateDB, userA, ownerAddr, userB, tokens(5)); err == nil {
		t.Fatal("transferFrom succeeded despite gate refusal")
	}
	if got := tok.Allowance(ownerAddr, userA); got.Cmp(tokens(10)) != 0 {
		t.Fatalf("allowance after refused transfer = %s, want 10", got)
	}
	if got := tok.BalanceOf(userB); got.Sign() != 0 {
		t.Fatalf("balance moved on refused transfer: %s", got)
	}

	// With the gate gone the same spend works and is deducted once.
	if err := tok.SetTransferGate(ownerAddr, nil); err != nil {
		t.Fatalf("clear gate: %v", err)
	}
	if err := tok.TransferFrom(stateDB, userA, ownerAddr, userB, tokens(5)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	if got := tok.Allowance(ownerAddr, userA); got.Cmp(tokens(5)) != 0 {
		t.Fatalf("allowance = %s, want 5", got)
	}
	if got := tok.BalanceOf(userB); got.Cmp(tokens(5)) != 0 {
		t.Fatalf("delivered = %s, want 5", got)
	}
}

func TestLiquidityLock(t *testing.T) {
	stateDB := contract.NewMockStateDB()
	tok := newTestToken(t, stateDB)

	pair := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	if err := tok.SetLiquidityLock(userA, pair, true); err != ErrNotLiquidityController {
		t.Fatalf("err = %v, want ErrNotLiquidityController", err)
	}
	if err := tok.SetLiquidityController(ownerAddr, userA, true); err != nil {
		t.Fatalf("setLiquidityController: %v", err)
	}
	if err := tok.SetLiquidityLock(userA, pair, true); err != nil {
		t.Fatalf("setLiquidityLock: %v", err)
	}
	if !tok.LiquidityLocked(pair) {
		t.Fatal("pair not locked")
	}
	if err := tok.SetLiquidityLock(userA, pair, false); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if tok.LiquidityLocked(pair) {
		t.Fatal("pair still locked")
	}
}

func TestRecoverTokens(t *testing.T) {
	stateDB := contract.NewMockStateDB()
	tok := newTestToken(t, stateDB)

	component := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	stray := NewToken(common.HexToAddress("0xcc"), "Stray", "STR", ownerAddr)
	if err := stray.Mint(stateDB, ownerAddr, component, tokens(7)); err != nil {
		t.Fatalf("mint stray: %v", err)
	}

	rec := NewRecoverable(component, &tok.Owned)
	rec.Exclude(tok.Address())

	if err := rec.RecoverTokens(stateDB, userA, stray, userB); err != access.ErrNotOwner {
		t.Fatalf("non-owner recover err = %v, want ErrNotOwner", err)
	}

	if err := rec.RecoverTokens(stateDB, ownerAddr, stray, userB); err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got := stray.BalanceOf(userB); got.Cmp(tokens(7)) != 0 {
		t.Fatalf("recovered = %s, want 7", got)
	}

	// The component's own ledger is off limits.
	if err := rec.RecoverTokens(stateDB, ownerAddr, tok, userB); err != ErrNotRecoverable {
		t.Fatalf("err = %v, want ErrNotRecoverable", err)
	}
}
