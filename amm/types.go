// Copyright (C) 2025, Floorfi Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package amm is the economy's external market collaborator: a
// constant-product pair with a 0.3% swap fee, a factory that records which
// pools exist for which assets, and a router for liquidity and swaps.
// Accounting is balance-based, so fee-on-transfer tokens work without
// special-casing.
package amm

import (
	"errors"
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"

	"github.com/floorfi/floorkit/contract"
)

// Swap fee in basis points of the input amount.
const SwapFeeBps = 30

// MinimumLiquidity is permanently locked on the first mint so a pair can
// never be fully drained of LP supply.
var MinimumLiquidity = big.NewInt(1000)

var (
	ErrIdenticalTokens      = errors.New("identical tokens")
	ErrPairExists           = errors.New("pair already exists")
	ErrPairNotFound         = errors.New("pair not found")
	ErrInsufficientMint     = errors.New("insufficient liquidity minted")
	ErrInsufficientBurn     = errors.New("insufficient liquidity burned")
	ErrInsufficientInput    = errors.New("insufficient input amount")
	ErrInsufficientOutput   = errors.New("insufficient output amount")
	ErrInsufficientReserves = errors.New("insufficient reserves")
	ErrKInvariant           = errors.New("constant product invariant violated")
	ErrLiquidityLocked      = errors.New("pair liquidity is locked")
	ErrInsufficientLP       = errors.New("insufficient LP balance")
	ErrInsufficientLPAllow  = errors.New("insufficient LP allowance")
	ErrSlippage             = errors.New("output below minimum")
	ErrEmptyPath            = errors.New("swap path too short")
)

// Token is the ledger surface the AMM requires of a constituent asset.
type Token interface {
	Address() common.Address
	BalanceOf(owner common.Address) *big.Int
	Transfer(stateDB contract.StateDB, caller, to common.Address, amount *big.Int) error
	TransferFrom(stateDB contract.StateDB, caller, from, to common.Address, amount *big.Int) error
}

// LiquidityLocker is implemented by tokens that can veto LP supply changes
// for their pairs. The pair consults it on every mint and burn.
type LiquidityLocker interface {
	LiquidityLocked(pair common.Address) bool
}

// pairKey derives the canonical identifier for a token pair, order
// independent.
func pairKey(a, b common.Address) [32]byte {
	if sortTokens(a, b) {
		a, b = b, a
	}
	h := blake3.New()
	h.Write(a.Bytes())
	h.Write(b.Bytes())
	var key [32]byte
	h.Digest().Read(key[:])
	return key
}

// pairAddress derives a deterministic pair address from the key.
func pairAddress(key [32]byte) common.Address {
	h := blake3.New()
	h.Write([]byte("amm/pair"))
	h.Write(key[:])
	var digest [32]byte
	h.Digest().Read(digest[:])
	return common.BytesToAddress(digest[12:])
}

// sortTokens reports whether a sorts after b.
func sortTokens(a, b common.Address) bool {
	return a.Cmp(b) > 0
}

// GetAmountOut prices an exact-input swap against reserves, fee included.
func GetAmountOut(amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	if amountIn.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return big.NewInt(0)
	}
	inWithFee := new(big.Int).Mul(amountIn, big.NewInt(10000-SwapFeeBps))
	numerator := new(big.Int).Mul(inWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(10000))
	denominator.Add(denominator, inWithFee)
	return numerator.Div(numerator, denominator)
}
