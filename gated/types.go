// Copyright (C) 2025, Floorfi Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gated implements the economy's fungible ledgers: a fee token
// whose public transfers route through a pluggable gate, a wrapped native
// coin, the liquidity-lock capability and stray-token recovery.
package gated

import (
	"errors"
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"

	"github.com/floorfi/floorkit/contract"
)

// Decimals is fixed for every ledger in the economy.
const Decimals uint8 = 18

// BasisPoints is the denominator for all rate math.
const BasisPoints = 10000

// MaxUint256 is the infinite-allowance sentinel. An allowance set to this
// value is never decremented.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Errors - ledger
var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrNotMinter             = errors.New("caller is not a minter")
	ErrGateExceedsAmount     = errors.New("gate consumed more than the transfer amount")
	ErrSelfTarget            = errors.New("token cannot be its own transfer target")
)

// Errors - liquidity lock
var (
	ErrNotLiquidityController = errors.New("caller is not a liquidity controller")
)

// Errors - recovery
var (
	ErrNotRecoverable = errors.New("token is not recoverable")
)

// TransferTarget is one fee redirect produced by a gate.
type TransferTarget struct {
	Destination common.Address
	Amount      *big.Int
}

// TransferGate decides what happens to a public transfer: how much of the
// amount is burned, and which targets receive fee cuts. The remainder is
// delivered to the recipient. Gate-directed side transfers use the raw
// ledger primitive and never re-enter the gate.
type TransferGate interface {
	HandleTransfer(token, from, to common.Address, amount *big.Int) (burn *big.Int, targets []TransferTarget, err error)
}

// allowanceKey derives the composite map key for an (owner, spender) pair.
func allowanceKey(owner, spender common.Address) [32]byte {
	h := blake3.New()
	h.Write(owner.Bytes())
	h.Write(spender.Bytes())
	var key [32]byte
	h.Digest().Read(key[:])
	return key
}

// RecoverableToken is the surface Recoverable needs to sweep a stray token
// out of a component.
type RecoverableToken interface {
	Address() common.Address
	BalanceOf(owner common.Address) *big.Int
	Transfer(stateDB contract.StateDB, caller, to common.Address, amount *big.Int) error
}
