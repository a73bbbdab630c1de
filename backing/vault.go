// Copyright (C) 2025, Floorfi Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package backing implements the floor of the economy: a vault token
// wrapping an underlying asset 1:1, whose excess backing above the
// calculated floor can be swept out and reinvested.
package backing

import (
	"errors"
	"math/big"
	"sync"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"

	"github.com/floorfi/floorkit/contract"
	"github.com/floorfi/floorkit/gated"
)

var (
	ErrNotSweeper = errors.New("caller is not a sweeper")
)

// SweepTopic identifies floor-sweep events.
var SweepTopic = common.BytesToHash(crypto.Keccak256([]byte("FloorSwept(address,uint256)")))

// Token is the underlying asset surface the vault needs.
type Token interface {
	Address() common.Address
	BalanceOf(owner common.Address) *big.Int
	Transfer(stateDB contract.StateDB, caller, to common.Address, amount *big.Int) error
	TransferFrom(stateDB contract.StateDB, caller, from, to common.Address, amount *big.Int) error
}

// FloorCalculator prices the portion of the vault's backing that could
// never be redeemed, and is therefore sweepable.
type FloorCalculator interface {
	CalculateSubFloor(stateDB contract.StateDB, underlying Token) *big.Int
}

// Vault wraps an underlying token 1:1. The vault token is a full gated
// ledger, so it pools, stakes and wraps like any other asset. The backing
// invariant holds at all times:
//
//	underlying.BalanceOf(vault) >= vault.TotalSupply()
//
// SweepFloor moves out only what sits above max(subFloor, totalSupply),
// so sweeping can never break redemption.
type Vault struct {
	*gated.Token

	underlying Token

	mu         sync.RWMutex
	calculator FloorCalculator
	sweepers   map[common.Address]bool
}

// NewVault creates the vault and its ledger. The vault address itself is
// granted mint rights over the ledger.
func NewVault(addr common.Address, name, symbol string, owner common.Address, underlying Token) *Vault {
	ledger := gated.NewToken(addr, name, symbol, owner)
	if err := ledger.SetMinter(owner, addr, true); err != nil {
		panic("vault ledger minter grant: " + err.Error())
	}
	return &Vault{
		Token:      ledger,
		underlying: underlying,
		sweepers:   make(map[common.Address]bool),
	}
}

// Underlying returns the wrapped asset.
func (v *Vault) Underlying() Token { return v.underlying }

// BackingBalance returns how much underlying the vault holds.
func (v *Vault) BackingBalance() *big.Int {
	return v.underlying.BalanceOf(v.Address())
}

// DepositTokens pulls underlying from the caller (allowance required) and
// mints vault tokens 1:1.
func (v *Vault) DepositTokens(stateDB contract.StateDB, caller common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return contract.ErrNegativeAmount
	}
	if err := v.underlying.TransferFrom(stateDB, v.Address(), caller, v.Address(), amount); err != nil {
		return err
	}
	return v.Token.Mint(stateDB, v.Address(), caller, amount)
}

// WithdrawTokens burns the caller's vault tokens and returns underlying
// 1:1.
func (v *Vault) WithdrawTokens(stateDB contract.StateDB, caller common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return contract.ErrNegativeAmount
	}
	if err := v.Token.Burn(stateDB, caller, amount); err != nil {
		return err
	}
	return v.underlying.Transfer(stateDB, v.Address(), caller, amount)
}

// SetFloorCalculator installs the calculator. Owner only. A nil calculator
// means only the total-supply backstop applies.
func (v *Vault) SetFloorCalculator(caller common.Address, calculator FloorCalculator) error {
	if err := v.CheckOwner(caller); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calculator = calculator
	return nil
}

// SetSweeper grants or revokes sweep capability. Owner only.
func (v *Vault) SetSweeper(caller, sweeper common.Address, allowed bool) error {
	if err := v.CheckOwner(caller); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if allowed {
		v.sweepers[sweeper] = true
	} else {
		delete(v.sweepers, sweeper)
	}
	return nil
}

// IsSweeper reports whether addr may sweep.
func (v *Vault) IsSweeper(addr common.Address) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.sweepers[addr]
}

// SweepFloor moves the backing above max(subFloor, totalSupply) to the
// destination. Sweepers only. Nothing above the floor is a successful
// no-op, so immediately repeated sweeps move zero.
func (v *Vault) SweepFloor(stateDB contract.StateDB, caller, to common.Address) (*big.Int, error) {
	v.mu.RLock()
	calculator := v.calculator
	allowed := v.sweepers[caller]
	v.mu.RUnlock()

	if !allowed {
		return nil, ErrNotSweeper
	}

	floor := big.NewInt(0)
	if calculator != nil {
		floor = calculator.CalculateSubFloor(stateDB, v.underlying)
	}
	if supply := v.TotalSupply(); supply.Cmp(floor) > 0 {
		floor = supply
	}

	swept := new(big.Int).Sub(v.BackingBalance(), floor)
	if swept.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	if err := v.underlying.Transfer(stateDB, v.Address(), to, swept); err != nil {
		return nil, err
	}
	contract.EmitLog(stateDB, v.Address(),
		[]common.Hash{SweepTopic, contract.AddressTopic(to)},
		contract.AmountData(swept))
	return swept, nil
}
