// Copyright (C) 2025, Floorfi Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package gated

import (
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/floorfi/floorkit/contract"
)

// WrappedCoin is the wrapped native coin: a plain ledger minted and burned
// 1:1 against native coin held at the wrapper's address.
type WrappedCoin struct {
	*Token
}

// NewWrappedCoin creates the wrapper ledger.
func NewWrappedCoin(addr common.Address, name, symbol string, owner common.Address) *WrappedCoin {
	return &WrappedCoin{Token: NewToken(addr, name, symbol, owner)}
}

// Deposit pulls native coin from the caller and mints wrapped units.
func (w *WrappedCoin) Deposit(stateDB contract.StateDB, caller common.Address, amount *big.Int) error {
	if err := contract.TransferNative(stateDB, caller, w.addr, amount); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.mintLocked(stateDB, caller, amount)
	contract.EmitLog(stateDB, w.addr,
		[]common.Hash{DepositTopic, contract.AddressTopic(caller)},
		contract.AmountData(amount))
	return nil
}

// Withdraw burns wrapped units and returns native coin to the caller.
// The native payout runs first so a failed payout leaves the wrapped
// balance whole.
func (w *WrappedCoin) Withdraw(stateDB contract.StateDB, caller common.Address, amount *big.Int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if amount.Sign() < 0 {
		return contract.ErrNegativeAmount
	}
	if w.balanceLocked(caller).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if err := contract.TransferNative(stateDB, w.addr, caller, amount); err != nil {
		return err
	}
	w.burnLocked(stateDB, caller, amount)
	contract.EmitLog(stateDB, w.addr,
		[]common.Hash{WithdrawalTopic, contract.AddressTopic(caller)},
		contract.AmountData(amount))
	return nil
}
