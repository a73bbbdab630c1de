// Copyright (C) 2025, Floorfi Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package contract defines the chain-state surface shared by the economy
// engines: the StateDB interface, storage key derivation, native coin
// movement and event emission helpers.
package contract

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	ethtypes "github.com/luxfi/geth/core/types"
	"github.com/zeebo/blake3"
)

// StateDB is the minimal chain state interface the engines operate on.
// Native coin balances, per-engine storage slots, the block clock and the
// event log all flow through it.
type StateDB interface {
	GetState(addr common.Address, key common.Hash) common.Hash
	SetState(addr common.Address, key common.Hash, value common.Hash)
	GetBalance(addr common.Address) *uint256.Int
	AddBalance(addr common.Address, amount *uint256.Int, reason tracing.BalanceChangeReason) uint256.Int
	SubBalance(addr common.Address, amount *uint256.Int, reason tracing.BalanceChangeReason) uint256.Int
	GetTimestamp() uint64
	Exist(addr common.Address) bool
	CreateAccount(addr common.Address)
	AddLog(log *ethtypes.Log)
}

var (
	ErrNegativeAmount     = errors.New("negative amount")
	ErrAmountOverflow     = errors.New("amount exceeds 256 bits")
	ErrInsufficientNative = errors.New("insufficient native balance")
)

// MakeStorageKey derives a storage slot from a prefix and payload.
func MakeStorageKey(prefix, data []byte) common.Hash {
	h := blake3.New()
	h.Write(prefix)
	h.Write(data)
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

// TransferNative moves native coin between two accounts, failing rather
// than driving the source balance negative.
func TransferNative(stateDB StateDB, from, to common.Address, amount *big.Int) error {
	u, err := ToU256(amount)
	if err != nil {
		return err
	}
	if stateDB.GetBalance(from).Cmp(u) < 0 {
		return ErrInsufficientNative
	}
	stateDB.SubBalance(from, u, tracing.BalanceChangeTransfer)
	stateDB.AddBalance(to, u, tracing.BalanceChangeTransfer)
	return nil
}

// ToU256 converts a non-negative big.Int into a uint256.
func ToU256(amount *big.Int) (*uint256.Int, error) {
	if amount.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	u, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, ErrAmountOverflow
	}
	return u, nil
}

// AddressTopic left-pads an address into a log topic.
func AddressTopic(addr common.Address) common.Hash {
	var topic common.Hash
	copy(topic[12:], addr.Bytes())
	return topic
}

// AmountData right-aligns an amount into a 32-byte log data word.
func AmountData(amount *big.Int) []byte {
	data := make([]byte, 32)
	amount.FillBytes(data)
	return data
}

// EmitLog appends an event log for the given emitter.
func EmitLog(stateDB StateDB, emitter common.Address, topics []common.Hash, data []byte) {
	stateDB.AddLog(&ethtypes.Log{
		Address: emitter,
		Topics:  topics,
		Data:    data,
	})
}
