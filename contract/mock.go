// Copyright (C) 2025, Floorfi Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package contract

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	ethtypes "github.com/luxfi/geth/core/types"
)

// MockStateDB is an in-memory StateDB used by the test suites of every
// engine package. The clock is settable so timelock and refund-window
// behavior can be driven directly.
type MockStateDB struct {
	storage   map[common.Address]map[common.Hash]common.Hash
	balances  map[common.Address]*uint256.Int
	logs      []*ethtypes.Log
	timestamp uint64
}

func NewMockStateDB() *MockStateDB {
	return &MockStateDB{
		storage:  make(map[common.Address]map[common.Hash]common.Hash),
		balances: make(map[common.Address]*uint256.Int),
		logs:     make([]*ethtypes.Log, 0),
	}
}

func (m *MockStateDB) GetState(addr common.Address, key common.Hash) common.Hash {
	if m.storage[addr] == nil {
		return common.Hash{}
	}
	return m.storage[addr][key]
}

func (m *MockStateDB) SetState(addr common.Address, key, value common.Hash) {
	if m.storage[addr] == nil {
		m.storage[addr] = make(map[common.Hash]common.Hash)
	}
	m.storage[addr][key] = value
}

func (m *MockStateDB) GetBalance(addr common.Address) *uint256.Int {
	if bal, ok := m.balances[addr]; ok {
		return bal.Clone()
	}
	return uint256.NewInt(0)
}

func (m *MockStateDB) AddBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) uint256.Int {
	if m.balances[addr] == nil {
		m.balances[addr] = uint256.NewInt(0)
	}
	prev := m.balances[addr].Clone()
	m.balances[addr] = new(uint256.Int).Add(m.balances[addr], amount)
	return *prev
}

func (m *MockStateDB) SubBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) uint256.Int {
	if m.balances[addr] == nil {
		m.balances[addr] = uint256.NewInt(0)
	}
	prev := m.balances[addr].Clone()
	m.balances[addr] = new(uint256.Int).Sub(m.balances[addr], amount)
	return *prev
}

func (m *MockStateDB) GetTimestamp() uint64 { return m.timestamp }

// SetTimestamp advances the mock clock.
func (m *MockStateDB) SetTimestamp(ts uint64) { m.timestamp = ts }

func (m *MockStateDB) Exist(common.Address) bool { return true }

func (m *MockStateDB) CreateAccount(common.Address) {}

func (m *MockStateDB) AddLog(log *ethtypes.Log) { m.logs = append(m.logs, log) }

// Logs returns everything emitted so far.
func (m *MockStateDB) Logs() []*ethtypes.Log { return m.logs }
