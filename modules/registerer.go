// Copyright (C) 2025, Floorfi Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package modules keeps the deterministic registry of economy engines:
// which engine lives at which reserved address, under which config key.
package modules

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/luxfi/geth/common"
)

// Config is the per-engine configuration carried by a Module.
type Config interface {
	Key() string
	Verify() error
}

// Module binds an engine's config key to its reserved address.
type Module struct {
	ConfigKey string
	Address   common.Address
	Config    Config
}

type moduleArray []Module

func (m moduleArray) Len() int      { return len(m) }
func (m moduleArray) Swap(i, j int) { m[i], m[j] = m[j], m[i] }
func (m moduleArray) Less(i, j int) bool {
	return bytes.Compare(m[i].Address[:], m[j].Address[:]) < 0
}

// AddressRange represents a continuous range of addresses
type AddressRange struct {
	Start common.Address
	End   common.Address
}

// Contains returns true iff [addr] is contained within the (inclusive)
// range of addresses defined by [a].
func (a *AddressRange) Contains(addr common.Address) bool {
	addrBytes := addr.Bytes()
	return bytes.Compare(addrBytes, a.Start[:]) >= 0 && bytes.Compare(addrBytes, a.End[:]) <= 0
}

// BlackholeAddr is the address where assets are burned
var BlackholeAddr = common.Address{
	1, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Reserved address ranges for the economy engines (low-byte format,
// EIP-collision-free):
//
//	0xE000-0xE0FF: core economy (token, gate, wrappers, vaults, launch)
//	0xE100-0xE1FF: markets (factory, router)
//	0xE200-0xE2FF: staking and governance (pools, timelock)
var reservedRanges = []AddressRange{
	{
		Start: common.HexToAddress("0x000000000000000000000000000000000000e000"),
		End:   common.HexToAddress("0x000000000000000000000000000000000000e0ff"),
	},
	{
		Start: common.HexToAddress("0x000000000000000000000000000000000000e100"),
		End:   common.HexToAddress("0x000000000000000000000000000000000000e1ff"),
	},
	{
		Start: common.HexToAddress("0x000000000000000000000000000000000000e200"),
		End:   common.HexToAddress("0x000000000000000000000000000000000000e2ff"),
	},
}

// ReservedAddress returns true if [addr] is in a reserved range for
// economy engines.
func ReservedAddress(addr common.Address) bool {
	for _, reservedRange := range reservedRanges {
		if reservedRange.Contains(addr) {
			return true
		}
	}
	return false
}

// Registry holds registered engines sorted by address for deterministic
// iteration.
type Registry struct {
	mu      sync.RWMutex
	modules []Module
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an engine module. The address must be reserved and
// unused, the config key unused, and the config must verify.
func (r *Registry) Register(stm Module) error {
	address := stm.Address
	key := stm.ConfigKey

	if address == BlackholeAddr {
		return fmt.Errorf("address %s overlaps with blackhole address", address)
	}
	if !ReservedAddress(address) {
		return fmt.Errorf("address %s not in a reserved range", address)
	}
	if stm.Config != nil {
		if stm.Config.Key() != key {
			return fmt.Errorf("config key %s does not match module key %s", stm.Config.Key(), key)
		}
		if err := stm.Config.Verify(); err != nil {
			return fmt.Errorf("config for %s failed verification: %w", key, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, registered := range r.modules {
		if registered.ConfigKey == key {
			return fmt.Errorf("name %s already used by an engine", key)
		}
		if registered.Address == address {
			return fmt.Errorf("address %s already used by an engine", address)
		}
	}
	r.modules = insertSortedByAddress(r.modules, stm)
	return nil
}

// ByAddress looks an engine up by its address.
func (r *Registry) ByAddress(address common.Address) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, stm := range r.modules {
		if stm.Address == address {
			return stm, true
		}
	}
	return Module{}, false
}

// ByKey looks an engine up by its config key.
func (r *Registry) ByKey(key string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, stm := range r.modules {
		if stm.ConfigKey == key {
			return stm, true
		}
	}
	return Module{}, false
}

// Modules returns the registered engines in address order.
func (r *Registry) Modules() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Module, len(r.modules))
	copy(out, r.modules)
	return out
}

func insertSortedByAddress(data []Module, stm Module) []Module {
	data = append(data, stm)
	sort.Sort(moduleArray(data))
	return data
}
