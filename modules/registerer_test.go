// Copyright (C) 2025, Floorfi Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package modules

import (
	"errors"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	key string
	err error
}

func (c testConfig) Key() string   { return c.key }
func (c testConfig) Verify() error { return c.err }

func module(key string, addr string) Module {
	return Module{
		ConfigKey: key,
		Address:   common.HexToAddress(addr),
		Config:    testConfig{key: key},
	}
}

func TestReservedAddress(t *testing.T) {
	require.True(t, ReservedAddress(common.HexToAddress("0xe000")))
	require.True(t, ReservedAddress(common.HexToAddress("0xe0ff")))
	require.True(t, ReservedAddress(common.HexToAddress("0xe210")))
	require.False(t, ReservedAddress(common.HexToAddress("0xe300")))
	require.False(t, ReservedAddress(common.HexToAddress("0x1000")))
}

func TestRegisterValidation(t *testing.T) {
	r := NewRegistry()

	require.Error(t, r.Register(Module{ConfigKey: "x", Address: BlackholeAddr}))
	require.Error(t, r.Register(module("economyToken", "0x1234")))

	bad := module("economyToken", "0xe010")
	bad.Config = testConfig{key: "economyToken", err: errors.New("boom")}
	require.Error(t, r.Register(bad))

	mismatched := module("economyToken", "0xe010")
	mismatched.Config = testConfig{key: "other"}
	require.Error(t, r.Register(mismatched))

	require.NoError(t, r.Register(module("economyToken", "0xe010")))
	require.Error(t, r.Register(module("economyToken", "0xe011")), "duplicate key")
	require.Error(t, r.Register(module("other", "0xe010")), "duplicate address")
}

func TestDeterministicOrder(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(module("stakingPool", "0xe210")))
	require.NoError(t, r.Register(module("economyToken", "0xe010")))
	require.NoError(t, r.Register(module("marketFactory", "0xe100")))

	mods := r.Modules()
	require.Len(t, mods, 3)
	require.Equal(t, "economyToken", mods[0].ConfigKey)
	require.Equal(t, "marketFactory", mods[1].ConfigKey)
	require.Equal(t, "stakingPool", mods[2].ConfigKey)

	got, ok := r.ByKey("marketFactory")
	require.True(t, ok)
	require.Equal(t, common.HexToAddress("0xe100"), got.Address)

	got, ok = r.ByAddress(common.HexToAddress("0xe210"))
	require.True(t, ok)
	require.Equal(t, "stakingPool", got.ConfigKey)

	_, ok = r.ByKey("missing")
	require.False(t, ok)
}
