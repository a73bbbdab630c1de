// Copyright (C) 2025, Floorfi Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"sync"

	"github.com/luxfi/geth/common"
)

// Factory creates pairs and records the known-pools relation the transfer
// gate consults. Iteration order over pairs is creation order.
type Factory struct {
	mu        sync.RWMutex
	pairs     map[[32]byte]*Pair
	byAddress map[common.Address]*Pair
	ordered   []*Pair
}

func NewFactory() *Factory {
	return &Factory{
		pairs:     make(map[[32]byte]*Pair),
		byAddress: make(map[common.Address]*Pair),
	}
}

// CreatePair deploys the pool for a token pair. Token order is
// canonicalized by address.
func (f *Factory) CreatePair(tokenA, tokenB Token) (*Pair, error) {
	if tokenA.Address() == tokenB.Address() {
		return nil, ErrIdenticalTokens
	}
	token0, token1 := tokenA, tokenB
	if sortTokens(token0.Address(), token1.Address()) {
		token0, token1 = token1, token0
	}

	key := pairKey(token0.Address(), token1.Address())

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.pairs[key]; exists {
		return nil, ErrPairExists
	}
	pair := newPair(pairAddress(key), token0, token1)
	f.pairs[key] = pair
	f.byAddress[pair.addr] = pair
	f.ordered = append(f.ordered, pair)
	return pair, nil
}

// GetPair returns the pool for two token addresses, order independent.
func (f *Factory) GetPair(a, b common.Address) (*Pair, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	pair, ok := f.pairs[pairKey(a, b)]
	return pair, ok
}

// PairByAddress resolves a pool by its own address.
func (f *Factory) PairByAddress(addr common.Address) (*Pair, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	pair, ok := f.byAddress[addr]
	return pair, ok
}

// KnownPool reports the constituent token addresses of a pool, satisfying
// the gate's registry interface.
func (f *Factory) KnownPool(pair common.Address) (common.Address, common.Address, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.byAddress[pair]
	if !ok {
		return common.Address{}, common.Address{}, false
	}
	return p.token0.Address(), p.token1.Address(), true
}

// Pairs returns every pool in creation order.
func (f *Factory) Pairs() []*Pair {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*Pair, len(f.ordered))
	copy(out, f.ordered)
	return out
}
