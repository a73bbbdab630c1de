// Copyright (C) 2025, Floorfi Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package gated

import (
	"github.com/luxfi/geth/common"
)

// Liquidity locking. While a pair is locked, AMM mint and burn of that
// pair's LP both fail. The check happens at call time, so a mint and a
// burn bracketing any number of other operations are both refused.

// SetLiquidityController grants or revokes lock capability. Owner only.
func (t *Token) SetLiquidityController(caller, controller common.Address, allowed bool) error {
	if err := t.CheckOwner(caller); err != nil {
		return err
	}
	t.liquidityControllers.Set(controller, allowed)
	return nil
}

// IsLiquidityController reports whether addr can lock pairs.
func (t *Token) IsLiquidityController(addr common.Address) bool {
	return t.liquidityControllers.Has(addr)
}

// SetLiquidityLock locks or unlocks LP supply changes for a pair.
// Liquidity controllers only.
func (t *Token) SetLiquidityLock(caller, pair common.Address, locked bool) error {
	if !t.liquidityControllers.Has(caller) {
		return ErrNotLiquidityController
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if locked {
		t.lockedPairs[pair] = true
	} else {
		delete(t.lockedPairs, pair)
	}
	return nil
}

// LiquidityLocked reports whether LP mint/burn is currently refused for
// the pair. Swaps are never affected.
func (t *Token) LiquidityLocked(pair common.Address) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lockedPairs[pair]
}
