// Copyright (C) 2025, Floorfi Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package backing

import (
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/floorfi/floorkit/amm"
	"github.com/floorfi/floorkit/contract"
)

// EconomyToken is the supply surface the reserve calculator reads.
type EconomyToken interface {
	Address() common.Address
	TotalSupply() *big.Int
	BalanceOf(owner common.Address) *big.Int
}

// ReserveFloorCalculator prices the sub-floor from the economy token's
// pool against the vault token: the vault-side reserve minus what selling
// the entire circulating economy supply into the pool would extract. That
// remainder can never be redeemed through the market, so the vault does
// not need to back it.
type ReserveFloorCalculator struct {
	economy EconomyToken
	pair    *amm.Pair
}

func NewReserveFloorCalculator(economy EconomyToken, pair *amm.Pair) *ReserveFloorCalculator {
	return &ReserveFloorCalculator{economy: economy, pair: pair}
}

// CalculateSubFloor implements FloorCalculator.
func (c *ReserveFloorCalculator) CalculateSubFloor(stateDB contract.StateDB, underlying Token) *big.Int {
	reserve0, reserve1 := c.pair.GetReserves()
	reserveEconomy, reserveVault := reserve0, reserve1
	if c.economy.Address() != c.pair.Token0().Address() {
		reserveEconomy, reserveVault = reserve1, reserve0
	}
	if reserveEconomy.Sign() == 0 || reserveVault.Sign() == 0 {
		return big.NewInt(0)
	}

	circulating := new(big.Int).Sub(c.economy.TotalSupply(), c.economy.BalanceOf(c.pair.Address()))
	if circulating.Sign() <= 0 {
		return new(big.Int).Set(reserveVault)
	}

	extractable := amm.GetAmountOut(circulating, reserveEconomy, reserveVault)
	subFloor := new(big.Int).Sub(reserveVault, extractable)
	if subFloor.Sign() < 0 {
		return big.NewInt(0)
	}
	return subFloor
}
