// Copyright (C) 2025, Floorfi Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package gated

import (
	"github.com/luxfi/geth/common"

	"github.com/floorfi/floorkit/access"
	"github.com/floorfi/floorkit/contract"
)

// Recoverable lets a component's owner sweep out foreign tokens sent to it
// by mistake. Tokens the component depends on are excluded up front and can
// never be recovered.
type Recoverable struct {
	self     common.Address
	owned    *access.Owned
	excluded map[common.Address]bool
}

// NewRecoverable binds recovery to a component address and its owner.
func NewRecoverable(self common.Address, owned *access.Owned) *Recoverable {
	return &Recoverable{
		self:     self,
		owned:    owned,
		excluded: make(map[common.Address]bool),
	}
}

// Exclude marks a token as permanently non-recoverable.
func (r *Recoverable) Exclude(token common.Address) {
	r.excluded[token] = true
}

// RecoverTokens sweeps the component's entire balance of token to the
// destination. Owner only.
func (r *Recoverable) RecoverTokens(stateDB contract.StateDB, caller common.Address, token RecoverableToken, to common.Address) error {
	if err := r.owned.CheckOwner(caller); err != nil {
		return err
	}
	if r.excluded[token.Address()] {
		return ErrNotRecoverable
	}
	balance := token.BalanceOf(r.self)
	if balance.Sign() == 0 {
		return nil
	}
	return token.Transfer(stateDB, r.self, to, balance)
}
