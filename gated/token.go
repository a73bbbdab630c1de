// Copyright (C) 2025, Floorfi Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package gated

import (
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"

	"github.com/floorfi/floorkit/access"
	"github.com/floorfi/floorkit/contract"
)

// Token is a fungible ledger whose public transfers route through an
// optional TransferGate. Balances sum to the total supply at all times;
// burns reduce both together.
type Token struct {
	access.Owned

	addr   common.Address
	name   string
	symbol string

	mu          sync.RWMutex
	totalSupply *big.Int
	balances    map[common.Address]*big.Int
	allowances  map[[32]byte]*big.Int
	minters     map[common.Address]bool
	gate        TransferGate

	liquidityControllers access.Controllers
	lockedPairs          map[common.Address]bool
}

// NewToken creates an empty ledger owned by owner.
func NewToken(addr common.Address, name, symbol string, owner common.Address) *Token {
	t := &Token{
		addr:        addr,
		name:        name,
		symbol:      symbol,
		totalSupply: big.NewInt(0),
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[[32]byte]*big.Int),
		minters:     make(map[common.Address]bool),
		lockedPairs: make(map[common.Address]bool),
	}
	t.Init(owner)
	return t
}

func (t *Token) Address() common.Address { return t.addr }

func (t *Token) Name() string { return t.name }

func (t *Token) Symbol() string { return t.symbol }

func (t *Token) Decimals() uint8 { return Decimals }

// TotalSupply returns a copy of the current supply.
func (t *Token) TotalSupply() *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(big.Int).Set(t.totalSupply)
}

// BalanceOf returns a copy of owner's balance.
func (t *Token) BalanceOf(owner common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(big.Int).Set(t.balanceLocked(owner))
}

// Allowance returns a copy of the remaining allowance.
func (t *Token) Allowance(owner, spender common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if a, ok := t.allowances[allowanceKey(owner, spender)]; ok {
		return new(big.Int).Set(a)
	}
	return big.NewInt(0)
}

// Approve sets spender's allowance over caller's balance. MaxUint256 is
// the infinite sentinel and survives spending.
func (t *Token) Approve(stateDB contract.StateDB, caller, spender common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return contract.ErrNegativeAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allowances[allowanceKey(caller, spender)] = new(big.Int).Set(amount)
	emitApproval(stateDB, t.addr, caller, spender, amount)
	return nil
}

// Transfer moves amount from the caller to the recipient, applying the
// installed gate.
func (t *Token) Transfer(stateDB contract.StateDB, caller, to common.Address, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transferLocked(stateDB, caller, to, amount)
}

// TransferFrom spends caller's allowance over from's balance. A caller
// moving its own funds needs no allowance.
func (t *Token) TransferFrom(stateDB contract.StateDB, caller, from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return contract.ErrNegativeAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if caller != from {
		key := allowanceKey(from, caller)
		cur := t.allowances[key]
		if cur == nil || cur.Cmp(amount) < 0 {
			return ErrInsufficientAllowance
		}
		// The allowance is spent only once the transfer has gone
		// through; a refused transfer leaves it whole.
		if err := t.transferLocked(stateDB, from, to, amount); err != nil {
			return err
		}
		if cur.Cmp(MaxUint256) != 0 {
			t.allowances[key] = new(big.Int).Sub(cur, amount)
		}
		return nil
	}
	return t.transferLocked(stateDB, from, to, amount)
}

// SetTransferGate installs or removes the gate. Owner only.
func (t *Token) SetTransferGate(caller common.Address, gate TransferGate) error {
	if err := t.CheckOwner(caller); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gate = gate
	return nil
}

// SetMinter grants or revokes mint/burn capability. Owner only. The owner
// itself is always a minter.
func (t *Token) SetMinter(caller, minter common.Address, allowed bool) error {
	if err := t.CheckOwner(caller); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if allowed {
		t.minters[minter] = true
	} else {
		delete(t.minters, minter)
	}
	return nil
}

// Mint creates amount new units for to. Minters only.
func (t *Token) Mint(stateDB contract.StateDB, caller, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return contract.ErrNegativeAmount
	}
	if err := t.checkMinter(caller); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mintLocked(stateDB, to, amount)
	return nil
}

// Burn destroys amount units of caller's balance.
func (t *Token) Burn(stateDB contract.StateDB, caller common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return contract.ErrNegativeAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.balanceLocked(caller).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	t.burnLocked(stateDB, caller, amount)
	return nil
}

// BurnFrom destroys amount units of from's balance, spending caller's
// allowance. Minters skip the allowance check.
func (t *Token) BurnFrom(stateDB contract.StateDB, caller, from common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return contract.ErrNegativeAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.balanceLocked(from).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if caller != from && !t.minterLocked(caller) {
		key := allowanceKey(from, caller)
		cur := t.allowances[key]
		if cur == nil || cur.Cmp(amount) < 0 {
			return ErrInsufficientAllowance
		}
		if cur.Cmp(MaxUint256) != 0 {
			t.allowances[key] = new(big.Int).Sub(cur, amount)
		}
	}
	t.burnLocked(stateDB, from, amount)
	return nil
}

func (t *Token) checkMinter(caller common.Address) error {
	if caller == t.Owner() {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.minters[caller] {
		return ErrNotMinter
	}
	return nil
}

func (t *Token) minterLocked(caller common.Address) bool {
	return t.minters[caller] || caller == t.Owner()
}

// transferLocked applies the gate and moves funds. Gate-directed burns and
// fee redirects use the raw primitives below, so they never re-enter the
// gate.
func (t *Token) transferLocked(stateDB contract.StateDB, from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return contract.ErrNegativeAmount
	}
	if t.balanceLocked(from).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if t.gate == nil {
		t.moveLocked(from, to, amount)
		emitTransfer(stateDB, t.addr, from, to, amount)
		return nil
	}

	burn, targets, err := t.gate.HandleTransfer(t.addr, from, to, amount)
	if err != nil {
		return err
	}
	consumed := new(big.Int).Set(burn)
	for _, target := range targets {
		if target.Destination == t.addr {
			return ErrSelfTarget
		}
		consumed.Add(consumed, target.Amount)
	}
	if consumed.Cmp(amount) > 0 {
		return ErrGateExceedsAmount
	}

	if burn.Sign() > 0 {
		t.burnLocked(stateDB, from, burn)
	}
	for _, target := range targets {
		if target.Amount.Sign() > 0 {
			t.moveLocked(from, target.Destination, target.Amount)
			emitTransfer(stateDB, t.addr, from, target.Destination, target.Amount)
		}
	}
	remainder := new(big.Int).Sub(amount, consumed)
	t.moveLocked(from, to, remainder)
	emitTransfer(stateDB, t.addr, from, to, remainder)
	return nil
}

func (t *Token) balanceLocked(owner common.Address) *big.Int {
	if b, ok := t.balances[owner]; ok {
		return b
	}
	return big.NewInt(0)
}

func (t *Token) moveLocked(from, to common.Address, amount *big.Int) {
	t.balances[from] = new(big.Int).Sub(t.balanceLocked(from), amount)
	t.balances[to] = new(big.Int).Add(t.balanceLocked(to), amount)
}

func (t *Token) mintLocked(stateDB contract.StateDB, to common.Address, amount *big.Int) {
	t.balances[to] = new(big.Int).Add(t.balanceLocked(to), amount)
	t.totalSupply = new(big.Int).Add(t.totalSupply, amount)
	emitTransfer(stateDB, t.addr, common.Address{}, to, amount)
}

func (t *Token) burnLocked(stateDB contract.StateDB, from common.Address, amount *big.Int) {
	t.balances[from] = new(big.Int).Sub(t.balanceLocked(from), amount)
	t.totalSupply = new(big.Int).Sub(t.totalSupply, amount)
	emitTransfer(stateDB, t.addr, from, common.Address{}, amount)
}
