// Copyright (C) 2025, Floorfi Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package access implements the ownership capability shared by the economy
// engines: a single owner with two-phase transfer, so a mistyped owner
// address cannot brick an engine, plus an optional controller set for
// engines that delegate a narrow capability.
package access

import (
	"errors"
	"sync"

	"github.com/luxfi/geth/common"
)

var (
	ErrNotOwner        = errors.New("caller is not the owner")
	ErrNotPendingOwner = errors.New("caller is not the pending owner")
	ErrZeroAddress     = errors.New("zero address")
)

// Owned is a two-phase ownership capability. The current owner nominates a
// successor; nothing changes until the successor claims. Embed by value and
// initialize with Init.
type Owned struct {
	mu           sync.RWMutex
	owner        common.Address
	pendingOwner common.Address
}

// Init sets the initial owner. Call once at construction.
func (o *Owned) Init(owner common.Address) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.owner = owner
}

// Owner returns the current owner.
func (o *Owned) Owner() common.Address {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.owner
}

// PendingOwner returns the nominated successor, zero if none.
func (o *Owned) PendingOwner() common.Address {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.pendingOwner
}

// CheckOwner returns ErrNotOwner unless caller is the current owner.
func (o *Owned) CheckOwner(caller common.Address) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if caller != o.owner {
		return ErrNotOwner
	}
	return nil
}

// TransferOwnership nominates a successor. Owner only. Nominating the zero
// address cancels a pending transfer.
func (o *Owned) TransferOwnership(caller, newOwner common.Address) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if caller != o.owner {
		return ErrNotOwner
	}
	o.pendingOwner = newOwner
	return nil
}

// ClaimOwnership completes a pending transfer. Pending owner only.
func (o *Owned) ClaimOwnership(caller common.Address) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pendingOwner == (common.Address{}) || caller != o.pendingOwner {
		return ErrNotPendingOwner
	}
	o.owner = o.pendingOwner
	o.pendingOwner = common.Address{}
	return nil
}

// Controllers is a set of addresses granted a narrow capability by the
// owner of the enclosing engine.
type Controllers struct {
	mu  sync.RWMutex
	set map[common.Address]bool
}

// Set grants or revokes the capability.
func (c *Controllers) Set(addr common.Address, allowed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.set == nil {
		c.set = make(map[common.Address]bool)
	}
	if allowed {
		c.set[addr] = true
	} else {
		delete(c.set, addr)
	}
}

// Has reports whether addr holds the capability.
func (c *Controllers) Has(addr common.Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.set[addr]
}
