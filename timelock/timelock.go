// Copyright (C) 2025, Floorfi Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package timelock delays ownership handovers of critical components.
// The timelock itself owns the components; transfers queue behind a
// fixed delay so a takeover is always visible before it lands.
package timelock

import (
	"errors"
	"sync"

	"github.com/luxfi/geth/common"

	"github.com/floorfi/floorkit/access"
	"github.com/floorfi/floorkit/contract"
)

var (
	ErrTooEarly                = errors.New("delay has not passed")
	ErrDistributionNotComplete = errors.New("distribution not yet complete")
	ErrAlreadyWatching         = errors.New("watched distribution can only be set once")
	ErrInvalidIndex            = errors.New("no such pending transfer")
)

// Ownable is the two-phase ownership surface of a held component.
type Ownable interface {
	Address() common.Address
	TransferOwnership(caller, newOwner common.Address) error
	ClaimOwnership(caller common.Address) error
}

// Distribution is watched for completion before transfers may execute.
type Distribution interface {
	IsComplete() bool
}

// PendingCall is a queued ownership transfer.
type PendingCall struct {
	Target   Ownable
	NewOwner common.Address
	Queued   uint64
}

// Timelock queues ownership transfers behind a fixed delay. Claiming
// ownership is immediate since it only ever completes a handover to the
// timelock itself. An optional watched distribution blocks all queued
// transfers until it completes, delay or not.
type Timelock struct {
	access.Owned

	addr  common.Address
	delay uint64

	mu      sync.Mutex
	pending []PendingCall
	watched Distribution
}

// New creates a timelock with the given execution delay in seconds.
func New(addr, owner common.Address, delay uint64) *Timelock {
	t := &Timelock{addr: addr, delay: delay}
	t.Init(owner)
	return t
}

func (t *Timelock) Address() common.Address { return t.addr }

func (t *Timelock) Delay() uint64 { return t.delay }

// PendingCount returns the number of queued transfers.
func (t *Timelock) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// PendingAt returns a queued transfer by index.
func (t *Timelock) PendingAt(index int) (PendingCall, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.pending) {
		return PendingCall{}, ErrInvalidIndex
	}
	return t.pending[index], nil
}

// WatchDistribution installs the distribution that must complete before
// queued transfers execute. Owner only, set once.
func (t *Timelock) WatchDistribution(caller common.Address, dist Distribution) error {
	if err := t.CheckOwner(caller); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.watched != nil {
		return ErrAlreadyWatching
	}
	t.watched = dist
	return nil
}

// CallTransferOwnership queues an ownership transfer of a held
// component. Owner only. Executable after the delay.
func (t *Timelock) CallTransferOwnership(stateDB contract.StateDB, caller common.Address, target Ownable, newOwner common.Address) error {
	if err := t.CheckOwner(caller); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = append(t.pending, PendingCall{
		Target:   target,
		NewOwner: newOwner,
		Queued:   stateDB.GetTimestamp(),
	})
	return nil
}

// CallTransferOwnershipNow executes a queued transfer once the delay has
// passed and any watched distribution is complete. Owner only. The queue
// entry is removed on success.
func (t *Timelock) CallTransferOwnershipNow(stateDB contract.StateDB, caller common.Address, index int) error {
	if err := t.CheckOwner(caller); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.pending) {
		return ErrInvalidIndex
	}
	if t.watched != nil && !t.watched.IsComplete() {
		return ErrDistributionNotComplete
	}
	call := t.pending[index]
	if stateDB.GetTimestamp() < call.Queued+t.delay {
		return ErrTooEarly
	}
	if err := call.Target.TransferOwnership(t.addr, call.NewOwner); err != nil {
		return err
	}
	t.pending = append(t.pending[:index], t.pending[index+1:]...)
	return nil
}

// CallClaimOwnership completes a handover of a component to the
// timelock. Owner only, immediate: claiming is always safe.
func (t *Timelock) CallClaimOwnership(caller common.Address, target Ownable) error {
	if err := t.CheckOwner(caller); err != nil {
		return err
	}
	return target.ClaimOwnership(t.addr)
}
