// Copyright (C) 2025, Floorfi Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package staking implements multi-pool staking with pull-based reward
// accounting. Rewards are never scheduled: whatever reward tokens arrive
// at the pool contract are split across pools by allocation points and
// credited lazily on the next state touch.
package staking

import (
	"encoding/binary"
	"errors"
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"

	"github.com/floorfi/floorkit/access"
	"github.com/floorfi/floorkit/contract"
)

var (
	ErrPoolExists           = errors.New("pool exists for token")
	ErrInvalidPool          = errors.New("no such pool")
	ErrAmountMoreThanStaked = errors.New("amount more than staked")
)

// rewardPrecision is the accRewardPerShare fixed point.
var rewardPrecision = big.NewInt(1e12)

// Token is the ledger surface the staking pool requires.
type Token interface {
	Address() common.Address
	BalanceOf(owner common.Address) *big.Int
	Transfer(stateDB contract.StateDB, caller, to common.Address, amount *big.Int) error
	TransferFrom(stateDB contract.StateDB, caller, from, to common.Address, amount *big.Int) error
}

// Pool tracks one stakeable token. accRewardPerShare only ever grows.
type Pool struct {
	token             Token
	allocationPoints  uint64
	staked            *big.Int
	accRewardPerShare *big.Int
}

func (p *Pool) Token() Token             { return p.token }
func (p *Pool) AllocationPoints() uint64 { return p.allocationPoints }

func (p *Pool) Staked() *big.Int {
	return new(big.Int).Set(p.staked)
}

func (p *Pool) AccRewardPerShare() *big.Int {
	return new(big.Int).Set(p.accRewardPerShare)
}

// UserInfo is one staker's position in one pool.
type UserInfo struct {
	Amount     *big.Int
	RewardDebt *big.Int
}

// StakingPool distributes arriving reward tokens across pools by
// allocation points. The unaccounted delta between the contract's reward
// balance and the accounted balance is folded into accRewardPerShare on
// every settlement; pools with no stake leave their share unaccounted
// until someone stakes.
type StakingPool struct {
	access.Owned

	addr   common.Address
	reward Token

	mu                    sync.Mutex
	pools                 []*Pool
	byToken               map[common.Address]bool
	totalAllocationPoints uint64
	accountedBalance      *big.Int
	users                 map[[32]byte]*UserInfo
}

// NewStakingPool creates an empty staking pool paying out reward.
func NewStakingPool(addr, owner common.Address, reward Token) *StakingPool {
	s := &StakingPool{
		addr:             addr,
		reward:           reward,
		byToken:          make(map[common.Address]bool),
		accountedBalance: big.NewInt(0),
		users:            make(map[[32]byte]*UserInfo),
	}
	s.Init(owner)
	return s
}

func (s *StakingPool) Address() common.Address { return s.addr }

func (s *StakingPool) RewardToken() Token { return s.reward }

// PoolCount returns the number of pools.
func (s *StakingPool) PoolCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pools)
}

// TotalAllocationPoints returns the current weight total.
func (s *StakingPool) TotalAllocationPoints() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalAllocationPoints
}

// PoolInfo returns a snapshot of one pool.
func (s *StakingPool) PoolInfo(poolID int) (*Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if poolID < 0 || poolID >= len(s.pools) {
		return nil, ErrInvalidPool
	}
	p := s.pools[poolID]
	return &Pool{
		token:             p.token,
		allocationPoints:  p.allocationPoints,
		staked:            new(big.Int).Set(p.staked),
		accRewardPerShare: new(big.Int).Set(p.accRewardPerShare),
	}, nil
}

// UserInfoFor returns a snapshot of one staker's position.
func (s *StakingPool) UserInfoFor(poolID int, staker common.Address) UserInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userKey(poolID, staker)]; ok {
		return UserInfo{Amount: new(big.Int).Set(u.Amount), RewardDebt: new(big.Int).Set(u.RewardDebt)}
	}
	return UserInfo{Amount: big.NewInt(0), RewardDebt: big.NewInt(0)}
}

// AddPool registers a stakeable token with a reward weight. Owner only,
// one pool per token.
func (s *StakingPool) AddPool(caller common.Address, allocationPoints uint64, token Token) error {
	if err := s.CheckOwner(caller); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byToken[token.Address()] {
		return ErrPoolExists
	}
	s.settleLocked()
	s.byToken[token.Address()] = true
	s.pools = append(s.pools, &Pool{
		token:             token,
		allocationPoints:  allocationPoints,
		staked:            big.NewInt(0),
		accRewardPerShare: big.NewInt(0),
	})
	s.totalAllocationPoints += allocationPoints
	return nil
}

// SetPoolAllocationPoints changes a pool's reward weight. Owner only.
// Rewards already on hand settle under the old weights first.
func (s *StakingPool) SetPoolAllocationPoints(caller common.Address, poolID int, allocationPoints uint64) error {
	if err := s.CheckOwner(caller); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if poolID < 0 || poolID >= len(s.pools) {
		return ErrInvalidPool
	}
	s.settleLocked()
	pool := s.pools[poolID]
	s.totalAllocationPoints = s.totalAllocationPoints - pool.allocationPoints + allocationPoints
	pool.allocationPoints = allocationPoints
	return nil
}

// PendingReward returns what a staker could harvest right now.
func (s *StakingPool) PendingReward(poolID int, staker common.Address) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if poolID < 0 || poolID >= len(s.pools) {
		return big.NewInt(0)
	}
	pool := s.pools[poolID]
	user, ok := s.users[userKey(poolID, staker)]
	if !ok || user.Amount.Sign() == 0 {
		return big.NewInt(0)
	}

	acc := new(big.Int).Set(pool.accRewardPerShare)
	if delta := s.unaccountedLocked(); delta.Sign() > 0 && s.totalAllocationPoints > 0 && pool.staked.Sign() > 0 {
		share := new(big.Int).Mul(delta, pointsInt(pool.allocationPoints))
		share.Div(share, pointsInt(s.totalAllocationPoints))
		share.Mul(share, rewardPrecision)
		share.Div(share, pool.staked)
		acc.Add(acc, share)
	}
	pending := new(big.Int).Mul(user.Amount, acc)
	pending.Div(pending, rewardPrecision)
	return pending.Sub(pending, user.RewardDebt)
}

// Deposit pulls stake from the caller and settles any pending reward.
// A zero amount is a pure harvest.
func (s *StakingPool) Deposit(stateDB contract.StateDB, caller common.Address, poolID int, amount *big.Int) error {
	if amount.Sign() < 0 {
		return contract.ErrNegativeAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if poolID < 0 || poolID >= len(s.pools) {
		return ErrInvalidPool
	}
	s.settleLocked()
	pool := s.pools[poolID]
	user := s.userLocked(poolID, caller)

	// The stake pull runs before any payout or debt change: a failed
	// pull must leave the reward accounting exactly as it was.
	if amount.Sign() > 0 {
		if err := pool.token.TransferFrom(stateDB, s.addr, caller, s.addr, amount); err != nil {
			return err
		}
	}
	if err := s.payPendingLocked(stateDB, pool, user, caller); err != nil {
		return err
	}
	if amount.Sign() > 0 {
		user.Amount = new(big.Int).Add(user.Amount, amount)
		pool.staked = new(big.Int).Add(pool.staked, amount)
		if pool.token.Address() == s.reward.Address() {
			s.accountedBalance.Add(s.accountedBalance, amount)
		}
	}
	s.resetDebtLocked(pool, user)
	return nil
}

// Withdraw returns stake to the caller and settles any pending reward.
// A zero amount harvests without unstaking.
func (s *StakingPool) Withdraw(stateDB contract.StateDB, caller common.Address, poolID int, amount *big.Int) error {
	if amount.Sign() < 0 {
		return contract.ErrNegativeAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if poolID < 0 || poolID >= len(s.pools) {
		return ErrInvalidPool
	}
	pool := s.pools[poolID]
	user := s.userLocked(poolID, caller)
	if user.Amount.Cmp(amount) < 0 {
		return ErrAmountMoreThanStaked
	}
	s.settleLocked()

	if err := s.payPendingLocked(stateDB, pool, user, caller); err != nil {
		return err
	}
	if amount.Sign() > 0 {
		user.Amount = new(big.Int).Sub(user.Amount, amount)
		pool.staked = new(big.Int).Sub(pool.staked, amount)
		if pool.token.Address() == s.reward.Address() {
			s.accountedBalance.Sub(s.accountedBalance, amount)
		}
		if err := pool.token.Transfer(stateDB, s.addr, caller, amount); err != nil {
			return err
		}
	}
	s.resetDebtLocked(pool, user)
	return nil
}

// EmergencyWithdraw returns the full stake and forfeits any pending
// reward.
func (s *StakingPool) EmergencyWithdraw(stateDB contract.StateDB, caller common.Address, poolID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if poolID < 0 || poolID >= len(s.pools) {
		return ErrInvalidPool
	}
	pool := s.pools[poolID]
	user := s.userLocked(poolID, caller)
	amount := user.Amount
	if amount.Sign() == 0 {
		return nil
	}
	user.Amount = big.NewInt(0)
	user.RewardDebt = big.NewInt(0)
	pool.staked = new(big.Int).Sub(pool.staked, amount)
	if pool.token.Address() == s.reward.Address() {
		s.accountedBalance.Sub(s.accountedBalance, amount)
	}
	return pool.token.Transfer(stateDB, s.addr, caller, amount)
}

// unaccountedLocked is the reward delta not yet folded into any pool.
func (s *StakingPool) unaccountedLocked() *big.Int {
	delta := new(big.Int).Sub(s.reward.BalanceOf(s.addr), s.accountedBalance)
	if delta.Sign() < 0 {
		return big.NewInt(0)
	}
	return delta
}

// settleLocked folds the unaccounted reward delta into each staked
// pool's accRewardPerShare. Shares destined for empty pools stay
// unaccounted until that pool has stake.
func (s *StakingPool) settleLocked() {
	delta := s.unaccountedLocked()
	if delta.Sign() == 0 || s.totalAllocationPoints == 0 {
		return
	}
	total := pointsInt(s.totalAllocationPoints)
	for _, pool := range s.pools {
		if pool.allocationPoints == 0 || pool.staked.Sign() == 0 {
			continue
		}
		share := new(big.Int).Mul(delta, pointsInt(pool.allocationPoints))
		share.Div(share, total)
		if share.Sign() == 0 {
			continue
		}
		perShare := new(big.Int).Mul(share, rewardPrecision)
		perShare.Div(perShare, pool.staked)
		pool.accRewardPerShare = new(big.Int).Add(pool.accRewardPerShare, perShare)
		s.accountedBalance.Add(s.accountedBalance, share)
	}
}

// payPendingLocked pays accrued reward, clamped to what the contract
// actually holds.
func (s *StakingPool) payPendingLocked(stateDB contract.StateDB, pool *Pool, user *UserInfo, to common.Address) error {
	if user.Amount.Sign() == 0 {
		return nil
	}
	pending := new(big.Int).Mul(user.Amount, pool.accRewardPerShare)
	pending.Div(pending, rewardPrecision)
	pending.Sub(pending, user.RewardDebt)
	if pending.Sign() <= 0 {
		return nil
	}
	if available := s.reward.BalanceOf(s.addr); pending.Cmp(available) > 0 {
		pending = available
	}
	if err := s.reward.Transfer(stateDB, s.addr, to, pending); err != nil {
		return err
	}
	s.accountedBalance.Sub(s.accountedBalance, pending)
	if s.accountedBalance.Sign() < 0 {
		s.accountedBalance = big.NewInt(0)
	}
	return nil
}

func (s *StakingPool) resetDebtLocked(pool *Pool, user *UserInfo) {
	debt := new(big.Int).Mul(user.Amount, pool.accRewardPerShare)
	user.RewardDebt = debt.Div(debt, rewardPrecision)
}

func (s *StakingPool) userLocked(poolID int, staker common.Address) *UserInfo {
	key := userKey(poolID, staker)
	if u, ok := s.users[key]; ok {
		return u
	}
	u := &UserInfo{Amount: big.NewInt(0), RewardDebt: big.NewInt(0)}
	s.users[key] = u
	return u
}

func userKey(poolID int, staker common.Address) [32]byte {
	var pid [4]byte
	binary.BigEndian.PutUint32(pid[:], uint32(poolID))
	h := blake3.New()
	h.Write(pid[:])
	h.Write(staker.Bytes())
	var key [32]byte
	h.Digest().Read(key[:])
	return key
}

func pointsInt(points uint64) *big.Int {
	return new(big.Int).SetUint64(points)
}
