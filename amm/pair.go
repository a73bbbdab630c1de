// Copyright (C) 2025, Floorfi Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"

	"github.com/floorfi/floorkit/contract"
)

// Pair is a constant-product pool over two tokens. It is also the ledger
// of its own LP token, so it satisfies the Token interface and can be
// wrapped like any other asset.
//
// Mint, Burn and Swap follow balance-based accounting: callers move tokens
// into the pair first, and the pair prices the difference against its last
// recorded reserves. Fee-on-transfer tokens therefore price correctly with
// no special handling.
type Pair struct {
	addr   common.Address
	token0 Token
	token1 Token

	mu           sync.Mutex
	reserve0     *big.Int
	reserve1     *big.Int
	lpTotal      *big.Int
	lpBalances   map[common.Address]*big.Int
	lpAllowances map[[32]byte]*big.Int
}

func newPair(addr common.Address, token0, token1 Token) *Pair {
	return &Pair{
		addr:         addr,
		token0:       token0,
		token1:       token1,
		reserve0:     big.NewInt(0),
		reserve1:     big.NewInt(0),
		lpTotal:      big.NewInt(0),
		lpBalances:   make(map[common.Address]*big.Int),
		lpAllowances: make(map[[32]byte]*big.Int),
	}
}

func (p *Pair) Address() common.Address { return p.addr }

// Token0 and Token1 return the constituent assets in canonical order.
func (p *Pair) Token0() Token { return p.token0 }

func (p *Pair) Token1() Token { return p.token1 }

// GetReserves returns copies of the current reserves.
func (p *Pair) GetReserves() (*big.Int, *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.reserve0), new(big.Int).Set(p.reserve1)
}

// Mint prices the tokens sent to the pair since the last sync and mints LP
// to the recipient. The first mint locks MinimumLiquidity forever.
func (p *Pair) Mint(stateDB contract.StateDB, to common.Address) (*big.Int, error) {
	if err := p.checkLock(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	balance0 := p.token0.BalanceOf(p.addr)
	balance1 := p.token1.BalanceOf(p.addr)
	amount0 := new(big.Int).Sub(balance0, p.reserve0)
	amount1 := new(big.Int).Sub(balance1, p.reserve1)
	if amount0.Sign() <= 0 || amount1.Sign() <= 0 {
		return nil, ErrInsufficientInput
	}

	var liquidity *big.Int
	if p.lpTotal.Sign() == 0 {
		liquidity = new(big.Int).Sqrt(new(big.Int).Mul(amount0, amount1))
		liquidity.Sub(liquidity, MinimumLiquidity)
		if liquidity.Sign() <= 0 {
			return nil, ErrInsufficientMint
		}
		p.lpMintLocked(common.Address{}, MinimumLiquidity)
	} else {
		l0 := new(big.Int).Mul(amount0, p.lpTotal)
		l0.Div(l0, p.reserve0)
		l1 := new(big.Int).Mul(amount1, p.lpTotal)
		l1.Div(l1, p.reserve1)
		liquidity = l0
		if l1.Cmp(l0) < 0 {
			liquidity = l1
		}
		if liquidity.Sign() <= 0 {
			return nil, ErrInsufficientMint
		}
	}

	p.lpMintLocked(to, liquidity)
	p.reserve0 = balance0
	p.reserve1 = balance1
	return liquidity, nil
}

// Burn redeems the LP tokens held at the pair's own address and pays both
// assets out to the recipient.
func (p *Pair) Burn(stateDB contract.StateDB, to common.Address) (*big.Int, *big.Int, error) {
	if err := p.checkLock(); err != nil {
		return nil, nil, err
	}
	p.mu.Lock()

	liquidity := p.lpBalanceLocked(p.addr)
	if liquidity.Sign() <= 0 {
		p.mu.Unlock()
		return nil, nil, ErrInsufficientBurn
	}
	balance0 := p.token0.BalanceOf(p.addr)
	balance1 := p.token1.BalanceOf(p.addr)

	amount0 := new(big.Int).Mul(liquidity, balance0)
	amount0.Div(amount0, p.lpTotal)
	amount1 := new(big.Int).Mul(liquidity, balance1)
	amount1.Div(amount1, p.lpTotal)
	if amount0.Sign() <= 0 || amount1.Sign() <= 0 {
		p.mu.Unlock()
		return nil, nil, ErrInsufficientBurn
	}

	p.lpBurnLocked(p.addr, liquidity)
	p.mu.Unlock()

	// Pay out, then resync reserves from real balances.
	if err := p.token0.Transfer(stateDB, p.addr, to, amount0); err != nil {
		return nil, nil, err
	}
	if err := p.token1.Transfer(stateDB, p.addr, to, amount1); err != nil {
		return nil, nil, err
	}

	p.mu.Lock()
	p.reserve0 = p.token0.BalanceOf(p.addr)
	p.reserve1 = p.token1.BalanceOf(p.addr)
	p.mu.Unlock()
	return amount0, amount1, nil
}

// Swap sends the requested outputs and verifies the fee-adjusted constant
// product against the implied inputs. Inputs must already sit in the pair.
func (p *Pair) Swap(stateDB contract.StateDB, amount0Out, amount1Out *big.Int, to common.Address) error {
	if amount0Out.Sign() < 0 || amount1Out.Sign() < 0 {
		return contract.ErrNegativeAmount
	}
	if amount0Out.Sign() == 0 && amount1Out.Sign() == 0 {
		return ErrInsufficientOutput
	}

	p.mu.Lock()
	reserve0 := new(big.Int).Set(p.reserve0)
	reserve1 := new(big.Int).Set(p.reserve1)
	p.mu.Unlock()

	if amount0Out.Cmp(reserve0) >= 0 || amount1Out.Cmp(reserve1) >= 0 {
		return ErrInsufficientReserves
	}

	// Validate against projected balances before moving anything, so a
	// failed swap leaves no partial state behind.
	projected0 := new(big.Int).Sub(p.token0.BalanceOf(p.addr), amount0Out)
	projected1 := new(big.Int).Sub(p.token1.BalanceOf(p.addr), amount1Out)

	amount0In := impliedInput(projected0, reserve0, amount0Out)
	amount1In := impliedInput(projected1, reserve1, amount1Out)
	if amount0In.Sign() == 0 && amount1In.Sign() == 0 {
		return ErrInsufficientInput
	}

	adjusted0 := adjustedBalance(projected0, amount0In)
	adjusted1 := adjustedBalance(projected1, amount1In)
	k := new(big.Int).Mul(reserve0, reserve1)
	k.Mul(k, big.NewInt(10000*10000))
	if new(big.Int).Mul(adjusted0, adjusted1).Cmp(k) < 0 {
		return ErrKInvariant
	}

	if amount0Out.Sign() > 0 {
		if err := p.token0.Transfer(stateDB, p.addr, to, amount0Out); err != nil {
			return err
		}
	}
	if amount1Out.Sign() > 0 {
		if err := p.token1.Transfer(stateDB, p.addr, to, amount1Out); err != nil {
			return err
		}
	}

	p.mu.Lock()
	p.reserve0 = p.token0.BalanceOf(p.addr)
	p.reserve1 = p.token1.BalanceOf(p.addr)
	p.mu.Unlock()
	return nil
}

// Sync writes the real balances into the reserves.
func (p *Pair) Sync() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reserve0 = p.token0.BalanceOf(p.addr)
	p.reserve1 = p.token1.BalanceOf(p.addr)
}

// checkLock refuses LP supply changes while either constituent token holds
// a lock on this pair.
func (p *Pair) checkLock() error {
	for _, tok := range []Token{p.token0, p.token1} {
		if locker, ok := tok.(LiquidityLocker); ok && locker.LiquidityLocked(p.addr) {
			return ErrLiquidityLocked
		}
	}
	return nil
}

func impliedInput(balance, reserve, out *big.Int) *big.Int {
	// in = balance - (reserve - out), floored at zero.
	in := new(big.Int).Sub(reserve, out)
	in.Sub(balance, in)
	if in.Sign() < 0 {
		return big.NewInt(0)
	}
	return in
}

func adjustedBalance(balance, in *big.Int) *big.Int {
	adj := new(big.Int).Mul(balance, big.NewInt(10000))
	fee := new(big.Int).Mul(in, big.NewInt(SwapFeeBps))
	return adj.Sub(adj, fee)
}

// =========================================================================
// LP token ledger
// =========================================================================

// TotalSupply returns the LP supply.
func (p *Pair) TotalSupply() *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.lpTotal)
}

// BalanceOf returns owner's LP balance.
func (p *Pair) BalanceOf(owner common.Address) *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.lpBalanceLocked(owner))
}

// Transfer moves LP between holders. LP transfers are never lock
// restricted; locks bind supply changes only.
func (p *Pair) Transfer(stateDB contract.StateDB, caller, to common.Address, amount *big.Int) error {
	return p.TransferFrom(stateDB, caller, caller, to, amount)
}

// Approve grants spender an LP allowance.
func (p *Pair) Approve(stateDB contract.StateDB, caller, spender common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return contract.ErrNegativeAmount
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lpAllowances[lpAllowanceKey(caller, spender)] = new(big.Int).Set(amount)
	return nil
}

// TransferFrom moves LP, spending caller's allowance when moving another
// holder's balance.
func (p *Pair) TransferFrom(stateDB contract.StateDB, caller, from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return contract.ErrNegativeAmount
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lpBalanceLocked(from).Cmp(amount) < 0 {
		return ErrInsufficientLP
	}
	if caller != from {
		key := lpAllowanceKey(from, caller)
		cur := p.lpAllowances[key]
		if cur == nil || cur.Cmp(amount) < 0 {
			return ErrInsufficientLPAllow
		}
		p.lpAllowances[key] = new(big.Int).Sub(cur, amount)
	}
	p.lpBalances[from] = new(big.Int).Sub(p.lpBalanceLocked(from), amount)
	p.lpBalances[to] = new(big.Int).Add(p.lpBalanceLocked(to), amount)
	return nil
}

func (p *Pair) lpBalanceLocked(owner common.Address) *big.Int {
	if b, ok := p.lpBalances[owner]; ok {
		return b
	}
	return big.NewInt(0)
}

func (p *Pair) lpMintLocked(to common.Address, amount *big.Int) {
	p.lpBalances[to] = new(big.Int).Add(p.lpBalanceLocked(to), amount)
	p.lpTotal = new(big.Int).Add(p.lpTotal, amount)
}

func (p *Pair) lpBurnLocked(from common.Address, amount *big.Int) {
	p.lpBalances[from] = new(big.Int).Sub(p.lpBalanceLocked(from), amount)
	p.lpTotal = new(big.Int).Sub(p.lpTotal, amount)
}

func lpAllowanceKey(owner, spender common.Address) [32]byte {
	h := blake3.New()
	h.Write(owner.Bytes())
	h.Write(spender.Bytes())
	var key [32]byte
	h.Digest().Read(key[:])
	return key
}
