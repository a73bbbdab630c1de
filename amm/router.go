// Copyright (C) 2025, Floorfi Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/floorfi/floorkit/contract"
)

// Router moves caller funds into pairs and drives mint, burn and swap.
// Swap amounts are measured from actual pair balance growth, so tokens
// that shave fees in transit price correctly.
type Router struct {
	factory *Factory
}

func NewRouter(factory *Factory) *Router {
	return &Router{factory: factory}
}

// AddLiquidity supplies both assets in reserve ratio (or the desired
// amounts on first provision) and mints LP to the recipient.
func (r *Router) AddLiquidity(
	stateDB contract.StateDB,
	caller common.Address,
	tokenA, tokenB Token,
	amountADesired, amountBDesired *big.Int,
	to common.Address,
) (*big.Int, *big.Int, *big.Int, error) {
	pair, ok := r.factory.GetPair(tokenA.Address(), tokenB.Address())
	if !ok {
		var err error
		pair, err = r.factory.CreatePair(tokenA, tokenB)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	amountA, amountB, err := r.quoteLiquidity(pair, tokenA, amountADesired, amountBDesired)
	if err != nil {
		return nil, nil, nil, err
	}

	if err := tokenA.TransferFrom(stateDB, caller, caller, pair.Address(), amountA); err != nil {
		return nil, nil, nil, err
	}
	if err := tokenB.TransferFrom(stateDB, caller, caller, pair.Address(), amountB); err != nil {
		return nil, nil, nil, err
	}
	liquidity, err := pair.Mint(stateDB, to)
	if err != nil {
		return nil, nil, nil, err
	}
	return amountA, amountB, liquidity, nil
}

// RemoveLiquidity burns the caller's LP and pays out both assets.
func (r *Router) RemoveLiquidity(
	stateDB contract.StateDB,
	caller common.Address,
	tokenA, tokenB Token,
	liquidity *big.Int,
	to common.Address,
) (*big.Int, *big.Int, error) {
	pair, ok := r.factory.GetPair(tokenA.Address(), tokenB.Address())
	if !ok {
		return nil, nil, ErrPairNotFound
	}
	if err := pair.Transfer(stateDB, caller, pair.Address(), liquidity); err != nil {
		return nil, nil, err
	}
	amount0, amount1, err := pair.Burn(stateDB, to)
	if err != nil {
		return nil, nil, err
	}
	if tokenA.Address() == pair.Token0().Address() {
		return amount0, amount1, nil
	}
	return amount1, amount0, nil
}

// SwapExactTokensForTokens swaps along a path of tokens, exact input.
// Per-hop input is whatever actually arrived at the pair.
func (r *Router) SwapExactTokensForTokens(
	stateDB contract.StateDB,
	caller common.Address,
	amountIn, amountOutMin *big.Int,
	path []Token,
	to common.Address,
) (*big.Int, error) {
	if len(path) < 2 {
		return nil, ErrEmptyPath
	}

	// Quote the whole path against current reserves before touching any
	// state; transfer fees along the way can only lower the realized
	// output below the quote, never raise it.
	quoted := new(big.Int).Set(amountIn)
	for i := 0; i < len(path)-1; i++ {
		pair, ok := r.factory.GetPair(path[i].Address(), path[i+1].Address())
		if !ok {
			return nil, ErrPairNotFound
		}
		reserveIn, reserveOut := orientReserves(pair, path[i])
		quoted = GetAmountOut(quoted, reserveIn, reserveOut)
	}
	if quoted.Cmp(amountOutMin) < 0 {
		return nil, ErrSlippage
	}

	firstPair, _ := r.factory.GetPair(path[0].Address(), path[1].Address())
	if err := path[0].TransferFrom(stateDB, caller, caller, firstPair.Address(), amountIn); err != nil {
		return nil, err
	}

	out := big.NewInt(0)
	for i := 0; i < len(path)-1; i++ {
		tokenIn, tokenOut := path[i], path[i+1]
		pair, ok := r.factory.GetPair(tokenIn.Address(), tokenOut.Address())
		if !ok {
			return nil, ErrPairNotFound
		}

		reserveIn, reserveOut := orientReserves(pair, tokenIn)
		received := new(big.Int).Sub(tokenIn.BalanceOf(pair.Address()), reserveIn)
		if received.Sign() <= 0 {
			return nil, ErrInsufficientInput
		}
		out = GetAmountOut(received, reserveIn, reserveOut)

		recipient := to
		if i < len(path)-2 {
			next, ok := r.factory.GetPair(tokenOut.Address(), path[i+2].Address())
			if !ok {
				return nil, ErrPairNotFound
			}
			recipient = next.Address()
		}

		amount0Out, amount1Out := big.NewInt(0), big.NewInt(0)
		if tokenOut.Address() == pair.Token0().Address() {
			amount0Out = out
		} else {
			amount1Out = out
		}
		if err := pair.Swap(stateDB, amount0Out, amount1Out, recipient); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// quoteLiquidity picks deposit amounts matching the reserve ratio.
func (r *Router) quoteLiquidity(pair *Pair, tokenA Token, amountADesired, amountBDesired *big.Int) (*big.Int, *big.Int, error) {
	reserveA, reserveB := orientReserves(pair, tokenA)
	if reserveA.Sign() == 0 && reserveB.Sign() == 0 {
		return amountADesired, amountBDesired, nil
	}
	amountBOptimal := quote(amountADesired, reserveA, reserveB)
	if amountBOptimal.Cmp(amountBDesired) <= 0 {
		return amountADesired, amountBOptimal, nil
	}
	amountAOptimal := quote(amountBDesired, reserveB, reserveA)
	if amountAOptimal.Cmp(amountADesired) > 0 {
		return nil, nil, ErrInsufficientInput
	}
	return amountAOptimal, amountBDesired, nil
}

func orientReserves(pair *Pair, tokenA Token) (*big.Int, *big.Int) {
	reserve0, reserve1 := pair.GetReserves()
	if tokenA.Address() == pair.Token0().Address() {
		return reserve0, reserve1
	}
	return reserve1, reserve0
}

func quote(amountA, reserveA, reserveB *big.Int) *big.Int {
	q := new(big.Int).Mul(amountA, reserveB)
	return q.Div(q, reserveA)
}
