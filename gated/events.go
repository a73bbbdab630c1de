// Copyright (C) 2025, Floorfi Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package gated

import (
	"math/big"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"

	"github.com/floorfi/floorkit/contract"
)

// Canonical ERC20/WETH event topics.
var (
	TransferTopic   = common.BytesToHash(crypto.Keccak256([]byte("Transfer(address,address,uint256)")))
	ApprovalTopic   = common.BytesToHash(crypto.Keccak256([]byte("Approval(address,address,uint256)")))
	DepositTopic    = common.BytesToHash(crypto.Keccak256([]byte("Deposit(address,uint256)")))
	WithdrawalTopic = common.BytesToHash(crypto.Keccak256([]byte("Withdrawal(address,uint256)")))
)

func emitTransfer(stateDB contract.StateDB, token, from, to common.Address, amount *big.Int) {
	contract.EmitLog(stateDB, token,
		[]common.Hash{TransferTopic, contract.AddressTopic(from), contract.AddressTopic(to)},
		contract.AmountData(amount))
}

func emitApproval(stateDB contract.StateDB, token, owner, spender common.Address, amount *big.Int) {
	contract.EmitLog(stateDB, token,
		[]common.Hash{ApprovalTopic, contract.AddressTopic(owner), contract.AddressTopic(spender)},
		contract.AmountData(amount))
}
