package main

import (
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func uint256FromBig(v *big.Int) *uint256.Int {
	return uint256.MustFromBig(v)
}

func gasEstimateMsg(from, to common.Address, data []byte, value *big.Int) ethereum.CallMsg {
	return ethereum.CallMsg{From: from, To: &to, Data: data, Value: value}
}
