package models

import (
	"github.com/ethereum/go-ethereum/common"
)

// TxHandle identifies a mined transaction sent during a release
type TxHandle struct {
	Hash        common.Hash    `json:"hash"`
	BlockNumber uint64         `json:"blockNumber"`
	From        common.Address `json:"from"`
	// ContractAddress is set for contract creations
	ContractAddress *common.Address `json:"contractAddress,omitempty"`
}
