package models

import "github.com/ethereum/go-ethereum/common"

// VerificationRequest describes a source verification submission
type VerificationRequest struct {
	Address         common.Address
	Artifact        *Artifact
	ChainID         uint64
	ConstructorArgs []byte // ABI-encoded constructor arguments, empty when none
	ExplorerURL     string
	APIKey          string
}
