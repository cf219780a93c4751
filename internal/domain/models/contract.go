package models

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Artifact represents a compiled contract as found in a Foundry or Hardhat build
type Artifact struct {
	Name            string  // e.g., "TribeStaking"
	SourcePath      string  // e.g., "contracts/TribeStaking.sol"
	ArtifactPath    string  // file the artifact was read from
	ABI             abi.ABI // parsed contract ABI
	Bytecode        string  // creation bytecode, hex encoded
	CompilerVersion string  // e.g., "0.8.19+commit.7dd6d404"
}

// FullyQualifiedName returns "path:Name", the form forge expects for verification
func (a *Artifact) FullyQualifiedName() string {
	if a.SourcePath == "" {
		return a.Name
	}
	return fmt.Sprintf("%s:%s", a.SourcePath, a.Name)
}
