package config

import (
	"time"
)

// RuntimeConfig represents the complete runtime configuration
// This is injected into use cases and contains all resolved settings
type RuntimeConfig struct {
	// Core settings
	ProjectRoot string
	DataDir     string

	// Context settings
	Network *Network // nil if not specified

	// Execution settings
	Debug          bool
	NonInteractive bool
	JSON           bool // Output in JSON format
	Timeout        time.Duration

	// Resolved configurations
	FoundryConfig *FoundryConfig
	Release       *ReleaseFileConfig
}

// Network represents network configuration
type Network struct {
	ChainID        uint64 `json:"chainId"`
	Name           string `json:"name"`
	RPCURL         string `json:"rpcUrl"`
	ExplorerURL    string `json:"explorerUrl,omitempty"` // verifier API, from foundry.toml [etherscan]
	ExplorerAPIKey string `json:"-"`
	BrowserURL     string `json:"browserUrl,omitempty"` // block explorer for links
}
