package models

import (
	"encoding/json"
	"strings"
)

// UpgradeManifest mirrors the OpenZeppelin upgrades manifest
// (.openzeppelin/<network>.json). Fields this tool does not interpret, such
// as storage layouts, are carried as raw JSON so rewrites keep them intact.
type UpgradeManifest struct {
	ManifestVersion string                            `json:"manifestVersion"`
	Admin           *ManifestDeployment               `json:"admin,omitempty"`
	Proxies         []ManifestProxy                   `json:"proxies"`
	Impls           map[string]ManifestImplementation `json:"impls"`
}

// ManifestDeployment is an address deployed by the upgrades tooling
type ManifestDeployment struct {
	Address string `json:"address"`
	TxHash  string `json:"txHash,omitempty"`
}

// ManifestProxy is a proxy entry in the manifest
type ManifestProxy struct {
	Address string `json:"address"`
	TxHash  string `json:"txHash,omitempty"`
	Kind    string `json:"kind"`
}

// ManifestImplementation is a logic contract registered under its version hash
type ManifestImplementation struct {
	Address      string          `json:"address"`
	TxHash       string          `json:"txHash,omitempty"`
	AllAddresses []string        `json:"allAddresses,omitempty"`
	Layout       json.RawMessage `json:"layout,omitempty"`
}

// ManifestVersion is the manifest schema version written by this tool
const ManifestVersion = "3.2"

// NewUpgradeManifest returns an empty manifest
func NewUpgradeManifest() *UpgradeManifest {
	return &UpgradeManifest{
		ManifestVersion: ManifestVersion,
		Proxies:         []ManifestProxy{},
		Impls:           map[string]ManifestImplementation{},
	}
}

// Implementation looks up an implementation by version hash, with or without 0x
func (m *UpgradeManifest) Implementation(version string) (ManifestImplementation, bool) {
	if m == nil {
		return ManifestImplementation{}, false
	}
	impl, ok := m.Impls[NormalizeVersion(version)]
	return impl, ok
}

// NormalizeVersion lowercases a version hash and strips any 0x prefix
func NormalizeVersion(version string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(version)), "0x")
}
