package config

import (
	"time"
)

// RegistryBackend selects where deployment records are stored
type RegistryBackend string

const (
	RegistryBackendFile   RegistryBackend = "file"
	RegistryBackendSQLite RegistryBackend = "sqlite"
)

// Verifier selects the source verification service
type Verifier string

const (
	VerifierEtherscan Verifier = "etherscan"
	VerifierSourcify  Verifier = "sourcify"
)

const (
	DefaultConfirmations  = 5
	DefaultPollInterval   = 4 * time.Second
	DefaultVerifyTimeout  = 5 * time.Minute
	DefaultProxyArtifact  = "ERC1967Proxy"
	DefaultRegistryDir    = "deployments"
	DefaultManifestDir    = ".openzeppelin"
	DefaultSQLitePath     = ".treb/registry.db"
	ReleaseConfigFileName = "treb-release.toml"
)

// ReleaseFileConfig represents treb-release.toml
type ReleaseFileConfig struct {
	Registry      RegistrySection           `toml:"registry"`
	Upgrades      UpgradesSection           `toml:"upgrades"`
	Artifacts     ArtifactsSection          `toml:"artifacts"`
	Verify        VerifySection             `toml:"verify"`
	Sender        SenderSection             `toml:"sender"`
	Confirmations ConfirmationsSection      `toml:"confirmations"`
	Metrics       MetricsSection            `toml:"metrics"`
	Contracts     map[string]ContractPreset `toml:"contracts"`
}

// RegistrySection represents [registry]
type RegistrySection struct {
	Backend    RegistryBackend `toml:"backend"`
	Dir        string          `toml:"dir"`
	SQLitePath string          `toml:"sqlite_path"`
}

// UpgradesSection represents [upgrades]
type UpgradesSection struct {
	ManifestDir   string `toml:"manifest_dir"`
	ProxyArtifact string `toml:"proxy_artifact"`
}

// ArtifactsSection represents [artifacts]
type ArtifactsSection struct {
	Dirs []string `toml:"dirs"`
}

// VerifySection represents [verify]
type VerifySection struct {
	Enabled  *bool    `toml:"enabled"`
	Verifier Verifier `toml:"verifier"`
	Timeout  string   `toml:"timeout"`
}

// SenderSection represents [sender]
type SenderSection struct {
	PrivateKey string `toml:"private_key"` //nolint:gosec // holds env var reference, not a literal secret
}

// ConfirmationsSection represents [confirmations]
type ConfirmationsSection struct {
	Default      int    `toml:"default"`
	PollInterval string `toml:"poll_interval"`
}

// MetricsSection represents [metrics]
type MetricsSection struct {
	Textfile string `toml:"textfile"`
}

// ContractPreset represents a [contracts.<type>] release preset
type ContractPreset struct {
	Artifact      string         `toml:"artifact"`
	Upgradable    bool           `toml:"upgradable"`
	Initializer   string         `toml:"initializer"`
	Confirmations int            `toml:"confirmations"`
	Tag           string         `toml:"tag"`
	Args          map[string]any `toml:"args"`
}

// DefaultReleaseFileConfig returns the configuration used when no
// treb-release.toml exists
func DefaultReleaseFileConfig() *ReleaseFileConfig {
	return &ReleaseFileConfig{
		Registry: RegistrySection{
			Backend:    RegistryBackendFile,
			Dir:        DefaultRegistryDir,
			SQLitePath: DefaultSQLitePath,
		},
		Upgrades: UpgradesSection{
			ManifestDir:   DefaultManifestDir,
			ProxyArtifact: DefaultProxyArtifact,
		},
		Artifacts: ArtifactsSection{
			Dirs: []string{"out", "artifacts"},
		},
		Verify: VerifySection{
			Verifier: VerifierEtherscan,
			Timeout:  DefaultVerifyTimeout.String(),
		},
		Confirmations: ConfirmationsSection{
			Default:      DefaultConfirmations,
			PollInterval: DefaultPollInterval.String(),
		},
		Contracts: map[string]ContractPreset{},
	}
}

// VerifyEnabled reports whether verification runs when not skipped by flag
func (c *ReleaseFileConfig) VerifyEnabled() bool {
	return c.Verify.Enabled == nil || *c.Verify.Enabled
}

// VerifyTimeout returns the verification timeout, falling back to the default
func (c *ReleaseFileConfig) VerifyTimeout() time.Duration {
	return parseDurationOr(c.Verify.Timeout, DefaultVerifyTimeout)
}

// PollInterval returns the confirmation poll interval, falling back to the default
func (c *ReleaseFileConfig) PollInterval() time.Duration {
	return parseDurationOr(c.Confirmations.PollInterval, DefaultPollInterval)
}

// ConfirmationCount returns the configured confirmation count
func (c *ReleaseFileConfig) ConfirmationCount() int {
	if c.Confirmations.Default <= 0 {
		return DefaultConfirmations
	}
	return c.Confirmations.Default
}

// Preset returns the release preset for a contract type
func (c *ReleaseFileConfig) Preset(contractType string) (ContractPreset, bool) {
	p, ok := c.Contracts[contractType]
	return p, ok
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
