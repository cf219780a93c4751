package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/trebuchet-org/treb-release/internal/domain/config"
)

// loadReleaseConfig reads treb-release.toml on top of the defaults
func loadReleaseConfig(projectRoot string) (*config.ReleaseFileConfig, error) {
	cfg := config.DefaultReleaseFileConfig()

	path := filepath.Join(projectRoot, config.ReleaseConfigFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", config.ReleaseConfigFileName, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown keys in %s: %v", config.ReleaseConfigFileName, undecoded)
	}

	if err := validateReleaseConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", config.ReleaseConfigFileName, err)
	}
	return cfg, nil
}

func validateReleaseConfig(cfg *config.ReleaseFileConfig) error {
	switch cfg.Registry.Backend {
	case config.RegistryBackendFile, config.RegistryBackendSQLite:
	default:
		return fmt.Errorf("registry.backend must be %q or %q, got %q",
			config.RegistryBackendFile, config.RegistryBackendSQLite, cfg.Registry.Backend)
	}
	switch cfg.Verify.Verifier {
	case config.VerifierEtherscan, config.VerifierSourcify:
	default:
		return fmt.Errorf("verify.verifier must be %q or %q, got %q",
			config.VerifierEtherscan, config.VerifierSourcify, cfg.Verify.Verifier)
	}
	if cfg.Confirmations.Default < 0 {
		return fmt.Errorf("confirmations.default must not be negative")
	}
	for name, preset := range cfg.Contracts {
		if preset.Confirmations < 0 {
			return fmt.Errorf("contracts.%s.confirmations must not be negative", name)
		}
	}
	return nil
}
