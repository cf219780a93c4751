package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/trebuchet-org/treb-release/internal/domain/config"
)

// loadEnvFiles loads .env and .env.local so ${VAR} references in
// foundry.toml and treb-release.toml can be expanded. Existing environment
// variables win.
func loadEnvFiles(projectRoot string) {
	for _, name := range []string{".env", ".env.local"} {
		envFile := filepath.Join(projectRoot, name)
		if _, err := os.Stat(envFile); err != nil {
			continue
		}
		if err := godotenv.Load(envFile); err != nil {
			// Log warning but don't fail
			slog.Warn("failed to load env file", "path", envFile, "error", err)
		}
	}
}

// loadFoundryConfig parses foundry.toml. Hardhat projects have none, which
// yields an empty configuration.
func loadFoundryConfig(projectRoot string) (*config.FoundryConfig, error) {
	cfg := &config.FoundryConfig{
		Profile:      map[string]config.ProfileConfig{},
		RpcEndpoints: map[string]string{},
		Etherscan:    map[string]config.EtherscanConfig{},
	}

	foundryPath := filepath.Join(projectRoot, "foundry.toml")
	if _, err := os.Stat(foundryPath); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(foundryPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse foundry.toml: %w", err)
	}

	for name, url := range cfg.RpcEndpoints {
		cfg.RpcEndpoints[name] = os.ExpandEnv(url)
	}
	for name, ec := range cfg.Etherscan {
		cfg.Etherscan[name] = config.EtherscanConfig{
			Key: os.ExpandEnv(ec.Key),
			URL: os.ExpandEnv(ec.URL),
		}
	}
	return cfg, nil
}
