// Package manifest reads and updates OpenZeppelin upgrade manifests
// (.openzeppelin/<network>.json).
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/trebuchet-org/treb-release/internal/adapters/fs"
	"github.com/trebuchet-org/treb-release/internal/domain"
	"github.com/trebuchet-org/treb-release/internal/domain/config"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// chainNames are the networks the upgrades tooling names its manifests after
var chainNames = map[uint64]string{
	1:        "mainnet",
	2:        "morden",
	3:        "ropsten",
	4:        "rinkeby",
	5:        "goerli",
	42:       "kovan",
	17000:    "holesky",
	11155111: "sepolia",
}

// FileName returns the manifest file name for a chain
func FileName(chainID uint64) string {
	if name, ok := chainNames[chainID]; ok {
		return name + ".json"
	}
	return fmt.Sprintf("unknown-%d.json", chainID)
}

// Store reads and writes manifests in one directory
type Store struct {
	dir    string
	writer *fs.FileWriter
	log    *slog.Logger
}

// NewStore creates a manifest store rooted at dir
func NewStore(dir string, writer *fs.FileWriter, log *slog.Logger) *Store {
	return &Store{dir: dir, writer: writer, log: log.With("component", "ManifestStore")}
}

// NewStoreFromConfig creates a store in the configured manifest directory
func NewStoreFromConfig(cfg *config.RuntimeConfig, writer *fs.FileWriter, log *slog.Logger) *Store {
	dir := cfg.Release.Upgrades.ManifestDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(cfg.ProjectRoot, dir)
	}
	return NewStore(dir, writer, log)
}

// Path returns the manifest path for a network
func (s *Store) Path(network *config.Network) string {
	return filepath.Join(s.dir, FileName(network.ChainID))
}

// ReadManifest reads the network's manifest. A missing file wraps
// domain.ErrNotFound.
func (s *Store) ReadManifest(ctx context.Context, network *config.Network) (*models.UpgradeManifest, error) {
	if network == nil || network.ChainID == 0 {
		return nil, fmt.Errorf("network chain id is required to locate the upgrade manifest")
	}

	path := s.Path(network)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("no upgrade manifest at %s: %w", path, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read upgrade manifest: %w", err)
	}

	m := models.NewUpgradeManifest()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	if m.Impls == nil {
		m.Impls = map[string]models.ManifestImplementation{}
	}
	return m, nil
}

// RegisterImplementation records a logic contract under its version hash
func (s *Store) RegisterImplementation(ctx context.Context, network *config.Network, version string, impl models.ManifestImplementation) error {
	return s.update(ctx, network, func(m *models.UpgradeManifest) {
		m.Impls[models.NormalizeVersion(version)] = impl
	})
}

// RegisterProxy appends a proxy entry
func (s *Store) RegisterProxy(ctx context.Context, network *config.Network, proxy models.ManifestProxy) error {
	return s.update(ctx, network, func(m *models.UpgradeManifest) {
		m.Proxies = append(m.Proxies, proxy)
	})
}

func (s *Store) update(ctx context.Context, network *config.Network, mutate func(*models.UpgradeManifest)) error {
	m, err := s.ReadManifest(ctx, network)
	if err != nil {
		if !isNotFound(err) {
			return err
		}
		m = models.NewUpgradeManifest()
	}

	mutate(m)

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}
	if err := s.writer.WriteJSON(s.Path(network), m); err != nil {
		return fmt.Errorf("failed to write upgrade manifest: %w", err)
	}

	s.log.Debug("updated upgrade manifest", "path", s.Path(network))
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

// Ensure the store implements the interface
var _ usecase.ManifestReader = (*Store)(nil)
