package records

import (
	"context"
	"encoding/json"
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

// FileStore keeps one JSON registry document per network at
// <dir>/<network>.json. It assumes a single writer per network; concurrent
// appends from separate processes can lose records.
type FileStore struct {
	dir    string
	writer *fs.FileWriter
	log    *slog.Logger
}

// NewFileStore creates a registry store rooted at dir
func NewFileStore(dir string, writer *fs.FileWriter, log *slog.Logger) *FileStore {
	return &FileStore{
		dir:    dir,
		writer: writer,
		log:    log.With("component", "FileStore"),
	}
}

// NewFileStoreFromConfig creates a store in the configured registry directory
func NewFileStoreFromConfig(cfg *config.RuntimeConfig, writer *fs.FileWriter, log *slog.Logger) *FileStore {
	dir := cfg.Release.Registry.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(cfg.ProjectRoot, dir)
	}
	return NewFileStore(dir, writer, log)
}

// Load returns the network's registry, creating the registry directory on
// first use. A network that was never written yields an empty registry.
func (s *FileStore) Load(ctx context.Context, network string) (models.Registry, error) {
	reg, err := s.load(network)
	if err != nil {
		return nil, &domain.StoreIOError{Network: network, Op: "load", Err: err}
	}
	return reg, nil
}

// Append adds record to contractType's sequence and rewrites the document
func (s *FileStore) Append(ctx context.Context, network, contractType string, record models.DeploymentRecord) error {
	reg, err := s.load(network)
	if err != nil {
		return &domain.StoreIOError{Network: network, Op: "append", Err: err}
	}

	next := reg.WithRecord(contractType, record)
	if err := s.writer.WriteJSON(s.path(network), next); err != nil {
		return &domain.StoreIOError{Network: network, Op: "append", Err: err}
	}

	s.log.Debug("updated deployment file", "network", network, "path", s.path(network), "records", next.Len())
	return nil
}

func (s *FileStore) load(network string) (models.Registry, error) {
	if err := validateNetworkName(network); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}

	data, err := os.ReadFile(s.path(network))
	if os.IsNotExist(err) {
		s.log.Debug("no existing deployments found", "network", network)
		return models.NewRegistry(), nil
	}
	if err != nil {
		return nil, err
	}

	var reg models.Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(s.path(network)), err)
	}
	if reg == nil {
		reg = models.NewRegistry()
	}
	return reg, nil
}

func (s *FileStore) path(network string) string {
	return filepath.Join(s.dir, network+".json")
}

// validateNetworkName keeps network names usable as a single path element
func validateNetworkName(network string) error {
	if network == "" || network == "." || network == ".." || filepath.Base(network) != network {
		return fmt.Errorf("invalid network name %q", network)
	}
	return nil
}

// Ensure the store implements the interface
var _ usecase.RecordStore = (*FileStore)(nil)
