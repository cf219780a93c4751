package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/trebuchet-org/treb-release/internal/domain"
	"github.com/trebuchet-org/treb-release/internal/domain/config"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

const schema = `
CREATE TABLE IF NOT EXISTS registries (
	network TEXT PRIMARY KEY,
	document TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

// Store keeps each network's registry document in one SQLite row. Appends
// read and upsert the document inside a single transaction.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore opens (or creates) the database at path and applies the schema
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db, logger: logger.With("component", "SQLiteStore")}, nil
}

// NewStoreFromConfig opens the configured registry database
func NewStoreFromConfig(cfg *config.RuntimeConfig, logger *slog.Logger) (*Store, error) {
	path := cfg.Release.Registry.SQLitePath
	if !filepath.IsAbs(path) {
		path = filepath.Join(cfg.ProjectRoot, path)
	}
	return NewStore(path, logger)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the network's registry; an unknown network yields an empty one
func (s *Store) Load(ctx context.Context, network string) (models.Registry, error) {
	reg, err := s.load(ctx, s.db, network)
	if err != nil {
		return nil, &domain.StoreIOError{Network: network, Op: "load", Err: err}
	}
	return reg, nil
}

// Append adds record to contractType's sequence
func (s *Store) Append(ctx context.Context, network, contractType string, record models.DeploymentRecord) error {
	if err := s.append(ctx, network, contractType, record); err != nil {
		return &domain.StoreIOError{Network: network, Op: "append", Err: err}
	}
	return nil
}

func (s *Store) append(ctx context.Context, network, contractType string, record models.DeploymentRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	reg, err := s.load(ctx, tx, network)
	if err != nil {
		return err
	}
	next := reg.WithRecord(contractType, record)

	doc, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}

	query := `
		INSERT INTO registries (network, document, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(network) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at
	`
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx, query, network, string(doc), now); err != nil {
		return fmt.Errorf("writing registry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing registry: %w", err)
	}

	s.logger.Debug("updated registry", "network", network, "records", next.Len())
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) load(ctx context.Context, q queryer, network string) (models.Registry, error) {
	var doc string
	err := q.QueryRowContext(ctx, "SELECT document FROM registries WHERE network = ?", network).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewRegistry(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}

	var reg models.Registry
	if err := json.Unmarshal([]byte(doc), &reg); err != nil {
		return nil, fmt.Errorf("decoding registry: %w", err)
	}
	if reg == nil {
		reg = models.NewRegistry()
	}
	return reg, nil
}

// Ensure the store implements the interface
var _ usecase.RecordStore = (*Store)(nil)
