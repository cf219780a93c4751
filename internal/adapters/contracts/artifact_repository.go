package contracts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/trebuchet-org/treb-release/internal/domain"
	"github.com/trebuchet-org/treb-release/internal/domain/config"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// ArtifactRepository indexes Foundry (out/) and Hardhat (artifacts/) build
// output and looks contracts up by name or by "path:Name"
type ArtifactRepository struct {
	dirs []string
	log  *slog.Logger

	mu      sync.Mutex
	indexed bool
	byFQN   map[string]*models.Artifact   // key: "path:Name"
	byName  map[string][]*models.Artifact // key: Name
}

// NewArtifactRepository creates a repository reading the given directories.
// Missing directories are skipped.
func NewArtifactRepository(dirs []string, log *slog.Logger) *ArtifactRepository {
	return &ArtifactRepository{
		dirs: dirs,
		log:  log.With("component", "ArtifactRepository"),
	}
}

// NewArtifactRepositoryFromConfig reads [artifacts] dirs, falling back to
// the foundry out directory
func NewArtifactRepositoryFromConfig(cfg *config.RuntimeConfig, log *slog.Logger) *ArtifactRepository {
	dirs := cfg.Release.Artifacts.Dirs
	if len(dirs) == 0 {
		dirs = []string{cfg.FoundryConfig.OutDir()}
	}
	abs := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if !filepath.IsAbs(d) {
			d = filepath.Join(cfg.ProjectRoot, d)
		}
		abs = append(abs, d)
	}
	return NewArtifactRepository(abs, log)
}

// GetArtifact returns the artifact for a contract name
func (r *ArtifactRepository) GetArtifact(ctx context.Context, name string) (*models.Artifact, error) {
	if err := r.ensureIndexed(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.Contains(name, ":") {
		if a, ok := r.byFQN[name]; ok {
			return a, nil
		}
		return nil, fmt.Errorf("artifact %s: %w", name, domain.ErrNotFound)
	}

	matches := r.byName[name]
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("artifact %s: %w", name, domain.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		fqns := make([]string, len(matches))
		for i, m := range matches {
			fqns[i] = m.FullyQualifiedName()
		}
		sort.Strings(fqns)
		return nil, fmt.Errorf("multiple contracts named %s, use one of: %s", name, strings.Join(fqns, ", "))
	}
}

func (r *ArtifactRepository) ensureIndexed() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexed {
		return nil
	}

	r.byFQN = map[string]*models.Artifact{}
	r.byName = map[string][]*models.Artifact{}

	for _, dir := range r.dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				if info.Name() == "build-info" {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(path) != ".json" || strings.HasSuffix(path, ".dbg.json") {
				return nil
			}
			r.add(path)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to index artifacts in %s: %w", dir, err)
		}
	}

	r.indexed = true
	r.log.Debug("indexed artifacts", "dirs", r.dirs, "count", len(r.byFQN))
	return nil
}

// rawArtifact covers both layouts: Foundry nests the bytecode in an object
// and carries the source in metadata, Hardhat stores plain strings
type rawArtifact struct {
	ContractName string          `json:"contractName"`
	SourceName   string          `json:"sourceName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     json.RawMessage `json:"bytecode"`
	Metadata     json.RawMessage `json:"metadata"`
}

type artifactMetadata struct {
	Compiler struct {
		Version string `json:"version"`
	} `json:"compiler"`
	Settings struct {
		CompilationTarget map[string]string `json:"compilationTarget"`
	} `json:"settings"`
}

// parseMetadata accepts metadata as an object or as an embedded JSON string
func parseMetadata(field json.RawMessage) artifactMetadata {
	var meta artifactMetadata
	if len(field) == 0 {
		return meta
	}
	var embedded string
	if err := json.Unmarshal(field, &embedded); err == nil {
		field = json.RawMessage(embedded)
	}
	_ = json.Unmarshal(field, &meta)
	return meta
}

func (r *ArtifactRepository) add(path string) {
	artifact, err := ParseArtifact(path)
	if err != nil {
		r.log.Debug("skipping artifact", "path", path, "error", err)
		return
	}
	if artifact == nil {
		return
	}

	fqn := artifact.FullyQualifiedName()
	if _, dup := r.byFQN[fqn]; dup {
		return
	}
	r.byFQN[fqn] = artifact
	r.byName[artifact.Name] = append(r.byName[artifact.Name], artifact)
}

// ParseArtifact reads one artifact file. Abstract contracts and interfaces
// (no creation bytecode) yield nil.
func ParseArtifact(path string) (*models.Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw rawArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if len(raw.ABI) == 0 {
		return nil, fmt.Errorf("no abi")
	}

	bytecode, err := decodeBytecodeField(raw.Bytecode)
	if err != nil {
		return nil, err
	}
	if bytecode == "" || bytecode == "0x" {
		return nil, nil
	}

	parsedABI, err := abi.JSON(bytes.NewReader(raw.ABI))
	if err != nil {
		return nil, fmt.Errorf("invalid abi: %w", err)
	}

	meta := parseMetadata(raw.Metadata)
	name, source := raw.ContractName, raw.SourceName
	for s, c := range meta.Settings.CompilationTarget {
		source, name = s, c
	}
	if name == "" {
		// Foundry names the file after the contract
		name = strings.TrimSuffix(filepath.Base(path), ".json")
	}

	return &models.Artifact{
		Name:            name,
		SourcePath:      source,
		ArtifactPath:    path,
		ABI:             parsedABI,
		Bytecode:        bytecode,
		CompilerVersion: meta.Compiler.Version,
	}, nil
}

func decodeBytecodeField(field json.RawMessage) (string, error) {
	if len(field) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(field, &s); err == nil {
		return s, nil
	}
	var obj struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(field, &obj); err != nil {
		return "", fmt.Errorf("unrecognized bytecode field: %w", err)
	}
	return obj.Object, nil
}

// Ensure the repository implements the interface
var _ usecase.ArtifactRepository = (*ArtifactRepository)(nil)
