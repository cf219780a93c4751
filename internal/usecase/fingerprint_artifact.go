package usecase

import (
	"context"
	"fmt"

	"github.com/trebuchet-org/treb-release/internal/domain/bytecode"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
)

// FingerprintResult is the version id of a compiled contract
type FingerprintResult struct {
	Artifact         string `json:"artifact"`
	Version          string `json:"version"`
	BytecodeSize     int    `json:"bytecodeSize"`
	MetadataStripped int    `json:"metadataStripped"` // bytes of trailing metadata ignored
}

// FingerprintArtifact computes the version id a release of an artifact
// would record, without touching any network
type FingerprintArtifact struct {
	artifacts ArtifactRepository
}

// NewFingerprintArtifact creates a new FingerprintArtifact use case
func NewFingerprintArtifact(artifacts ArtifactRepository) *FingerprintArtifact {
	return &FingerprintArtifact{artifacts: artifacts}
}

// Run fingerprints the named artifact
func (uc *FingerprintArtifact) Run(ctx context.Context, name string) (*FingerprintResult, error) {
	artifact, err := uc.artifacts.GetArtifact(ctx, name)
	if err != nil {
		return nil, err
	}
	return fingerprintArtifact(artifact)
}

func fingerprintArtifact(artifact *models.Artifact) (*FingerprintResult, error) {
	code, err := bytecode.Decode(artifact.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", artifact.FullyQualifiedName(), err)
	}
	version, err := bytecode.Fingerprint(code)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", artifact.FullyQualifiedName(), err)
	}
	return &FingerprintResult{
		Artifact:         artifact.FullyQualifiedName(),
		Version:          version,
		BytecodeSize:     len(code),
		MetadataStripped: len(code) - len(bytecode.StripMetadata(code)),
	}, nil
}
