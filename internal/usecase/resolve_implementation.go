package usecase

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/trebuchet-org/treb-release/internal/domain"
	"github.com/trebuchet-org/treb-release/internal/domain/config"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
)

// ResolveImplementation looks up the logic contract behind a proxy by the
// version fingerprint recorded in the upgrade manifest
type ResolveImplementation struct {
	manifests ManifestReader
}

// NewResolveImplementation creates a new implementation resolver
func NewResolveImplementation(manifests ManifestReader) *ResolveImplementation {
	return &ResolveImplementation{manifests: manifests}
}

// Resolve returns impls[fingerprint].address from the network's manifest.
// It never falls back to any other address; every failure is a
// ManifestResolutionError.
func (r *ResolveImplementation) Resolve(ctx context.Context, network *config.Network, fingerprint string) (common.Address, error) {
	manifest, err := r.manifests.ReadManifest(ctx, network)
	if err != nil {
		return common.Address{}, &domain.ManifestResolutionError{
			Network:     network.Name,
			Fingerprint: fingerprint,
			Err:         err,
		}
	}

	impl, ok := manifest.Implementation(fingerprint)
	if !ok {
		return common.Address{}, &domain.ManifestResolutionError{
			Network:     network.Name,
			Fingerprint: models.NormalizeVersion(fingerprint),
		}
	}

	if !common.IsHexAddress(impl.Address) {
		return common.Address{}, &domain.ManifestResolutionError{
			Network:     network.Name,
			Fingerprint: fingerprint,
			Err:         fmt.Errorf("malformed implementation address %q", impl.Address),
		}
	}

	return common.HexToAddress(impl.Address), nil
}
