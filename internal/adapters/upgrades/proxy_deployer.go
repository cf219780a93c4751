package upgrades

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/trebuchet-org/treb-release/internal/domain"
	"github.com/trebuchet-org/treb-release/internal/domain/bytecode"
	"github.com/trebuchet-org/treb-release/internal/domain/config"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// Proxy kinds as recorded in the manifest
const (
	KindUUPS        = "uups"
	KindTransparent = "transparent"
)

// ManifestRegistry is the manifest access the deployer needs
type ManifestRegistry interface {
	usecase.ManifestReader
	RegisterImplementation(ctx context.Context, network *config.Network, version string, impl models.ManifestImplementation) error
	RegisterProxy(ctx context.Context, network *config.Network, proxy models.ManifestProxy) error
}

// ProxyDeployer deploys logic contracts behind ERC1967 proxies and keeps the
// upgrade manifest current. A logic contract whose fingerprint is already
// in the manifest is reused instead of redeployed.
type ProxyDeployer struct {
	chain         usecase.ChainClient
	artifacts     usecase.ArtifactRepository
	manifests     ManifestRegistry
	proxyArtifact string
	log           *slog.Logger
}

// NewProxyDeployer creates a deployer using proxyArtifact for the proxy
func NewProxyDeployer(chain usecase.ChainClient, artifacts usecase.ArtifactRepository, manifests ManifestRegistry, proxyArtifact string, log *slog.Logger) *ProxyDeployer {
	if proxyArtifact == "" {
		proxyArtifact = config.DefaultProxyArtifact
	}
	return &ProxyDeployer{
		chain:         chain,
		artifacts:     artifacts,
		manifests:     manifests,
		proxyArtifact: proxyArtifact,
		log:           log.With("component", "ProxyDeployer"),
	}
}

// NewProxyDeployerFromConfig reads the proxy artifact from [upgrades]
func NewProxyDeployerFromConfig(cfg *config.RuntimeConfig, chain usecase.ChainClient, artifacts usecase.ArtifactRepository, manifests ManifestRegistry, log *slog.Logger) *ProxyDeployer {
	return NewProxyDeployer(chain, artifacts, manifests, cfg.Release.Upgrades.ProxyArtifact, log)
}

// DeployProxy deploys (or reuses) the logic contract and a fresh proxy whose
// constructor delegatecalls initData, if any, into the logic contract
func (d *ProxyDeployer) DeployProxy(ctx context.Context, network *config.Network, logic *models.Artifact, initData []byte) (*usecase.ProxyDeployment, error) {
	code, err := bytecode.Decode(logic.Bytecode)
	if err != nil {
		return nil, err
	}
	version, err := bytecode.Fingerprint(code)
	if err != nil {
		return nil, err
	}

	result := &usecase.ProxyDeployment{}

	impl, found, err := d.lookup(ctx, network, version)
	if err != nil {
		return nil, err
	}
	if found {
		d.log.Debug("reusing implementation", "version", version, "address", impl.Hex())
		result.Implementation = impl
		result.ImplementationReused = true
	} else {
		addr, tx, err := d.chain.Deploy(ctx, code, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to deploy implementation: %w", err)
		}
		entry := models.ManifestImplementation{Address: addr.Hex(), TxHash: tx.Hash.Hex()}
		if err := d.manifests.RegisterImplementation(ctx, network, version, entry); err != nil {
			return nil, fmt.Errorf("failed to register implementation: %w", err)
		}
		result.Implementation = addr
		result.ImplementationTx = tx
	}

	proxyArt, err := d.artifacts.GetArtifact(ctx, d.proxyArtifact)
	if err != nil {
		return nil, fmt.Errorf("failed to load proxy artifact %s: %w", d.proxyArtifact, err)
	}
	proxyCode, err := bytecode.Decode(proxyArt.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("proxy artifact %s: %w", d.proxyArtifact, err)
	}
	ctorArgs, kind, err := d.proxyConstructorArgs(proxyArt.ABI.Constructor.Inputs, result.Implementation, initData)
	if err != nil {
		return nil, err
	}

	proxy, tx, err := d.chain.Deploy(ctx, proxyCode, ctorArgs)
	if err != nil {
		return nil, fmt.Errorf("failed to deploy proxy: %w: %w", domain.ErrProxyConstructor, err)
	}
	if err := d.manifests.RegisterProxy(ctx, network, models.ManifestProxy{Address: proxy.Hex(), TxHash: tx.Hash.Hex(), Kind: kind}); err != nil {
		return nil, fmt.Errorf("failed to register proxy: %w", err)
	}

	result.Proxy = proxy
	result.ProxyTx = tx
	return result, nil
}

func (d *ProxyDeployer) lookup(ctx context.Context, network *config.Network, version string) (common.Address, bool, error) {
	manifest, err := d.manifests.ReadManifest(ctx, network)
	if errors.Is(err, domain.ErrNotFound) {
		return common.Address{}, false, nil
	}
	if err != nil {
		return common.Address{}, false, err
	}
	impl, ok := manifest.Implementation(version)
	if !ok || !common.IsHexAddress(impl.Address) {
		return common.Address{}, false, nil
	}
	return common.HexToAddress(impl.Address), true, nil
}

// proxyConstructorArgs supports ERC1967Proxy(logic, data) and
// TransparentUpgradeableProxy(logic, admin, data)
func (d *ProxyDeployer) proxyConstructorArgs(inputs abi.Arguments, logic common.Address, data []byte) ([]byte, string, error) {
	if data == nil {
		data = []byte{}
	}
	switch len(inputs) {
	case 2:
		packed, err := inputs.Pack(logic, data)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode proxy constructor: %w", err)
		}
		return packed, KindUUPS, nil
	case 3:
		packed, err := inputs.Pack(logic, d.chain.Sender(), data)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode proxy constructor: %w", err)
		}
		return packed, KindTransparent, nil
	}
	return nil, "", fmt.Errorf("proxy artifact %s has an unsupported constructor with %d inputs", d.proxyArtifact, len(inputs))
}

// Ensure the deployer implements the interface
var _ usecase.ProxyDeployer = (*ProxyDeployer)(nil)
