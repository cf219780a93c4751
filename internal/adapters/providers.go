package adapters

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/wire"

	"github.com/trebuchet-org/treb-release/internal/adapters/abi"
	"github.com/trebuchet-org/treb-release/internal/adapters/blockchain"
	internalconfig "github.com/trebuchet-org/treb-release/internal/adapters/config"
	"github.com/trebuchet-org/treb-release/internal/adapters/contracts"
	"github.com/trebuchet-org/treb-release/internal/adapters/fs"
	"github.com/trebuchet-org/treb-release/internal/adapters/manifest"
	"github.com/trebuchet-org/treb-release/internal/adapters/metrics"
	"github.com/trebuchet-org/treb-release/internal/adapters/progress"
	"github.com/trebuchet-org/treb-release/internal/adapters/repository/records"
	"github.com/trebuchet-org/treb-release/internal/adapters/repository/sqlite"
	"github.com/trebuchet-org/treb-release/internal/adapters/upgrades"
	"github.com/trebuchet-org/treb-release/internal/adapters/verification"
	"github.com/trebuchet-org/treb-release/internal/domain/config"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// ProvideRecordStore selects the registry backend from [registry] backend.
// The cleanup closes the SQLite database when that backend is used.
func ProvideRecordStore(cfg *config.RuntimeConfig, writer *fs.FileWriter, log *slog.Logger) (usecase.RecordStore, func(), error) {
	switch cfg.Release.Registry.Backend {
	case config.RegistryBackendFile, "":
		return records.NewFileStoreFromConfig(cfg, writer, log), func() {}, nil
	case config.RegistryBackendSQLite:
		store, err := sqlite.NewStoreFromConfig(cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				log.Warn("failed to close registry database", "error", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown registry backend %q (expected %q or %q)",
			cfg.Release.Registry.Backend, config.RegistryBackendFile, config.RegistryBackendSQLite)
	}
}

// ProvideChainClient creates the signing client and closes it on cleanup
func ProvideChainClient(cfg *config.RuntimeConfig, log *slog.Logger) (*blockchain.Client, func()) {
	client := blockchain.NewClientFromConfig(cfg, log)
	return client, client.Close
}

// ProvideProgressSink shows progress on stderr unless output is JSON
func ProvideProgressSink(cfg *config.RuntimeConfig) usecase.ProgressSink {
	if cfg.JSON {
		return progress.NewNopSink()
	}
	return progress.NewReleaseProgress(os.Stderr, !cfg.NonInteractive)
}

// FSSet provides filesystem-based implementations
var FSSet = wire.NewSet(
	fs.NewFileWriter,

	ProvideRecordStore,

	manifest.NewStoreFromConfig,
	wire.Bind(new(usecase.ManifestReader), new(*manifest.Store)),
	wire.Bind(new(upgrades.ManifestRegistry), new(*manifest.Store)),

	contracts.NewArtifactRepositoryFromConfig,
	wire.Bind(new(usecase.ArtifactRepository), new(*contracts.ArtifactRepository)),
)

// BlockchainSet provides chain access and proxy deployment
var BlockchainSet = wire.NewSet(
	ProvideChainClient,
	wire.Bind(new(usecase.ChainClient), new(*blockchain.Client)),

	abi.NewEncoder,
	wire.Bind(new(usecase.CallEncoder), new(*abi.Encoder)),

	upgrades.NewProxyDeployerFromConfig,
	wire.Bind(new(usecase.ProxyDeployer), new(*upgrades.ProxyDeployer)),
)

// ConfigSet provides configuration-based implementations
var ConfigSet = wire.NewSet(
	internalconfig.NewNetworkResolverFromConfig,
	wire.Bind(new(usecase.NetworkResolver), new(*internalconfig.NetworkResolver)),
)

// VerificationSet provides source verification
var VerificationSet = wire.NewSet(
	verification.NewForgeVerifierFromConfig,
	wire.Bind(new(usecase.ContractVerifier), new(*verification.ForgeVerifier)),
)

// ObservabilitySet provides metrics and progress reporting
var ObservabilitySet = wire.NewSet(
	metrics.NewRecorderFromConfig,
	wire.Bind(new(usecase.ReleaseMetrics), new(*metrics.Recorder)),
	ProvideProgressSink,
)

// AllAdapters includes all adapter sets
var AllAdapters = wire.NewSet(
	FSSet,
	BlockchainSet,
	ConfigSet,
	VerificationSet,
	ObservabilitySet,
)
