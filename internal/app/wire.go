//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
	"github.com/spf13/viper"

	"github.com/trebuchet-org/treb-release/internal/adapters"
	"github.com/trebuchet-org/treb-release/internal/config"
	"github.com/trebuchet-org/treb-release/internal/logging"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// InitApp creates a fully wired App instance. The cleanup releases the RPC
// connection and the registry database.
func InitApp(v *viper.Viper) (*App, func(), error) {
	wire.Build(
		// Configuration
		config.Provider,
		logging.LoggingSet,

		// Adapters
		adapters.AllAdapters,

		// Use cases
		usecase.NewResolveImplementation,
		usecase.NewReleaseContract,
		usecase.NewFingerprintArtifact,
		usecase.NewListReleases,

		// App
		NewApp,
	)
	return nil, nil, nil
}
