package app

import (
	"log/slog"

	"github.com/trebuchet-org/treb-release/internal/domain/config"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// App is the main application container that holds all use cases
type App struct {
	// Configuration
	Config *config.RuntimeConfig
	Log    *slog.Logger

	// Use cases
	ReleaseContract     *usecase.ReleaseContract
	FingerprintArtifact *usecase.FingerprintArtifact
	ListReleases        *usecase.ListReleases
}

// NewApp creates a new application instance with all use cases
func NewApp(
	cfg *config.RuntimeConfig,
	log *slog.Logger,
	releaseContract *usecase.ReleaseContract,
	fingerprintArtifact *usecase.FingerprintArtifact,
	listReleases *usecase.ListReleases,
) *App {
	return &App{
		Config:              cfg,
		Log:                 log,
		ReleaseContract:     releaseContract,
		FingerprintArtifact: fingerprintArtifact,
		ListReleases:        listReleases,
	}
}
