// Package metrics records release outcomes as Prometheus counters. A CLI run
// is short lived, so the counters are written to a node_exporter textfile
// instead of being scraped.
package metrics

import (
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trebuchet-org/treb-release/internal/domain/config"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

// Recorder implements usecase.ReleaseMetrics
type Recorder struct {
	registry *prometheus.Registry
	textfile string

	releaseTotal *prometheus.CounterVec
	warningTotal *prometheus.CounterVec
	lastSuccess  *prometheus.GaugeVec
}

// NewRecorder creates a recorder on its own registry. An empty textfile
// makes Flush a no-op.
func NewRecorder(textfile string) *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		textfile: textfile,
		releaseTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "treb_release_total",
				Help: "Total number of release runs",
			},
			[]string{"network", "contract", "outcome"},
		),
		warningTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "treb_release_warnings_total",
				Help: "Total number of non-fatal release warnings",
			},
			[]string{"network", "stage"},
		),
		lastSuccess: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "treb_release_last_success_timestamp_seconds",
				Help: "Unix time of the last successful release",
			},
			[]string{"network", "contract"},
		),
	}
}

// NewRecorderFromConfig reads [metrics] textfile relative to the project root
func NewRecorderFromConfig(cfg *config.RuntimeConfig) *Recorder {
	path := cfg.Release.Metrics.Textfile
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(cfg.ProjectRoot, path)
	}
	return NewRecorder(path)
}

// ObserveRun records a finished run
func (r *Recorder) ObserveRun(network, contractType, outcome string) {
	r.releaseTotal.WithLabelValues(network, contractType, outcome).Inc()
	if outcome == "success" {
		r.lastSuccess.WithLabelValues(network, contractType).SetToCurrentTime()
	}
}

// ObserveWarning records a non-fatal warning
func (r *Recorder) ObserveWarning(network, stage string) {
	r.warningTotal.WithLabelValues(network, stage).Inc()
}

// Flush writes the registry to the textfile
func (r *Recorder) Flush() error {
	if r.textfile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.textfile), 0755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(r.textfile, r.registry)
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

var _ usecase.ReleaseMetrics = (*Recorder)(nil)
