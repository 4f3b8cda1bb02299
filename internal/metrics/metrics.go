// Package metrics holds the crawl counters and exports them as a
// Prometheus textfile.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/go-scripts/climate/internal/fetcher"
)

// Stage label values.
const (
	StageURLs = "urls"
	StageData = "data"
)

// Fetch outcome label values.
const (
	OutcomeOK      = "ok"
	OutcomeTimeout = "timeout"
	OutcomeError   = "error"
)

// Outcome maps a fetch error onto the outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, fetcher.ErrWaitTimeout):
		return OutcomeTimeout
	default:
		return OutcomeError
	}
}

// Metrics holds the counters of one process run. Each instance owns its
// registry so several can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	PageFetches     *prometheus.CounterVec   // labels: stage, outcome
	FetchDuration   *prometheus.HistogramVec // labels: stage
	DialogsAccepted prometheus.Counter
	ItemsSkipped    *prometheus.CounterVec // labels: stage

	Countries prometheus.Counter
	Cities    prometheus.Counter
	Rows      prometheus.Counter

	StageDuration *prometheus.GaugeVec // labels: stage
}

// New creates and registers all crawl metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PageFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climate",
			Name:      "page_fetches_total",
			Help:      "Page loads by stage and outcome.",
		}, []string{"stage", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "climate",
			Name:      "fetch_duration_seconds",
			Help:      "Time spent loading a page and waiting for its selectors.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"stage"}),
		DialogsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "climate",
			Name:      "dialogs_accepted_total",
			Help:      "JavaScript dialogs accepted while loading pages.",
		}),
		ItemsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climate",
			Name:      "items_skipped_total",
			Help:      "Continents, countries or cities skipped after a failure.",
		}, []string{"stage"}),
		Countries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "climate",
			Name:      "countries_discovered_total",
			Help:      "Country links accepted from continent pages.",
		}),
		Cities: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "climate",
			Name:      "cities_discovered_total",
			Help:      "City links accepted from country pages.",
		}),
		Rows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "climate",
			Name:      "rows_produced_total",
			Help:      "City-month rows added to the tidy dataset.",
		}),
		StageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "climate",
			Name:      "stage_duration_seconds",
			Help:      "Wall time of the last completed stage.",
		}, []string{"stage"}),
	}

	m.registry.MustRegister(
		m.PageFetches,
		m.FetchDuration,
		m.DialogsAccepted,
		m.ItemsSkipped,
		m.Countries,
		m.Cities,
		m.Rows,
		m.StageDuration,
	)
	return m
}

// WriteTextfile writes all metrics in the text exposition format for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
