// Package metrics counts generation attempts and per-seed outcomes. The
// collector owns a private registry so a CLI run can dump it to a
// node_exporter textfile when it finishes.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const DefaultNamespace = "dragons"

type Collector struct {
	registry *prometheus.Registry

	attemptsTotal *prometheus.CounterVec
	resultsTotal  *prometheus.CounterVec
	seedDuration  *prometheus.HistogramVec
	batchesTotal  *prometheus.CounterVec

	logger *zap.Logger
}

func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		attemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_attempts_total",
				Help:      "Generation attempts by language and attempt status",
			},
			[]string{"language", "status"},
		),
		resultsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "seed_results_total",
				Help:      "Per-seed results by language and outcome",
			},
			[]string{"language", "outcome"},
		),
		seedDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "seed_duration_seconds",
				Help:      "Wall time spent producing one seed's result",
				Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80, 160, 320},
			},
			[]string{"language"},
		),
		batchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_total",
				Help:      "Batch runs by mode and language",
			},
			[]string{"mode", "language"},
		),
		logger: logger.With(zap.String("component", "metrics")),
	}
}

func (c *Collector) ObserveAttempt(language, status string) {
	c.attemptsTotal.WithLabelValues(language, status).Inc()
}

func (c *Collector) ObserveResult(language, outcome string, d time.Duration) {
	c.resultsTotal.WithLabelValues(language, outcome).Inc()
	c.seedDuration.WithLabelValues(language).Observe(d.Seconds())
}

func (c *Collector) ObserveBatch(mode, language string) {
	c.batchesTotal.WithLabelValues(mode, language).Inc()
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// WriteTextfile writes every collected metric to path in the text exposition
// format. The file is written atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	c.logger.Debug("metrics written", zap.String("path", path))
	return nil
}
