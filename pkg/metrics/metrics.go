// Package metrics exposes run counters and store gauges in Prometheus format.
package metrics

import (
	"fmt"
	"time"

	"github.com/mchmarny/lstvscan/pkg/level"
	"github.com/mchmarny/lstvscan/pkg/risk"
	"github.com/mchmarny/lstvscan/pkg/uncertainty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace         = "lstvscan"
	pipelineSubsystem = "pipeline"
	storeSubsystem    = "store"
)

// Outcome is the terminal state of one study in a run.
type Outcome string

const (
	OutcomeScored      Outcome = "scored"
	OutcomeIncomplete  Outcome = "incomplete"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeFailed      Outcome = "failed"
)

// Pipeline holds the per-run metrics. All methods are safe for concurrent
// use and tolerate a nil receiver.
type Pipeline struct {
	// StudiesTotal counts studies by outcome.
	StudiesTotal *prometheus.CounterVec

	// RiskTotal counts classified studies by label.
	RiskTotal *prometheus.CounterVec

	// Entropy observes per-pixel entropy by junction.
	Entropy *prometheus.HistogramVec

	// PeakConfidence observes peak confidence by junction.
	PeakConfidence *prometheus.HistogramVec

	// StudyDuration observes wall time spent on one study.
	StudyDuration prometheus.Histogram
}

// New creates the pipeline metrics and registers them with reg. A nil reg
// leaves them unregistered.
func New(reg prometheus.Registerer) *Pipeline {
	f := promauto.With(reg)
	return &Pipeline{
		StudiesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: pipelineSubsystem,
				Name:      "studies_total",
				Help:      "Studies processed by outcome",
			},
			[]string{"outcome"},
		),
		RiskTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: pipelineSubsystem,
				Name:      "risk_total",
				Help:      "Classified studies by risk label",
			},
			[]string{"label"},
		),
		Entropy: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: pipelineSubsystem,
				Name:      "entropy",
				Help:      "Per-pixel heatmap entropy by junction",
				Buckets:   prometheus.LinearBuckets(0, 1, 10),
			},
			[]string{"level"},
		),
		PeakConfidence: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: pipelineSubsystem,
				Name:      "peak_confidence",
				Help:      "Heatmap peak confidence by junction",
				Buckets:   []float64{0.5, 0.8, 0.9, 0.95, 0.97, 0.985, 0.99, 1},
			},
			[]string{"level"},
		),
		StudyDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: pipelineSubsystem,
				Name:      "study_duration_seconds",
				Help:      "Time spent scoring one study",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
		),
	}
}

func (p *Pipeline) ObserveOutcome(o Outcome) {
	if p == nil {
		return
	}
	p.StudiesTotal.WithLabelValues(string(o)).Inc()
}

func (p *Pipeline) ObserveRecord(r uncertainty.Record) {
	if p == nil {
		return
	}
	p.Entropy.WithLabelValues(r.Level.Key()).Observe(r.Entropy)
	p.PeakConfidence.WithLabelValues(r.Level.Key()).Observe(r.PeakConfidence)
}

func (p *Pipeline) ObserveLabel(l risk.Label) {
	if p == nil {
		return
	}
	p.RiskTotal.WithLabelValues(labelValue(l)).Inc()
}

func (p *Pipeline) ObserveDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.StudyDuration.Observe(d.Seconds())
}

func labelValue(l risk.Label) string {
	b, err := l.MarshalText()
	if err != nil {
		return "unknown"
	}
	return string(b)
}

// LevelKeys lists the level label values in junction order.
func LevelKeys() []string {
	keys := make([]string, 0, level.Count)
	for _, l := range level.All() {
		keys = append(keys, l.Key())
	}
	return keys
}

// WriteTextfile writes everything g gathers to path in the node exporter
// textfile format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
