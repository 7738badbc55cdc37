// Package pipeline scores selected study series in parallel and merges the
// results through a single writer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mchmarny/lstvscan/pkg/heatmap"
	"github.com/mchmarny/lstvscan/pkg/metrics"
	"github.com/mchmarny/lstvscan/pkg/result"
	"github.com/mchmarny/lstvscan/pkg/risk"
	"github.com/mchmarny/lstvscan/pkg/series"
	"github.com/mchmarny/lstvscan/pkg/uncertainty"
	"github.com/mchmarny/lstvscan/pkg/volume"
	"golang.org/x/sync/errgroup"
)

const DefaultWorkers = 4

// Report is the outcome of one run.
type Report struct {
	RunID      string               `json:"run_id" yaml:"runID"`
	StartedAt  time.Time            `json:"started_at" yaml:"startedAt"`
	FinishedAt time.Time            `json:"finished_at" yaml:"finishedAt"`
	Studies    int                  `json:"studies" yaml:"studies"`
	Results    []result.StudyResult `json:"results" yaml:"results"`
	Skipped    []result.Skip        `json:"skipped" yaml:"skipped"`
}

// Runner drives the per-study work: volume, heatmaps, metrics, aggregation.
type Runner struct {
	loader     volume.Loader
	source     heatmap.Source
	calc       *uncertainty.Calculator
	agg        *result.Aggregator
	workers    int
	metrics    *metrics.Pipeline
	classifier *risk.Classifier
	logger     *slog.Logger
}

type Option func(*Runner)

func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

func WithMetrics(p *metrics.Pipeline) Option {
	return func(r *Runner) { r.metrics = p }
}

// WithClassifier labels each scored study for logs and metrics.
func WithClassifier(c *risk.Classifier) Option {
	return func(r *Runner) { r.classifier = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewRunner(loader volume.Loader, source heatmap.Source, calc *uncertainty.Calculator, agg *result.Aggregator, opts ...Option) (*Runner, error) {
	if loader == nil {
		return nil, errors.New("volume loader required")
	}
	if source == nil {
		return nil, errors.New("heatmap source required")
	}
	if calc == nil {
		calc = uncertainty.NewCalculator()
	}

	r := &Runner{
		loader:  loader,
		source:  source,
		calc:    calc,
		workers: DefaultWorkers,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	if agg == nil {
		agg = result.NewAggregator(result.PolicyExclude, r.logger)
	}
	r.agg = agg
	return r, nil
}

// outcome is what one worker hands to the merge step.
type outcome struct {
	result result.StudyResult
	skip   *result.Skip
}

// Run scores every selection. Per-study failures become skips; the returned
// error is non-nil only when ctx ends before all studies were attempted.
func (r *Runner) Run(ctx context.Context, sel []series.Selection) (*Report, error) {
	rep := &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Studies:   len(sel),
	}
	r.logger.Info("run started", "run_id", rep.RunID, "studies", len(sel), "workers", r.workers)

	outs := make([]outcome, len(sel))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, s := range sel {
		g.Go(func() error {
			outs[i] = r.process(gctx, s)
			return nil
		})
	}
	_ = g.Wait() // per-study errors are carried in outs

	// A study key is recorded at most once, as a result or as a skip.
	set := result.NewSet()
	skipped := make(map[result.Key]bool)
	for _, o := range outs {
		sk := o.skip
		if sk == nil {
			err := set.Append(o.result)
			if err == nil {
				continue
			}
			r.logger.Warn("skipping duplicate study", "study_id", o.result.StudyID, "series_id", o.result.SeriesID)
			sk = &result.Skip{
				StudyID:  o.result.StudyID,
				SeriesID: o.result.SeriesID,
				Kind:     result.SkipFailed,
				Reason:   err.Error(),
			}
		}
		k := result.Key{StudyID: sk.StudyID, SeriesID: sk.SeriesID}
		if skipped[k] {
			r.logger.Warn("dropping repeated skip", "study_id", sk.StudyID, "series_id", sk.SeriesID, "kind", string(sk.Kind))
			continue
		}
		skipped[k] = true
		rep.Skipped = append(rep.Skipped, *sk)
	}
	rep.Results = set.All()
	rep.FinishedAt = time.Now().UTC()

	r.logger.Info("run finished",
		"run_id", rep.RunID,
		"results", len(rep.Results),
		"skipped", len(rep.Skipped),
		"duration", rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond).String())

	if err := ctx.Err(); err != nil {
		return rep, fmt.Errorf("run %s interrupted: %w", rep.RunID, err)
	}
	return rep, nil
}

func (r *Runner) process(ctx context.Context, s series.Selection) outcome {
	start := time.Now()
	defer func() { r.metrics.ObserveDuration(time.Since(start)) }()

	log := r.logger.With("study_id", s.StudyID, "series_id", s.SeriesID)

	v, err := r.loader.Load(ctx, s.StudyID, s.SeriesID)
	if err != nil {
		return r.skip(log, s, err)
	}

	st, err := r.source.Heatmaps(ctx, v)
	if err != nil {
		return r.skip(log, s, err)
	}

	records, errs := r.calc.ComputeStack(st)
	for l, e := range errs {
		log.Warn("invalid heatmap", "level", l.String(), "error", e)
	}
	for _, rec := range records {
		r.metrics.ObserveRecord(rec)
	}

	res, err := r.agg.Aggregate(s.StudyID, s.SeriesID, records)
	if err != nil {
		return r.skip(log, s, err)
	}

	r.metrics.ObserveOutcome(metrics.OutcomeScored)
	if r.classifier != nil && !res.Incomplete() {
		label := r.classifier.ClassifyStudy(res)
		r.metrics.ObserveLabel(label)
		log.Debug("study scored", "risk", label.String())
	} else {
		log.Debug("study scored", "incomplete", res.Incomplete())
	}
	return outcome{result: res}
}

func (r *Runner) skip(log *slog.Logger, s series.Selection, err error) outcome {
	kind, o := classifyErr(err)
	r.metrics.ObserveOutcome(o)
	if kind != result.SkipIncomplete {
		// incomplete studies are already logged by the aggregator
		log.Warn("skipping study", "kind", string(kind), "error", err)
	}
	return outcome{skip: &result.Skip{
		StudyID:  s.StudyID,
		SeriesID: s.SeriesID,
		Kind:     kind,
		Reason:   err.Error(),
	}}
}

func classifyErr(err error) (result.SkipKind, metrics.Outcome) {
	switch {
	case errors.Is(err, volume.ErrUnavailable):
		return result.SkipUnavailable, metrics.OutcomeUnavailable
	case result.IsIncomplete(err):
		return result.SkipIncomplete, metrics.OutcomeIncomplete
	default:
		return result.SkipFailed, metrics.OutcomeFailed
	}
}
