package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mchmarny/lstvscan/pkg/config"
	"github.com/mchmarny/lstvscan/pkg/data"
	"github.com/mchmarny/lstvscan/pkg/guard"
	"github.com/mchmarny/lstvscan/pkg/heatmap"
	"github.com/mchmarny/lstvscan/pkg/metrics"
	"github.com/mchmarny/lstvscan/pkg/pipeline"
	"github.com/mchmarny/lstvscan/pkg/result"
	"github.com/mchmarny/lstvscan/pkg/risk"
	"github.com/mchmarny/lstvscan/pkg/series"
	"github.com/mchmarny/lstvscan/pkg/uncertainty"
	"github.com/mchmarny/lstvscan/pkg/volume"
	"github.com/prometheus/client_golang/prometheus"
	urfave "github.com/urfave/cli/v3"
)

var (
	seriesFileFlag = &urfave.StringFlag{
		Name:     "series",
		Usage:    "Path to the series description CSV (study_id, series_id, series_description)",
		Required: true,
	}

	validIDsFlag = &urfave.StringFlag{
		Name:  "valid-ids",
		Usage: "Path or http(s) URL of the validation study ids (.npy, .yaml, .json or text)",
	}

	dicomDirFlag = &urfave.StringFlag{
		Name:  "dicom-dir",
		Usage: "Root of <study_id>/<series_id>/*.dcm volumes (optional)",
	}

	heatmapDirFlag = &urfave.StringFlag{
		Name:  "heatmap-dir",
		Usage: "Directory of precomputed <study_id>_<series_id>.json stacks (optional, defaults to the mock localizer)",
	}

	heatmapURLFlag = &urfave.StringFlag{
		Name:  "heatmap-url",
		Usage: "Base URL serving <study_id>_<series_id>.json stacks (optional, takes precedence over --heatmap-dir)",
	}

	modeFlag = &urfave.StringFlag{
		Name:  "mode",
		Usage: "Run mode [trial, debug, prod]",
		Value: string(pipeline.ModeTrial),
	}

	studyFlag = &urfave.Int64Flag{
		Name:  "study",
		Usage: "Study id to score in debug mode (optional, defaults to the first retained study)",
	}

	workersFlag = &urfave.IntFlag{
		Name:  "workers",
		Usage: "Number of studies scored concurrently (optional, overrides config)",
	}

	trialSizeFlag = &urfave.IntFlag{
		Name:  "trial-size",
		Usage: "Number of studies sampled in trial mode (optional, overrides config)",
	}

	seedFlag = &urfave.IntFlag{
		Name:  "seed",
		Usage: "Seed of the trial sample and mock localizer (optional, overrides config)",
	}

	metricsFileFlag = &urfave.StringFlag{
		Name:  "metrics-file",
		Usage: "Write run metrics in Prometheus textfile format to this path (optional)",
	}

	runCmd = &urfave.Command{
		Name:   "run",
		Usage:  "Score the selected studies and persist the results",
		Action: cmdRun,
		Flags: []urfave.Flag{
			seriesFileFlag,
			validIDsFlag,
			dicomDirFlag,
			heatmapDirFlag,
			heatmapURLFlag,
			modeFlag,
			studyFlag,
			workersFlag,
			trialSizeFlag,
			seedFlag,
			metricsFileFlag,
		},
	}
)

// RunSummary is printed at the end of a run.
type RunSummary struct {
	Run           *data.Run              `json:"run" yaml:"run"`
	Tally         risk.Tally             `json:"tally" yaml:"tally"`
	Shares        map[risk.Label]float64 `json:"shares" yaml:"shares"`
	DetectionRate float64                `json:"detection_rate" yaml:"detectionRate"`
	Levels        []result.LevelStats    `json:"levels" yaml:"levels"`
	Skipped       []result.Skip          `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

func cmdRun(ctx context.Context, cmd *urfave.Command) error {
	cfg, err := getConfig(ctx)
	if err != nil {
		return err
	}
	c := *cfg.Config
	if cmd.IsSet(workersFlag.Name) {
		c.Workers = cmd.Int(workersFlag.Name)
	}
	if cmd.IsSet(trialSizeFlag.Name) {
		c.TrialSize = cmd.Int(trialSizeFlag.Name)
	}
	if cmd.IsSet(seedFlag.Name) {
		c.Seed = uint64(cmd.Int(seedFlag.Name))
	}
	if err := c.Validate(); err != nil {
		return err
	}

	mode, err := pipeline.ParseMode(cmd.String(modeFlag.Name))
	if err != nil {
		return err
	}
	policy, err := result.ParsePolicy(c.IncompletePolicy)
	if err != nil {
		return err
	}
	classifier, err := risk.NewClassifier(c.Thresholds)
	if err != nil {
		return err
	}

	g, err := loadGuard(ctx, cmd.String(validIDsFlag.Name), c.RequireValidationSet)
	if err != nil {
		return err
	}

	list, err := series.ReadFile(cmd.String(seriesFileFlag.Name))
	if err != nil {
		return err
	}
	sel, err := pipeline.SelectStudies(g, pipeline.Selector{
		Mode:      mode,
		TrialSize: c.TrialSize,
		Seed:      c.Seed,
		StudyID:   cmd.Int64(studyFlag.Name),
	}, series.SelectSagittalT2(list))
	if err != nil {
		return err
	}

	var loader volume.Loader = volume.IDLoader{}
	if dir := cmd.String(dicomDirFlag.Name); dir != "" {
		loader = volume.NewDirLoader(dir)
	}
	var source heatmap.Source = heatmap.NewMockSource(c.Seed, heatmap.DefaultMockSize)
	switch {
	case cmd.String(heatmapURLFlag.Name) != "":
		source = heatmap.NewURLSource(cmd.String(heatmapURLFlag.Name))
	case cmd.String(heatmapDirFlag.Name) != "":
		source = heatmap.NewDirSource(cmd.String(heatmapDirFlag.Name))
	default:
		slog.Warn("no heatmap source, using the mock localizer")
	}

	reg := prometheus.NewRegistry()
	calc := uncertainty.NewCalculator(
		uncertainty.WithGridSize(c.GridSize),
		uncertainty.WithDetectionThreshold(c.DetectionThreshold),
	)
	runner, err := pipeline.NewRunner(loader, source, calc, result.NewAggregator(policy, slog.Default()),
		pipeline.WithWorkers(c.Workers),
		pipeline.WithMetrics(metrics.New(reg)),
		pipeline.WithClassifier(classifier),
	)
	if err != nil {
		return err
	}

	rep, runErr := runner.Run(ctx, sel)
	if rep == nil {
		return runErr
	}

	run := &data.Run{
		ID:                 rep.RunID,
		StartedAt:          rep.StartedAt,
		FinishedAt:         rep.FinishedAt,
		Mode:               string(mode),
		Policy:             policy.String(),
		Thresholds:         c.Thresholds,
		GridSize:           c.GridSize,
		DetectionThreshold: c.DetectionThreshold,
		Studies:            rep.Studies,
		Results:            len(rep.Results),
		Skipped:            len(rep.Skipped),
		Guarded:            g.Enabled(),
	}
	if err := saveReport(cfg, run, rep); err != nil {
		return err
	}

	if p := cmd.String(metricsFileFlag.Name); p != "" {
		if err := metrics.WriteTextfile(p, reg); err != nil {
			return err
		}
	}

	tally := risk.Count(classifier.ClassifyAll(rep.Results))
	if err := output(cmd, cfg, RunSummary{
		Run:           run,
		Tally:         tally,
		Shares:        labelShares(tally),
		DetectionRate: tally.DetectionRate(),
		Levels:        result.Summarize(rep.Results),
		Skipped:       rep.Skipped,
	}); err != nil {
		return err
	}
	return runErr
}

// labelShares is the percentage of scored studies carrying each label.
func labelShares(t risk.Tally) map[risk.Label]float64 {
	out := make(map[risk.Label]float64, 3)
	for _, l := range risk.Labels() {
		out[l] = t.Share(l)
	}
	return out
}

// loadGuard reads the validation ids at path, if any, and builds the guard.
// A missing list is a configuration error when mandatory is set.
func loadGuard(ctx context.Context, path string, mandatory bool) (*guard.Guard, error) {
	var ids []int64
	if path != "" {
		var err error
		if ids, err = guard.LoadIDs(ctx, path); err != nil {
			return nil, &config.ConfigurationError{Field: "valid_ids", Reason: "cannot load " + path, Err: err}
		}
	}
	return guard.New(ids, mandatory, slog.Default())
}

func saveReport(cfg *appConfig, run *data.Run, rep *pipeline.Report) error {
	if err := data.SaveRun(cfg.DB, run); err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	if err := data.SaveResults(cfg.DB, run.ID, rep.Results); err != nil {
		return fmt.Errorf("saving results: %w", err)
	}
	if err := data.SaveSkips(cfg.DB, run.ID, rep.Skipped); err != nil {
		return fmt.Errorf("saving skips: %w", err)
	}
	slog.Info("run saved", "run_id", run.ID, "results", run.Results, "skipped", run.Skipped, "db", cfg.DBPath)
	return nil
}
