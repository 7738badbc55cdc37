package cli

import (
	"context"
	"database/sql"

	"github.com/mchmarny/lstvscan/pkg/config"
	"github.com/mchmarny/lstvscan/pkg/data"
	"github.com/mchmarny/lstvscan/pkg/level"
	"github.com/mchmarny/lstvscan/pkg/rank"
	"github.com/mchmarny/lstvscan/pkg/risk"
	urfave "github.com/urfave/cli/v3"
)

const byLabelDefault = 5

var (
	runIDFlag = &urfave.StringFlag{
		Name:  "run",
		Usage: "Run id (optional, defaults to the latest run)",
	}

	rankKeyFlag = &urfave.StringFlag{
		Name:  "key",
		Usage: "Sort key [confidence, entropy] (optional, overrides config)",
	}

	rankLevelFlag = &urfave.StringFlag{
		Name:  "level",
		Usage: "Junction the key is read from, e.g. L5-S1 (optional, overrides config)",
	}

	topFlag = &urfave.IntFlag{
		Name:  "top",
		Usage: "Number of candidates to list, 0 lists all (optional, overrides config)",
	}

	byLabelFlag = &urfave.IntFlag{
		Name:  "by-label",
		Usage: "Number of candidates to list per risk label",
		Value: byLabelDefault,
	}

	rankCmd = &urfave.Command{
		Name:   "rank",
		Usage:  "List review candidates of a run",
		Action: cmdRank,
		Flags: []urfave.Flag{
			runIDFlag,
			rankKeyFlag,
			rankLevelFlag,
			topFlag,
			byLabelFlag,
		},
	}
)

// ReviewList is the ranked view of one run.
type ReviewList struct {
	RunID      string                          `json:"run_id" yaml:"runID"`
	Key        string                          `json:"key" yaml:"key"`
	Level      level.Level                     `json:"level" yaml:"level"`
	Thresholds risk.ThresholdConfig            `json:"thresholds" yaml:"thresholds"`
	Tally      risk.Tally                      `json:"tally" yaml:"tally"`
	Candidates []rank.Candidate                `json:"candidates" yaml:"candidates"`
	ByLabel    map[risk.Label][]rank.Candidate `json:"by_label,omitempty" yaml:"byLabel,omitempty"`
}

type reviewQuery struct {
	runID   string
	key     string
	level   string
	top     int
	byLabel int
}

func cmdRank(ctx context.Context, cmd *urfave.Command) error {
	cfg, err := getConfig(ctx)
	if err != nil {
		return err
	}

	q := reviewQuery{
		runID:   cmd.String(runIDFlag.Name),
		key:     cfg.Config.RankKey,
		level:   cfg.Config.RankLevel,
		top:     cfg.Config.TopN,
		byLabel: cmd.Int(byLabelFlag.Name),
	}
	if cmd.IsSet(rankKeyFlag.Name) {
		q.key = cmd.String(rankKeyFlag.Name)
	}
	if cmd.IsSet(rankLevelFlag.Name) {
		q.level = cmd.String(rankLevelFlag.Name)
	}
	if cmd.IsSet(topFlag.Name) {
		q.top = cmd.Int(topFlag.Name)
	}

	list, err := buildReviewList(cfg.DB, cfg.Config, q)
	if err != nil {
		return err
	}
	return output(cmd, cfg, list)
}

func buildReviewList(db *sql.DB, c *config.Config, q reviewQuery) (*ReviewList, error) {
	key, err := rank.ParseKey(q.key)
	if err != nil {
		return nil, err
	}
	lvl, err := level.Parse(q.level)
	if err != nil {
		return nil, err
	}
	classifier, err := risk.NewClassifier(c.Thresholds)
	if err != nil {
		return nil, err
	}

	runID := q.runID
	if runID == "" {
		if runID, err = data.GetLatestRunID(db); err != nil {
			return nil, err
		}
	}
	results, err := data.GetResults(db, runID)
	if err != nil {
		return nil, err
	}

	r := rank.New(key, lvl)
	list := &ReviewList{
		RunID:      runID,
		Key:        key.String(),
		Level:      lvl,
		Thresholds: classifier.Thresholds(),
		Tally:      risk.Count(classifier.ClassifyAll(results)),
		Candidates: r.Candidates(results, classifier, q.top),
	}
	if q.byLabel > 0 {
		list.ByLabel = r.TopByLabel(results, classifier, q.byLabel)
	}
	return list, nil
}
