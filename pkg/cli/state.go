package cli

import (
	"context"
	"database/sql"

	"github.com/mchmarny/lstvscan/pkg/data"
	urfave "github.com/urfave/cli/v3"
)

const runsListDefault = 10

var (
	runsLimitFlag = &urfave.IntFlag{
		Name:  "runs",
		Usage: "Number of recent runs to list",
		Value: runsListDefault,
	}

	stateCmd = &urfave.Command{
		Name:   "state",
		Usage:  "Show row counts and recent runs",
		Action: cmdState,
		Flags: []urfave.Flag{
			runsLimitFlag,
		},
	}
)

// DataState summarizes the store.
type DataState struct {
	DBPath string           `json:"db" yaml:"db"`
	Counts map[string]int64 `json:"counts" yaml:"counts"`
	Runs   []*data.Run      `json:"runs" yaml:"runs"`
}

func cmdState(ctx context.Context, cmd *urfave.Command) error {
	cfg, err := getConfig(ctx)
	if err != nil {
		return err
	}

	st, err := getState(cfg.DB, cmd.Int(runsLimitFlag.Name))
	if err != nil {
		return err
	}
	st.DBPath = cfg.DBPath
	return output(cmd, cfg, st)
}

func getState(db *sql.DB, runs int) (*DataState, error) {
	counts, err := data.GetDataState(db)
	if err != nil {
		return nil, err
	}
	list, err := data.GetRuns(db, runs)
	if err != nil {
		return nil, err
	}
	return &DataState{Counts: counts, Runs: list}, nil
}
