package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mchmarny/lstvscan/pkg/data"
	urfave "github.com/urfave/cli/v3"
)

var (
	exportOutFlag = &urfave.StringFlag{
		Name:    "out",
		Aliases: []string{"o"},
		Usage:   "CSV file path (optional, defaults to stdout)",
	}

	exportCmd = &urfave.Command{
		Name:   "export",
		Usage:  "Export the results of a run as CSV",
		Action: cmdExport,
		Flags: []urfave.Flag{
			runIDFlag,
			exportOutFlag,
		},
	}
)

func cmdExport(ctx context.Context, cmd *urfave.Command) error {
	cfg, err := getConfig(ctx)
	if err != nil {
		return err
	}

	results, err := data.GetResults(cfg.DB, cmd.String(runIDFlag.Name))
	if err != nil {
		return err
	}

	var w io.Writer = cmd.Root().Writer
	if p := cmd.String(exportOutFlag.Name); p != "" {
		f, err := os.Create(p)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", p, err)
		}
		defer f.Close()
		w = f
	}

	if err := data.ExportCSV(w, results); err != nil {
		return err
	}
	slog.Debug("results exported", "rows", len(results))
	return nil
}
