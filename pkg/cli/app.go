// Package cli wires the lstvscan commands.
package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mchmarny/lstvscan/pkg/config"
	"github.com/mchmarny/lstvscan/pkg/data"
	"github.com/mchmarny/lstvscan/pkg/logging"
	urfave "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	appName = "lstvscan"

	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""

	debugFlag = &urfave.BoolFlag{
		Name:  "debug",
		Usage: "Prints verbose logs (optional, default: false)",
	}

	logLevelFlag = &urfave.StringFlag{
		Name:  "log-level",
		Usage: "Log level [debug, info, warn, error]",
		Value: "info",
	}

	dbFilePathFlag = &urfave.StringFlag{
		Name:    "db",
		Usage:   "Path to the Sqlite database file (optional, defaults to $HOME/.lstvscan/lstvscan.db)",
		Sources: urfave.EnvVars("LSTVSCAN_DB"),
	}

	configFlag = &urfave.StringFlag{
		Name:    "config",
		Usage:   "Path to the config file (optional, defaults to $HOME/.lstvscan/config.yaml)",
		Sources: urfave.EnvVars("LSTVSCAN_CONFIG"),
	}

	formatFlag = &urfave.StringFlag{
		Name:  "format",
		Usage: "Output format [json, yaml]",
		Value: formatJSON,
	}
)

// Execute creates and runs the CLI application.
func Execute() {
	initLogging(slog.LevelInfo.String())

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

type appConfig struct {
	DBPath   string
	Format   string
	LogLevel string
	Config   *config.Config
	DB       *sql.DB
}

type appConfigKey struct{}

func getConfig(ctx context.Context) (*appConfig, error) {
	cfg, ok := ctx.Value(appConfigKey{}).(*appConfig)
	if !ok || cfg == nil {
		return nil, errors.New("app config not initialized")
	}
	return cfg, nil
}

func newApp() *urfave.Command {
	return &urfave.Command{
		Name:                  appName,
		Version:               fmt.Sprintf("%s (%s - %s)", version, commit, date),
		Usage:                 "Rank spine MRI studies for transitional vertebra review by localizer uncertainty",
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Flags: []urfave.Flag{
			debugFlag,
			logLevelFlag,
			dbFilePathFlag,
			configFlag,
			formatFlag,
		},
		Commands: []*urfave.Command{
			runCmd,
			rankCmd,
			exportCmd,
			stateCmd,
			serveCmd,
		},
		Before: before,
		After:  after,
	}
}

func before(ctx context.Context, cmd *urfave.Command) (context.Context, error) {
	level := cmd.String(logLevelFlag.Name)
	if cmd.Bool(debugFlag.Name) {
		level = "debug"
	}
	initLogging(level)

	format := formatJSON
	if f := cmd.String(formatFlag.Name); f == formatYAML || f == "yml" {
		format = formatYAML
	}

	cfg, err := loadConfig(cmd.String(configFlag.Name))
	if err != nil {
		return ctx, err
	}

	dbPath := cmd.String(dbFilePathFlag.Name)
	if dbPath == "" {
		dir, _, err := config.GetOrCreateHomeDir(appName)
		if err != nil {
			return ctx, fmt.Errorf("resolving home dir: %w", err)
		}
		dbPath = filepath.Join(dir, data.DataFileName)
	}

	if err := data.Init(dbPath); err != nil {
		return ctx, fmt.Errorf("initializing database: %w", err)
	}

	db, err := data.GetDB(dbPath)
	if err != nil {
		return ctx, fmt.Errorf("opening database: %w", err)
	}

	return context.WithValue(ctx, appConfigKey{}, &appConfig{
		DBPath:   dbPath,
		Format:   format,
		LogLevel: level,
		Config:   cfg,
		DB:       db,
	}), nil
}

func after(ctx context.Context, _ *urfave.Command) error {
	if cfg, err := getConfig(ctx); err == nil && cfg.DB != nil {
		cfg.DB.Close()
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	dir, _, err := config.GetOrCreateHomeDir(appName)
	if err != nil {
		return nil, fmt.Errorf("resolving home dir: %w", err)
	}
	return config.ReadOrCreate(dir)
}

func initLogging(level string) {
	logging.SetDefaultCLILogger(level)
}

func encode(w io.Writer, format string, v any) error {
	if format == formatYAML {
		e := yaml.NewEncoder(w)
		defer e.Close()
		return e.Encode(v)
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}

// output encodes v to the command's writer in the selected format.
func output(cmd *urfave.Command, cfg *appConfig, v any) error {
	return encode(cmd.Root().Writer, cfg.Format, v)
}
