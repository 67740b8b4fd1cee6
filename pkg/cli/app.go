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

	"github.com/mchmarny/credscore/pkg/config"
	"github.com/mchmarny/credscore/pkg/logging"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	appName      = "credscore"
	appConfigKey = "app-config"

	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""

	configDirFlag = &cli.StringFlag{
		Name:    "config-dir",
		Usage:   "Directory holding config.yaml (optional, default: $HOME/.credscore)",
		Sources: cli.EnvVars("CREDSCORE_CONFIG_DIR"),
	}

	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Prints verbose logs (optional, default: false)",
	}

	backendFlag = &cli.StringFlag{
		Name:  "backend",
		Usage: fmt.Sprintf("Snapshot storage [%s, %s, %s]", config.BackendFile, config.BackendSQLite, config.BackendPostgres),
	}

	dbFilePathFlag = &cli.StringFlag{
		Name:  "db",
		Usage: "Path to the Sqlite database file",
	}

	historyDirFlag = &cli.StringFlag{
		Name:  "history-dir",
		Usage: "Directory of snapshot files for the file backend",
	}

	seedFlag = &cli.StringFlag{
		Name:  "seed",
		Usage: "Seed weight file (.csv or .xlsx) used when there is no history",
	}

	logFileFlag = &cli.StringFlag{
		Name:  "log-file",
		Usage: "Also write logs to this size-rotated file",
	}

	formatFlag = &cli.StringFlag{
		Name:  "format",
		Usage: "Output format [json, yaml]",
		Value: formatJSON,
	}
)

// Execute creates and runs the CLI application.
func Execute() {
	logging.SetDefaultCLILogger("info")

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

type appConfig struct {
	ConfigDir string
	Config    *config.Config
	Format    string
	Debug     bool

	db     *sql.DB
	closer io.Closer
}

func getConfig(cmd *cli.Command) *appConfig {
	return cmd.Root().Metadata[appConfigKey].(*appConfig)
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:                  appName,
		Version:               fmt.Sprintf("%s (%s - %s)", version, commit, date),
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Usage:                 "News source and author credibility scoring from fact-check feedback",
		Metadata:              map[string]any{},
		Flags: []cli.Flag{
			configDirFlag,
			debugFlag,
			backendFlag,
			dbFilePathFlag,
			historyDirFlag,
			seedFlag,
			logFileFlag,
			formatFlag,
		},
		Commands: []*cli.Command{
			initCmd,
			updateCmd,
			weightsCmd,
			authorsCmd,
			historyCmd,
			rollbackCmd,
			estimateCmd,
			configCmd,
			authCmd,
		},
		Before: before,
		After:  after,
	}
}

func before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	dir := cmd.String(configDirFlag.Name)
	if dir == "" {
		home, _, err := config.GetOrCreateHomeDir(appName)
		if err != nil {
			return ctx, fmt.Errorf("resolving config dir: %w", err)
		}
		dir = home
	}

	cfg, err := config.ReadOrCreate(dir)
	if err != nil {
		return ctx, fmt.Errorf("reading config: %w", err)
	}

	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return ctx, fmt.Errorf("invalid flags: %w", err)
	}

	debug := cmd.Bool(debugFlag.Name)
	level := cfg.Log.Level
	if debug {
		level = "debug"
	}

	closer, err := logging.Setup(logging.Options{
		Level:      level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		return ctx, fmt.Errorf("initializing logging: %w", err)
	}

	format := formatJSON
	if f := cmd.String(formatFlag.Name); f == formatYAML || f == "yml" {
		format = formatYAML
	}

	cmd.Metadata[appConfigKey] = &appConfig{
		ConfigDir: dir,
		Config:    cfg,
		Format:    format,
		Debug:     debug,
		closer:    closer,
	}

	slog.Debug("config loaded", "dir", dir, "backend", cfg.Storage.Backend)
	return ctx, nil
}

// applyFlags lets explicitly set flags win over the config file.
func applyFlags(cmd *cli.Command, cfg *config.Config) {
	set := func(flag string, dst *string) {
		if cmd.IsSet(flag) {
			*dst = cmd.String(flag)
		}
	}
	set(backendFlag.Name, &cfg.Storage.Backend)
	set(dbFilePathFlag.Name, &cfg.Storage.DB)
	set(historyDirFlag.Name, &cfg.Storage.HistoryDir)
	set(seedFlag.Name, &cfg.Storage.Seed)
	set(logFileFlag.Name, &cfg.Log.File)
}

func after(_ context.Context, cmd *cli.Command) error {
	cfg, ok := cmd.Metadata[appConfigKey].(*appConfig)
	if !ok {
		return nil
	}

	var errs []error
	if cfg.db != nil {
		errs = append(errs, cfg.db.Close())
		cfg.db = nil
	}
	if cfg.closer != nil {
		errs = append(errs, cfg.closer.Close())
		cfg.closer = nil
	}
	return errors.Join(errs...)
}

func encode(cmd *cli.Command, v any) error {
	w := cmd.Root().Writer
	if w == nil {
		w = os.Stdout
	}

	if getConfig(cmd).Format == formatYAML {
		return yaml.NewEncoder(w).Encode(v)
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}
