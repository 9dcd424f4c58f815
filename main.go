package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/todoq/internal/commands"
	"github.com/colonyops/todoq/internal/core/config"
	"github.com/colonyops/todoq/internal/core/eventbus"
	"github.com/colonyops/todoq/internal/core/logging"
	"github.com/colonyops/todoq/internal/data/db"
	"github.com/colonyops/todoq/internal/data/stores"
	"github.com/colonyops/todoq/internal/todoq"
	"github.com/colonyops/todoq/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, init() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	// When installed via `go install module@version`, ldflags aren't set
	// so version remains "dev". Fall back to runtime/debug.BuildInfo which
	// Go populates automatically with the module version and VCS metadata.
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

// openDatabase opens the sqlite database, recovering once from a corrupted
// file by backing it up and starting fresh.
func openDatabase(cfg *config.Config) (*db.DB, error) {
	opts := db.OpenOptions{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		BusyTimeout:  cfg.Database.BusyTimeout,
	}

	database, err := db.Open(cfg.DataDir, opts)
	if err == nil {
		return database, nil
	}
	if !stores.IsCorruptionError(err) {
		return nil, err
	}

	log.Error().Err(err).Msg("database corrupted, backing up and recreating")
	if recoverErr := stores.RecoverFromCorruption(cfg.DataDir); recoverErr != nil {
		return nil, fmt.Errorf("recover from corruption: %w", recoverErr)
	}
	return db.Open(cfg.DataDir, opts)
}

func main() {
	ctx := context.Background()

	var (
		logCloser func()
		database  *db.DB
	)

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "todoq",
		Usage:     "Task queue for driving an AI coding agent",
		UsageText: "todoq [global options] command [command options]",
		Description: `Todoq keeps a prioritized queue of todos in sqlite and feeds them to a
coding agent running in a tmux session, locally or over SSH.

Run 'todoq serve' to expose the REST API, or use the todo/agent/cron
subcommands to work with the queue directly.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("TODOQ_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to <data-dir>/todoq.log)",
				Sources:     cli.EnvVars("TODOQ_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("TODOQ_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("TODOQ_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			// Always log to a file; use explicit path or default to <datadir>/todoq.log
			logFile := flags.LogFile
			if logFile == "" {
				logFile = filepath.Join(flags.DataDir, "todoq.log")
			}

			logger, closer, err := logutils.New(flags.LogLevel, logFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger.Hook(logging.ContextHook{})
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			database, err = openDatabase(cfg)
			if err != nil {
				return ctx, fmt.Errorf("open database: %w", err)
			}

			todos := stores.NewTodoStore(database)
			reports := stores.NewReportStore(database)
			bus := eventbus.New(64)
			eventbus.AttachLogger(bus, logging.Component("eventbus"))

			flags.App = todoq.NewApp(cfg, database, todos, reports, bus)

			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if flags.App != nil {
				flags.App.Stop()
			}

			if database != nil {
				if err := database.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close database")
					return err
				}
			}

			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	app = commands.NewServeCmd(flags).Register(app)
	app = commands.NewTodoCmd(flags).Register(app)
	app = commands.NewAgentCmd(flags).Register(app)
	app = commands.NewCronCmd(flags).Register(app)
	app = commands.NewStatsCmd(flags).Register(app)

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Println()
		fmt.Println(err.Error())
		os.Exit(1)
	}
}
