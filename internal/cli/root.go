// Package cli implements the dayplan command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/dayplan/internal/config"
	"github.com/sandeepkv93/dayplan/internal/engine"
	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/reminder"
	"github.com/sandeepkv93/dayplan/internal/storage"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	date       string
	verbose    bool
	// today is replaced in tests.
	today func() model.Date
}

func (o *globalOptions) day() (model.Date, error) {
	if o.date == "" {
		return o.today(), nil
	}
	d, err := model.ParseDate(o.date)
	if err != nil {
		return model.Date{}, fmt.Errorf("--date: %w", err)
	}
	return d, nil
}

// Execute runs the root command and prints any error to stderr.
func Execute(version string) error {
	root := newRootCmd(version)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func newRootCmd(version string) *cobra.Command {
	opts := &globalOptions{today: func() model.Date { return model.DateOf(time.Now()) }}
	cmd := &cobra.Command{
		Use:   "dayplan",
		Short: "Plan your day as one gapless sequence of tasks",
		Long: `dayplan keeps a day as a chain of back-to-back tasks between a start
and an end boundary. Inserting, resizing or deleting a task reshapes only its
neighbors, so the day never has holes or overlaps.

Run without a subcommand to open the interactive planner.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default "+config.DefaultPath()+")")
	flags.StringVar(&opts.date, "date", "", "day to work on as YYYY-MM-DD (default today)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(
		newListCmd(opts),
		newAddCmd(opts),
		newEditCmd(opts),
		newDeleteCmd(opts),
		newDoneCmd(opts),
		newResetCmd(opts),
		newBackupCmd(opts),
		newRestoreCmd(opts),
		newRemoteCmd(opts),
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newConfigCmd(opts),
	)
	return cmd
}

// app is everything a subcommand needs once config is loaded and the store
// is open.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *storage.SQLiteRepository
	engine    *engine.Engine
	reminders *reminder.Engine
	timeout   time.Duration
	closers   []io.Closer
	prevLog   *slog.Logger
}

type appOptions struct {
	reminders bool
}

func openApp(opts *globalOptions, ao appOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}
	if a.timeout, err = cfg.Engine.TimeoutDuration(); err != nil {
		return nil, err
	}

	logger, logFile, err := newLogger(cfg.Log, opts.verbose)
	if err != nil {
		return nil, err
	}
	if logFile != nil {
		a.closers = append(a.closers, logFile)
	}
	a.logger = logger
	a.prevLog = slog.Default()
	slog.SetDefault(logger)

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		a.Close()
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	a.store, err = storage.OpenSQLite(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, a.store)

	engineOpts := []engine.Option{engine.WithLogger(logger)}
	if ao.reminders && cfg.Reminders.Enabled {
		a.reminders = reminder.NewEngine(cfg.Reminders.Buffer)
		engineOpts = append(engineOpts, engine.WithReminders(a.reminders))
	}
	a.engine, err = engine.New(a.store, engineOpts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	logger.Debug("app opened", "db", cfg.Database.Path, "driver", cfg.Database.Driver, "reminders", a.reminders != nil)
	return a, nil
}

// Close stops reminders, restores the default logger and closes the store
// and log file.
func (a *app) Close() {
	if a.reminders != nil {
		a.reminders.Stop()
	}
	if a.prevLog != nil {
		slog.SetDefault(a.prevLog)
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
}

// ctx bounds one engine call by the configured timeout.
func (a *app) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, a.timeout)
}

// newLogger writes text logs to the configured file, since the terminal
// belongs to the UI. An empty file name discards logs.
func newLogger(cfg config.LogConfig, verbose bool) (*slog.Logger, io.Closer, error) {
	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	if cfg.File == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})), f, nil
}
