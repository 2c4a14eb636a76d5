package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chrisilt/course-watcher/internal/config"
	"github.com/chrisilt/course-watcher/internal/logger"
	"github.com/chrisilt/course-watcher/internal/metrics"
	"github.com/chrisilt/course-watcher/internal/pipeline"
)

const (
	ExitSuccess   = 0
	ExitError     = 1
	ExitNewEvents = 2
)

// exitCode ends a command with a status but no message
type exitCode int

func (e exitCode) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

// options holds the flag values shared by all commands
type options struct {
	configPath string
	format     string
	verbose    bool
	dryRun     bool
	sortOrder  string
	output     string
}

// NewRootCmd creates the root command. Without a subcommand it behaves like run.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "course-watcher",
		Short: "Watch a course listing for newly opened registrations",
		Long: `A run-once watcher for a course and training listing page.
Each run finds registration links, notifies configured sinks about new ones,
and keeps a history ledger, an RSS feed and a statistics report up to date.

Settings come from environment variables (TARGET_URL, STATE_FILE, ...) and an
optional YAML file given with --config.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.format, "format", "text", "Output format: text or json")
	cmd.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	addRunFlags(cmd, opts)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Check the page once and notify about new registrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts)
		},
	}
	addRunFlags(runCmd, opts)

	cmd.AddCommand(runCmd, newRebuildCmd(opts), newStatsCmd(opts), newCalendarCmd(opts))
	return cmd
}

func addRunFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Print notifications instead of sending them and write no files")
	cmd.Flags().StringVar(&opts.sortOrder, "sort", string(SortByPage), "Order of new events: page, deadline or title")
}

// env is what every command needs after startup
type env struct {
	cfg *config.Config
	log *logger.Logger
}

// setup loads configuration and builds the logger, writing to the command's stderr
func setup(cmd *cobra.Command, opts *options) (*env, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if opts.verbose {
		level = logger.LevelDebug
	}

	log := logger.New(level, logger.Format(strings.ToLower(cfg.LogFormat)), cmd.ErrOrStderr())
	logger.SetDefault(log)

	log.Debug("Configuration loaded", logger.Fields{
		"target_url": cfg.TargetURL,
		"state_file": cfg.StateFile,
		"feed_file":  cfg.FeedFile,
		"redis":      cfg.UseRedis(),
		"config":     opts.configPath,
	})

	return &env{cfg: cfg, log: log}, nil
}

// runWatch is the main command logic
func runWatch(cmd *cobra.Command, opts *options) error {
	format, err := parseFormat(opts.format)
	if err != nil {
		return err
	}
	order, err := parseSortOrder(opts.sortOrder)
	if err != nil {
		return err
	}

	e, err := setup(cmd, opts)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	seen, closeSeen, err := pipeline.OpenSeenStore(ctx, e.cfg, e.log)
	if err != nil {
		return fmt.Errorf("opening seen state: %w", err)
	}
	defer closeSeen()

	rec := newRecorder(e.cfg)
	sinks := pipeline.BuildSinks(e.cfg, opts.dryRun, cmd.ErrOrStderr(), e.log)
	w := pipeline.NewFromConfig(e.cfg, seen, sinks, rec, e.log, opts.dryRun)

	res, runErr := w.Run(ctx)
	if !opts.dryRun {
		writeMetrics(e.cfg, rec, e.log)
	}
	if runErr != nil {
		return runErr
	}

	sortEvents(res.Events, order)
	if err := WriteOutput(cmd.OutOrStdout(), res, format, opts.verbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	if res.New > 0 {
		return exitCode(ExitNewEvents)
	}
	return nil
}

func newRecorder(cfg *config.Config) metrics.Recorder {
	if cfg.MetricsFile == "" {
		return metrics.NewNoop()
	}
	return metrics.NewPrometheus()
}

func writeMetrics(cfg *config.Config, rec metrics.Recorder, log *logger.Logger) {
	prom, ok := rec.(*metrics.PrometheusRecorder)
	if !ok {
		return
	}
	if err := prom.WriteTextfile(cfg.MetricsFile); err != nil {
		log.Error("Failed to write metrics", logger.Fields{"path": cfg.MetricsFile}, err)
	}
}

// Run executes the CLI with args and returns the process exit code
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)

	var code exitCode
	if errors.As(err, &code) {
		return int(code)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitError
	}
	return ExitSuccess
}

// Execute runs the CLI and exits the process
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
