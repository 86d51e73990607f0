/*
Package cli wires the classmonitor commands.
*/
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/shanehull/classmonitor/internal/ai"
	"github.com/shanehull/classmonitor/internal/config"
	"github.com/shanehull/classmonitor/internal/decision"
	"github.com/shanehull/classmonitor/internal/eventbrite"
	"github.com/shanehull/classmonitor/internal/history"
	"github.com/shanehull/classmonitor/internal/jobs"
	"github.com/shanehull/classmonitor/internal/metrics"
	"github.com/shanehull/classmonitor/internal/monitor"
	"github.com/shanehull/classmonitor/internal/notify"
	"github.com/shanehull/classmonitor/internal/runlock"
	"github.com/shanehull/classmonitor/internal/types"

	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	logLevel   string
	stateFile  string
	dryRun     bool

	jobsDir     string
	workers     int
	maxLoadMore int
	headful     bool

	enrichedPath string
	saveState    bool
	send         bool
}

// NewRootCmd creates the root command. Without a subcommand it performs a
// monitor run.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "classmonitor",
		Short: "Watch an Eventbrite organizer page for bookable classes",
		Long: `classmonitor scrapes an Eventbrite organizer page, resolves each class's
first date, compares the class count with the previous run and sends push or
email alerts when the target class or an early class becomes available.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMonitor(cmd, opts)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file")
	pf.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	pf.StringVar(&opts.stateFile, "state-file", "", "Override the state file path")
	pf.BoolVar(&opts.dryRun, "dry-run", false, "Log notifications instead of sending them")

	addRunFlags(cmd, opts)

	cmd.AddCommand(newRunCmd(opts), newDecideCmd(opts), newExtractCmd(opts))
	return cmd
}

func addRunFlags(cmd *cobra.Command, opts *options) {
	f := cmd.Flags()
	f.StringVar(&opts.jobsDir, "jobs-dir", "", "Override the jobs directory")
	f.IntVar(&opts.workers, "workers", 0, "Concurrent date extraction calls")
	f.IntVar(&opts.maxLoadMore, "max-load-more", 0, "Maximum \"Show more\" clicks")
	f.BoolVar(&opts.headful, "headful", false, "Show the browser window")
}

func newRunCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape, decide and notify once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMonitor(cmd, opts)
		},
	}
	addRunFlags(cmd, opts)
	return cmd
}

func newDecideCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Replay the notification rules over a saved enriched artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDecide(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.enrichedPath, "enriched", "", "Path to an "+jobs.EnrichedArtifactName+" file (required)")
	cmd.Flags().BoolVar(&opts.saveState, "save-state", false, "Write the resulting class count to the state file")
	cmd.Flags().BoolVar(&opts.send, "send", false, "Send notifications through the configured channels")
	_ = cmd.MarkFlagRequired("enriched")
	return cmd
}

func newExtractCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <dates text>",
		Short: "Resolve the first date of a free-text schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, opts, args[0])
		},
	}
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// loadConfig reads the config file and applies any flags set on cmd.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("state-file") {
		cfg.StateFile = opts.stateFile
	}
	if flags.Changed("dry-run") {
		cfg.DryRun = opts.dryRun
	}
	if flags.Changed("jobs-dir") {
		cfg.JobsDir = opts.jobsDir
	}
	if flags.Changed("workers") {
		cfg.Extractor.Workers = opts.workers
	}
	if flags.Changed("max-load-more") {
		cfg.Scraper.MaxLoadMore = opts.maxLoadMore
	}
	if flags.Changed("headful") {
		cfg.Scraper.Headful = opts.headful
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runMonitor(cmd *cobra.Command, opts *options) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(out, opts.logLevel)
	if err != nil {
		return err
	}

	lock, err := runlock.Acquire(cfg.LockFile)
	if errors.Is(err, runlock.ErrLocked) {
		logger.Info("classmonitor: another run is in progress", "lock", cfg.LockFile)
		return nil
	}
	if err != nil {
		return err
	}
	defer lock.Release()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	job, err := jobs.New(cfg.JobsDir, time.Now(), loc)
	if err != nil {
		return err
	}
	logFile, err := job.OpenLog()
	if err != nil {
		return err
	}
	defer logFile.Close()

	logger, _ = newLogger(io.MultiWriter(out, logFile), opts.logLevel)
	logger.Info("classmonitor: job started", "dir", job.Dir(), "source", cfg.SourceURL)

	extractor, err := ai.NewDateExtractor(ctx, ai.Config{
		APIKey:  cfg.Extractor.APIKey,
		Model:   cfg.Extractor.Model,
		Timeout: cfg.Extractor.Timeout,
		Workers: cfg.Extractor.Workers,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	scraper := eventbrite.New(eventbrite.Config{
		URL:             cfg.SourceURL,
		MaxLoadMore:     cfg.Scraper.MaxLoadMore,
		PageTimeout:     cfg.Scraper.PageTimeout,
		ClickPause:      cfg.Scraper.ClickPause,
		RemoteURL:       cfg.Scraper.RemoteURL,
		Headful:         cfg.Scraper.Headful,
		DebugScreenshot: job.Path(jobs.ScreenshotName),
		Logger:          logger,
	})

	monOpts, err := monitorOptions(cfg, logger, job)
	if err != nil {
		return err
	}
	monOpts.Scraper = scraper
	monOpts.Extractor = extractor

	mon, err := monitor.New(monOpts)
	if err != nil {
		return err
	}

	report, err := mon.Run(ctx)
	if err != nil {
		logger.Error("classmonitor: run failed", "error", err)
		return err
	}
	if report.ScrapeErr != nil {
		logger.Warn("classmonitor: run completed without scraped data", "error", report.ScrapeErr)
	}
	return nil
}

func runDecide(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd.OutOrStdout(), opts.logLevel)
	if err != nil {
		return err
	}

	var enriched []types.EnrichedEventRecord
	if err := jobs.ReadJSON(opts.enrichedPath, &enriched); err != nil {
		return err
	}

	// Replays are dry runs unless explicitly asked to send.
	cfg.DryRun = cfg.DryRun || !opts.send

	monOpts, err := monitorOptions(cfg, logger, nil)
	if err != nil {
		return err
	}
	mon, err := monitor.New(monOpts)
	if err != nil {
		return err
	}

	report, err := mon.Apply(cmd.Context(), enriched, opts.saveState)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "previous count: %d, current count: %d\n", report.PreviousCount, report.Decision.State.ClassCount)
	if len(report.Decision.Notifications) == 0 {
		fmt.Fprintln(out, "no notifications")
	}
	for _, n := range report.Decision.Notifications {
		fmt.Fprintf(out, "[%s] %s\n", n.Rule, n.Message)
	}
	return nil
}

func runExtract(cmd *cobra.Command, opts *options, text string) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd.ErrOrStderr(), opts.logLevel)
	if err != nil {
		return err
	}

	extractor, err := ai.NewDateExtractor(cmd.Context(), ai.Config{
		APIKey:  cfg.Extractor.APIKey,
		Model:   cfg.Extractor.Model,
		Timeout: cfg.Extractor.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	date := extractor.ExtractFirstDate(cmd.Context(), text)
	if date == types.UnknownDate {
		date = "unknown"
	}
	fmt.Fprintln(cmd.OutOrStdout(), date)
	return nil
}

// monitorOptions builds the collaborators shared by run and decide.
func monitorOptions(cfg *config.Config, logger *slog.Logger, job *jobs.Job) (monitor.Options, error) {
	store, err := history.NewManager(cfg.StateFile, cfg.Rules.DefaultCount, logger)
	if err != nil {
		return monitor.Options{}, err
	}
	rules, err := cfg.DecisionRules()
	if err != nil {
		return monitor.Options{}, err
	}

	return monitor.Options{
		Store:    store,
		Engine:   decision.NewEngine(rules, logger),
		Notifier: buildNotifier(cfg, logger),
		Job:      job,
		Metrics:  metrics.New(),
		Logger:   logger,
	}, nil
}

// buildNotifier returns the configured channels, or a dry-run notifier when
// none are configured or dry run is requested.
func buildNotifier(cfg *config.Config, logger *slog.Logger) notify.Notifier {
	if cfg.DryRun {
		return notify.NewDryRunNotifier(logger)
	}

	var channels []notify.Notifier
	var names []string
	if pc := cfg.PushoverConfig(); pc.Enabled() {
		channels = append(channels, notify.NewPushoverSender(pc, logger))
		names = append(names, "pushover")
	}
	if ec := cfg.EmailConfig(); ec.Enabled() {
		channels = append(channels, notify.NewEmailSender(ec, logger))
		names = append(names, "email")
	}

	if len(channels) == 0 {
		logger.Warn("classmonitor: no notification channel configured, logging notifications only")
		return notify.NewDryRunNotifier(logger)
	}
	logger.Debug("classmonitor: notification channels", "channels", strings.Join(names, ","))
	return notify.NewMulti(channels...)
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
