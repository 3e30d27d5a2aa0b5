package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pfrederiksen/comment-map/internal/build"
	"github.com/pfrederiksen/comment-map/internal/config"
	"github.com/pfrederiksen/comment-map/internal/logger"
	"github.com/pfrederiksen/comment-map/internal/metrics"
	"github.com/pfrederiksen/comment-map/internal/scraper"
)

const (
	ExitSuccess = 0
	ExitError   = 1
	// ExitNewOpportunities signals that a report found opportunities not
	// present in the previous snapshot
	ExitNewOpportunities = 2
)

// exitCodeError ends a command with a specific exit code and no message
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// app carries state shared by every command in one invocation
type app struct {
	v          *viper.Viper
	cfg        *config.Config
	configFile string
	verbose    bool
	stdout     io.Writer
	stderr     io.Writer

	fetcher *scraper.Fetcher
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{v: config.New(), stdout: stdout, stderr: stderr}
}

// persistent flag name -> config key
var boundFlags = map[string]string{
	"state":            "state",
	"data-dir":         "data_dir",
	"web-dir":          "web_dir",
	"as-of":            "as_of",
	"log-level":        "log.level",
	"log-format":       "log.format",
	"metrics-textfile": "metrics.textfile",
	"archive":          "archive.path",
	"manifest":         "manifest",
	"user-agent":       "user_agent",
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	return newApp(os.Stdout, os.Stderr).rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comment-map",
		Short: "Build a map of open BLM and USFS public comment periods",
		Long: `A pipeline that collects public comment periods from BLM ePlanning and
USFS SOPA, places USFS projects at their ranger district centroid, and
publishes one deduplicated CSV and GeoJSON dataset for a web map.`,
		PersistentPreRunE: a.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "Config file (default is .comment-map.yaml in cwd or $HOME)")
	pf.String("state", "", "Two-letter state scope (default CO)")
	pf.String("data-dir", "", "Data directory (default data)")
	pf.String("web-dir", "", "Web map directory the GeoJSON is staged into (default web)")
	pf.String("as-of", "", "Reference date for comment status, YYYY-MM-DD (default today)")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-format", "", "Log format: json or console")
	pf.String("metrics-textfile", "", "Write Prometheus metrics to this file after the run")
	pf.String("archive", "", "SQLite archive of published opportunities")
	pf.String("manifest", "", "Pipeline manifest (default is the built-in pipeline)")
	pf.String("user-agent", "", "User-Agent for outbound requests")
	pf.BoolVar(&a.verbose, "verbose", false, "Enable verbose logging")

	for flag, key := range boundFlags {
		if err := a.v.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("binding --%s: %v", flag, err))
		}
	}

	cmd.AddCommand(
		a.collectCmd(),
		a.enrichCmd(),
		a.standardizeCmd(),
		a.publishCmd(),
		a.stageCmd(),
		a.buildCmd(),
		a.diffCmd(),
	)
	return cmd
}

// setup resolves configuration and the logger before any command runs
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := logger.ParseLevel(cfg.LogLevel)
	if a.verbose {
		level = logger.LevelDebug
	}
	logger.SetDefault(logger.NewWithFormat(level, logger.Format(cfg.LogFormat), a.stderr))

	if cfg.ConfigFile != "" {
		logger.Debug("Using config file", logger.Fields{"path": cfg.ConfigFile})
	}
	return nil
}

// http returns the shared rate-limited fetcher
func (a *app) http() *scraper.Fetcher {
	if a.fetcher == nil {
		a.fetcher = scraper.New(
			scraper.WithUserAgent(a.cfg.UserAgent),
			scraper.WithTimeout(a.cfg.HTTPTimeout),
			scraper.WithRate(a.cfg.HTTPRate, a.cfg.HTTPBurst),
		)
	}
	return a.fetcher
}

// manifest loads the pipeline with data and web paths expanded
func (a *app) manifest() (*build.Manifest, error) {
	m, err := build.Load(a.cfg.ManifestPath)
	if err != nil {
		return nil, err
	}
	return m.Expand(map[string]string{
		"data": a.cfg.DataDir,
		"web":  a.cfg.WebDir,
	}), nil
}

// target returns the manifest target for a stage command so that default
// paths match what build uses
func (a *app) target(name string) (build.Target, error) {
	m, err := a.manifest()
	if err != nil {
		return build.Target{}, err
	}
	t, ok := m.Target(name)
	if !ok {
		return build.Target{}, fmt.Errorf("manifest has no %q target", name)
	}
	if t.Args == nil {
		t.Args = make(map[string]string)
	}
	return t, nil
}

func (a *app) writeMetrics() {
	if a.cfg == nil || a.cfg.MetricsTextfile == "" {
		return
	}
	if err := metrics.Default().WriteTextfile(a.cfg.MetricsTextfile); err != nil {
		logger.Warn("Failed to write metrics", logger.Fields{"path": a.cfg.MetricsTextfile}, err)
	}
}

// Run executes the CLI with args and returns the process exit code
func Run(args []string, stdout, stderr io.Writer) int {
	a := newApp(stdout, stderr)
	cmd := a.rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := cmd.ExecuteContext(ctx)
	a.writeMetrics()

	var exit *exitCodeError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &exit):
		return exit.code
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitError
	}
}

// Execute runs the CLI
func Execute() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}
