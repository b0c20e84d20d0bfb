// Package cli provides the salesetl command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"salesetl/internal/config"
	"salesetl/internal/etl"
	"salesetl/internal/logging"
	"salesetl/internal/metrics"
	"salesetl/internal/metrics/datadog"
	"salesetl/internal/metrics/prompush"

	// register all backends with the storage factory.
	_ "salesetl/internal/storage/all"
)

// Exit codes.
const (
	ExitOK       = 0
	ExitRejected = 1
	ExitError    = 2
)

// app is the state shared by the subcommands of one invocation.
type app struct {
	cfgFile string
	cfg     config.Config
	log     *zap.Logger
	flush   bool
}

// Execute runs the command line in args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{log: zap.NewNop()}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	a.shutdown()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case etl.IsRejection(err):
		return ExitRejected
	default:
		return ExitError
	}
}

func (a *app) rootCmd() *cobra.Command {
	def := config.Default()
	root := &cobra.Command{
		Use:   "salesetl",
		Short: "Validate, enrich and load sales extracts",
		Long: `salesetl checks raw sales extracts against data-quality rules, enriches
the accepted sales facts with customer, product and calendar attributes,
writes the result as partitioned parquet, and replaces the warehouse tables.

Exit status is 0 on success, 1 when any extract was rejected and 2 for any
other failure.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			return a.setup(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: ./"+config.DefaultFile+" when present)")
	pf.String("job", def.Job, "job name for logs and metrics")
	pf.String("raw-dir", def.Paths.Raw, "directory of raw extracts")
	pf.String("validated-dir", def.Paths.Validated, "directory for validated extracts")
	pf.String("reports-dir", def.Paths.Reports, "directory for quality reports")
	pf.String("curated-dir", def.Paths.Curated, "directory for curated parquet tables")
	pf.String("source", def.Source.Kind, "raw extract source (file|s3)")
	pf.String("s3-bucket", "", "bucket holding raw extracts")
	pf.String("s3-prefix", "", "key prefix of raw extracts")
	pf.String("warehouse", def.Warehouse.Kind, "warehouse backend (postgres|sqlite|mssql|mysql|duckdb)")
	pf.String("dsn", "", "warehouse connection string")
	pf.String("schema", def.Warehouse.Schema, "warehouse schema")
	pf.Int("batch-size", def.Warehouse.BatchSize, "rows per bulk copy")
	pf.String("metrics", def.Metrics.Backend, "metrics backend (none|prometheus|datadog)")
	pf.String("log-level", def.Log.Level, "log level")
	pf.String("log-format", def.Log.Format, "log format (console|json)")
	pf.Int("workers", def.Runtime.Workers, "extracts validated concurrently")
	pf.Bool("csv-strict", def.CSV.Strict, "fail a raw extract on its first malformed row")
	pf.String("dedup-policy", def.Enrich.DedupPolicy, "dimension row kept per key (keep-first|keep-last|most-complete)")

	root.AddCommand(
		a.validateCmd(),
		a.curateCmd(),
		a.loadCmd(),
		a.runCmd(),
		a.configCmd(),
	)
	return root
}

// setup loads and checks the configuration, then builds the logger and the
// metrics backend.
func (a *app) setup(cmd *cobra.Command) error {
	loaded, err := config.Load(a.cfgFile, cmd.Root().PersistentFlags())
	if err != nil {
		return err
	}
	a.cfg = loaded.Config

	issues := a.cfg.Validate()
	for _, iss := range issues {
		fmt.Fprintln(cmd.ErrOrStderr(), iss.Error())
	}
	// The config command prints the configuration even when it is invalid.
	if cmd.Name() != "config" {
		if err := config.Err(issues); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}

	log, err := logging.New(a.cfg.Log)
	if err != nil {
		return err
	}
	a.log = log
	if loaded.File != "" {
		a.log.Debug("config loaded", zap.String("file", loaded.File))
	}
	a.setupMetrics()
	return nil
}

func (a *app) setupMetrics() {
	m := a.cfg.Metrics
	var (
		b   metrics.Backend
		err error
	)
	switch m.Backend {
	case "prometheus":
		b, err = prompush.NewBackend(a.cfg.Job, m.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{Addr: m.DatadogAddr, Namespace: m.Namespace, GlobalTags: m.Tags})
	default:
		return
	}
	if err != nil {
		a.log.Warn("metrics disabled", zap.String("backend", m.Backend), zap.Error(err))
		return
	}
	metrics.SetBackend(b)
	a.flush = true
	a.log.Debug("metrics enabled", zap.String("backend", m.Backend))
}

func (a *app) shutdown() {
	if a.flush {
		if err := metrics.Flush(); err != nil {
			a.log.Warn("metrics flush", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}

// pipeline builds the pipeline for the loaded configuration.
func (a *app) pipeline(ctx context.Context) (*etl.Pipeline, error) {
	src, err := etl.NewSource(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	return etl.New(a.cfg, src, a.log), nil
}

// Main is the body of the salesetl binary.
func Main(ctx context.Context) int {
	return Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
}
