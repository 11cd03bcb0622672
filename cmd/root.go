// =============================================================================
// Facturas Loader - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands are attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (facturas)
//   ├── processCmd  (facturas process)
//   ├── validateCmd (facturas validate)
//   ├── initDBCmd   (facturas init-db)
//   ├── serveCmd    (facturas serve)
//   ├── layoutCmd   (facturas layout)
//   └── versionCmd  (facturas version)
//
// CONFIGURATION:
//   The root command is responsible for:
//   1. Setting up global flags (--config, --verbose)
//   2. Loading the configuration through viper before any subcommand runs
//   3. Building the zap logger
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/facturas-loader/internal/config"
	"github.com/ginjaninja78/facturas-loader/internal/errors"
	"github.com/ginjaninja78/facturas-loader/internal/logging"
	"github.com/ginjaninja78/facturas-loader/internal/sink"
	"github.com/ginjaninja78/facturas-loader/internal/ticketparser"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose switches logging to debug level.
var verbose bool

// appConfig and logger are set by initConfig before any command runs.
var (
	appConfig *config.MainConfig
	logger    = zap.NewNop()
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "facturas",
	Short: "Facturas Loader - Load fixed-width invoice tickets into a database",
	Long: `Facturas Loader reads ticket files made of fixed-width invoice records
(header, items, trailer), checks every invoice for consistency and stores the
accepted ones in PostgreSQL or SQLite.

Key Features:
  - Per-invoice error isolation: one malformed invoice never hides the others
  - Consistency checks on declared totals and item counts
  - XML and XLSX reports for every loaded ticket
  - HTTP intake endpoint with Prometheus metrics

Example Usage:
  facturas init-db                      # Create the database schema
  facturas process                      # Load every ticket in the input directory
  facturas validate ticket.in           # Check a ticket without loading it
  facturas serve                        # Accept tickets over HTTP`,

	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file (default is config.yaml)",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}

// initConfig loads the configuration and builds the logger.
func initConfig() error {
	cfg, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return errors.Wrap(err, "failed to load main config")
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	l, err := logging.New(level, cfg.LogFormat)
	if err != nil {
		return errors.Wrap(err, "failed to build logger")
	}

	appConfig = cfg
	logger = l
	logger.Debug("configuration loaded",
		zap.String("config", cfgFile),
		zap.String("driver", cfg.Database.Driver),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
	)
	return nil
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// openSink connects to the configured database.
func openSink(ctx context.Context) (sink.Sink, error) {
	sk, err := sink.Open(ctx, appConfig.Database.Driver, appConfig.Database.URL, logger)
	if err != nil {
		return nil, errors.WithHint(
			errors.Wrap(err, "failed to open database"),
			"check database.driver and database.url, or FACTURAS_DATABASE_URL",
		)
	}
	return sk, nil
}

// newParser builds the record parser from the configured layout file.
func newParser() (*ticketparser.Parser, error) {
	layout, err := config.LoadLayout(appConfig.LayoutFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load layout")
	}
	return ticketparser.New(layout), nil
}
