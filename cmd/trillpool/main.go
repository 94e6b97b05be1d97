// Command trillpool exercises and inspects the pooled batch layer: it runs
// a synthetic ingest workload across goroutines and reports pool
// populations and leaks.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/microsoft/Trill-sub013/pkg/config"
	"github.com/microsoft/Trill-sub013/pkg/logger"
)

var version = "0.1.0"

// app carries what PersistentPreRunE resolved for the subcommands.
type app struct {
	configFile string
	logLevel   string
	cfg        *config.Config
	log        *zap.Logger
}

func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadWithEnv(a.configFile)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return fmt.Errorf("logger error: %w", err)
	}
	a.cfg = cfg
	a.log = logger.Get().With(zap.String("component", "trillpool-cli"))
	return nil
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "trillpool",
		Short: "trillpool - pooled columnar batch workbench",
		Long: `trillpool drives the pooled columnar batch layer with a synthetic ingest
workload and reports pool populations and leaks.

Configuration is read from an optional YAML file and TRILL_* environment
variables (a .env file in the working directory is loaded first).`,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
	}
	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "Path to YAML configuration file (optional)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newVersionCommand(),
		newConfigCommand(a),
		newBenchCommand(a),
		newReportCommand(a),
		newReplayCommand(a),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		// version needs no configuration
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "trillpool v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	err := newRootCommand().Execute()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
