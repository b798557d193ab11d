package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kurihiro0119/grading-harvester/internal/config"
	"github.com/kurihiro0119/grading-harvester/internal/logging"
	"github.com/kurihiro0119/grading-harvester/internal/storage"
	"github.com/kurihiro0119/grading-harvester/internal/storage/postgres"
	"github.com/kurihiro0119/grading-harvester/internal/storage/sqlite"
)

var (
	outputJSON bool
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "grading-harvester",
	Short: "Trigger and harvest CI grading results",
	Long: `A CLI tool for grading student repositories through their CI.

"trigger" pushes the grading payload into every student repository and records
the resulting commits. "harvest" resolves each commit to its grading run,
downloads the report artifact and writes the cohort's final grades.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			return
		}
		level := cfg.LogLevel
		if logLevel != "" {
			level = logLevel
		}
		logging.Init(logging.ParseLevel(level), cfg.LogFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")

	rootCmd.AddCommand(harvestCmd)
	rootCmd.AddCommand(triggerCmd)
	rootCmd.AddCommand(batchesCmd)
	rootCmd.AddCommand(showCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// signalContext is cancelled on interrupt so in-flight work can stop
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// getStorage opens the configured storage. It returns nil when storage is
// disabled.
func getStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageType {
	case "postgres":
		return postgres.NewPostgresStorage(cfg.PostgresURL)
	case "sqlite":
		return sqlite.NewSQLiteStorage(cfg.SQLitePath)
	default:
		return nil, nil
	}
}
