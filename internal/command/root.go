package command

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes
const (
	ExitSuccess     = 0
	ExitError       = 1
	ExitConfigError = 2

	// ExitLaunchFailure is returned when the interpreter itself could not
	// be started, as opposed to starting and then failing.
	ExitLaunchFailure = 127
)

var (
	// Global flags
	configFile string
	verbose    bool

	// Logger
	logger *slog.Logger
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "runner",
	Short: "Pipeline runner for secure backends",
	Long: `Runner executes research pipeline actions inside secure backends.

It polls a job queue for pending actions, resolves each one against the
project definition and the backend's permitted command registry, and runs
it in a container with inputs and outputs routed to privacy-level storage.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})
		logger = slog.New(handler)
	},
}

// Execute runs the root command
func Execute() {
	ctx := context.Background()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(ExitError)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "backend config file path (or set RUNNER_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// getConfigFile returns the config file path from flag or environment
func getConfigFile() (string, error) {
	if configFile != "" {
		return configFile, nil
	}

	if envConfig := os.Getenv("RUNNER_CONFIG"); envConfig != "" {
		return envConfig, nil
	}

	return "", fmt.Errorf("config file required: use --config or set RUNNER_CONFIG")
}

// getLogger returns the configured logger
func getLogger() *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
