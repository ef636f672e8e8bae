package command

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opencohort/runner/internal/envfile"
	"github.com/opencohort/runner/internal/launcher"
)

var launchCmd = &cobra.Command{
	Use:   "launch [args...]",
	Short: "Launch the service interpreter",
	Long: `Launch starts the pinned service interpreter with the environment
assembled from the current process, the local .env file, and the fixed
module path override. All arguments are forwarded to the interpreter
verbatim and its exit code becomes the exit code of this command.`,
	Example: `  # Run the service module
  runner launch -m service.main

  # Run an ad-hoc script with its own flags
  runner launch scripts/check.py --dry-run`,
	// Arguments are forwarded untouched, including anything flag-shaped.
	DisableFlagParsing: true,
	RunE:               runLaunch,
}

func init() {
	rootCmd.AddCommand(launchCmd)
}

func runLaunch(cmd *cobra.Command, args []string) error {
	env, err := launcher.BuildEnv(envfile.DefaultPath)
	if err != nil {
		return fmt.Errorf("building environment: %w", err)
	}

	code, err := launcher.Run(cmd.Context(), launcher.Spec{
		Path:   launcher.DefaultInterpreter,
		Args:   args,
		Env:    env,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot launch %s: %v\n", launcher.DefaultInterpreter, err)
		os.Exit(ExitLaunchFailure)
	}

	os.Exit(code)
	return nil
}
