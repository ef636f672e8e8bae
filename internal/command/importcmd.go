package command

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opencohort/runner/internal/config"
	"github.com/opencohort/runner/internal/importer"
)

var importCmd = &cobra.Command{
	Use:   "import-outputs WORKSPACE [WORKSPACE...]",
	Short: "Import legacy outputs into workspace directories",
	Long: `Import-outputs copies output files from the legacy per-volume storage
layout into each named workspace directory and records them in the
workspace manifest. Files already present in the workspace are left
untouched.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	cfgPath, err := getConfigFile()
	if err != nil {
		return err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: loading config:", err)
		os.Exit(ExitConfigError)
	}

	imp := importer.New(cfg.Storage, getLogger())
	for _, workspace := range args {
		if err := imp.ImportWorkspace(workspace); err != nil {
			return fmt.Errorf("importing %s: %w", workspace, err)
		}
	}
	return nil
}
