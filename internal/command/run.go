package command

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opencohort/runner/internal/config"
	"github.com/opencohort/runner/internal/fetcher"
	"github.com/opencohort/runner/internal/joberrors"
	"github.com/opencohort/runner/internal/launcher"
	"github.com/opencohort/runner/internal/project"
)

var (
	runRepo       string
	runTag        string
	runDB         string
	runWorkdir    string
	runDefinition string
	runDryRun     bool
)

var runCmd = &cobra.Command{
	Use:   "run ACTION",
	Short: "Run a single pipeline action",
	Long: `Run resolves one action from the project definition and executes it in
a container, with outputs routed to the backend's privacy-level storage.

The project definition is read from the working directory, or fetched
from a URI given with --definition. Direct dependencies of the action
must already have produced their declared outputs.`,
	Example: `  # Run an action against the full database
  runner run generate_cohort --config backend.hcl --repo https://github.com/org/study --db full

  # Resolve against a definition stored in S3
  runner run analyse --definition s3://definitions/study/project.yaml --repo https://github.com/org/study

  # Show the container invocation without running it
  runner run analyse --repo https://github.com/org/study --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runRepo, "repo", "", "study repository URL (required)")
	runCmd.Flags().StringVar(&runTag, "tag", "latest", "study repository tag")
	runCmd.Flags().StringVar(&runDB, "db", "full", "database flavour")
	runCmd.Flags().StringVarP(&runWorkdir, "workdir", "w", ".", "study working directory")
	runCmd.Flags().StringVar(&runDefinition, "definition", "", "project definition URI (file:// or s3://)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "print the container invocation without running it")
	runCmd.MarkFlagRequired("repo")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := getLogger()

	cfgPath, err := getConfigFile()
	if err != nil {
		return err
	}

	log.Debug("loading config", "path", cfgPath)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: loading config:", err)
		os.Exit(ExitConfigError)
	}

	job := project.Job{
		Operation: args[0],
		Repo:      runRepo,
		Tag:       runTag,
		DB:        runDB,
		Workdir:   runWorkdir,
	}

	rt, err := resolveJob(ctx, cfg, job, runDefinition)
	if err != nil {
		return err
	}

	if runDryRun {
		fmt.Println(strings.Join(append([]string{"docker", "run", "--rm", "--name", rt.ContainerName}, rt.Invocation...), " "))
		return nil
	}

	if err := dockerRun(ctx, rt, log); err != nil {
		return err
	}

	fmt.Println("Outputs written to", rt.OutputPath)
	return nil
}

// resolveJob expands the job's action into a container invocation, reading
// the project definition from the job workdir or from a definition URI.
func resolveJob(ctx context.Context, cfg *config.Config, job project.Job, definition string) (*project.Runtime, error) {
	if definition == "" {
		return project.Resolve(cfg, job)
	}

	if !fetcher.IsURI(definition) {
		return nil, fmt.Errorf("unsupported definition reference: %s", definition)
	}

	data, err := setupFetchers(ctx).Fetch(ctx, definition)
	if err != nil {
		return nil, fmt.Errorf("fetching definition: %w", err)
	}

	p, err := project.Parse(data)
	if err != nil {
		return nil, err
	}
	return project.ResolveProject(cfg, p, job)
}

// setupFetchers creates and configures the fetcher registry
func setupFetchers(ctx context.Context) *fetcher.Registry {
	registry := fetcher.NewRegistry()

	registry.Register(fetcher.NewLocalFetcher())

	// S3 fetcher (optional - only if we might need it)
	s3Fetcher, err := fetcher.NewS3Fetcher(ctx)
	if err != nil {
		getLogger().Debug("S3 fetcher not available", "error", err)
	} else {
		registry.Register(s3Fetcher)
	}

	return registry
}

// dockerRun executes a resolved invocation under docker, streaming the
// container's output to this process.
func dockerRun(ctx context.Context, rt *project.Runtime, log *slog.Logger) error {
	docker, err := exec.LookPath("docker")
	if err != nil {
		return fmt.Errorf("docker not found on PATH: %w", err)
	}

	dockerArgs := append([]string{"run", "--rm", "--name", rt.ContainerName}, rt.Invocation...)
	log.Info("running container", "name", rt.ContainerName, "image", rt.Image)
	log.Debug("container invocation", "args", dockerArgs)

	code, err := launcher.Run(ctx, launcher.Spec{
		Path:   docker,
		Args:   dockerArgs,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	if err != nil {
		return joberrors.ContainerRunFailed(err.Error())
	}
	if code != 0 {
		return joberrors.ContainerRunFailed(fmt.Sprintf("%s exited with code %d", rt.ContainerName, code))
	}
	return nil
}
