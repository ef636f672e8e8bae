package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opencohort/runner/internal/config"
	"github.com/opencohort/runner/internal/project"
	"github.com/opencohort/runner/internal/queue"
	"github.com/opencohort/runner/internal/secrets"
)

var (
	serviceWorkdir string
	serviceOnce    bool
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Poll the job queue and run pending jobs",
	Long: `Service polls the job queue for unstarted jobs and runs them one at a
time. Each job is marked as started, resolved against the project
definition in the working directory, executed in a container, and its
outcome reported back to the queue.

Queue credentials come from Vault when a vault block is configured, and
from the QUEUE_USER and QUEUE_PASS environment variables otherwise.`,
	RunE: runService,
}

func init() {
	rootCmd.AddCommand(serviceCmd)

	serviceCmd.Flags().StringVarP(&serviceWorkdir, "workdir", "w", ".", "study working directory")
	serviceCmd.Flags().BoolVar(&serviceOnce, "once", false, "poll once and exit instead of looping")
}

func runService(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := getLogger()

	cfgPath, err := getConfigFile()
	if err != nil {
		return err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: loading config:", err)
		os.Exit(ExitConfigError)
	}
	if cfg.Queue.Endpoint == "" {
		fmt.Fprintln(os.Stderr, "Error: no queue endpoint configured")
		os.Exit(ExitConfigError)
	}

	creds, err := secrets.Lookup(ctx, cfg.Queue.Vault)
	if err != nil {
		return fmt.Errorf("looking up queue credentials: %w", err)
	}

	watcher := &queue.Watcher{
		Client:   queue.NewClient(cfg.Queue.Endpoint, creds.User, creds.Pass, log),
		Run:      jobRunner(cfg, serviceWorkdir, log),
		Interval: cfg.Queue.PollInterval,
		Timeout:  cfg.Queue.JobTimeout,
		Logger:   log,
	}

	if serviceOnce {
		return watcher.Poll(ctx)
	}

	log.Info("watching job queue", "endpoint", cfg.Queue.Endpoint, "interval", cfg.Queue.PollInterval)
	if err := watcher.Watch(ctx); !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("shutting down")
	return nil
}

// jobRunner adapts queue jobs to pipeline resolution and container
// execution.
func jobRunner(cfg *config.Config, workdir string, log *slog.Logger) queue.Runner {
	return func(ctx context.Context, qj queue.Job) (string, error) {
		rt, err := project.Resolve(cfg, project.Job{
			Operation: qj.Operation,
			Repo:      qj.Repo,
			Tag:       qj.Tag,
			DB:        qj.DB,
			Workdir:   workdir,
		})
		if err != nil {
			return "", err
		}

		if err := dockerRun(ctx, rt, log); err != nil {
			return "", err
		}
		return rt.OutputPath, nil
	}
}
