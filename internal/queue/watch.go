package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/opencohort/runner/internal/joberrors"
)

// Runner executes one job and returns the path its outputs were written
// to.
type Runner func(ctx context.Context, job Job) (outputPath string, err error)

// Watcher polls the queue and runs pending jobs one at a time.
type Watcher struct {
	Client   *Client
	Run      Runner
	Interval time.Duration
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Watch polls until the context is cancelled.
func (w *Watcher) Watch(ctx context.Context) error {
	for {
		if err := w.Poll(ctx); err != nil {
			// A failed poll is logged and retried on the next tick; the
			// queue being briefly unreachable must not kill the service.
			w.Logger.Error("poll failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.Interval):
		}
	}
}

// Poll performs a single queue iteration: fetch pending jobs and run each
// one, reporting results back.
func (w *Watcher) Poll(ctx context.Context) error {
	jobs, err := w.Client.PendingJobs(ctx)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		w.runOne(ctx, job)
	}
	return nil
}

// runOne runs a single job under the configured timeout and reports its
// outcome. Reporting failures are logged but not propagated: the job
// already ran, and the next poll will not pick it up again.
func (w *Watcher) runOne(ctx context.Context, job Job) {
	log := w.Logger.With("job_id", job.URL, "operation", job.Operation)

	if err := w.Client.MarkStarted(ctx, job); err != nil {
		log.Error("marking job started", "error", err)
		return
	}
	log.Info("job started")

	outputPath, err := w.runWithTimeout(ctx, job)

	switch {
	case err == nil:
		log.Info("job completed", "output_path", outputPath)
		if err := w.Client.ReportSuccess(ctx, job, outputPath); err != nil {
			log.Error("reporting success", "error", err)
		}

	case errors.Is(err, context.Canceled):
		// Service shutdown, not a job failure. The job stays marked started
		// and is left for the operator to reconcile.
		log.Info("job interrupted by shutdown")

	case errors.Is(err, context.DeadlineExceeded):
		message := fmt.Sprintf("TimeoutError(%ds) in %s", int(w.Timeout.Seconds()), job.Operation)
		log.Error("job timed out", "timeout", w.Timeout)
		if err := w.Client.ReportFailure(ctx, job, joberrors.CodeTimeout, message); err != nil {
			log.Error("reporting timeout", "error", err)
		}

	default:
		code := joberrors.CodeUnclassified
		message := fmt.Sprintf("Unclassified error in %s", job.Operation)
		var jerr *joberrors.Error
		if errors.As(err, &jerr) {
			code = jerr.Code
			message = jerr.SafeDetails()
		}
		log.Error("job failed", "status_code", code, "error", err)
		if err := w.Client.ReportFailure(ctx, job, code, message); err != nil {
			log.Error("reporting failure", "error", err)
		}
	}
}

// runWithTimeout runs the job function, converting panics into errors so a
// misbehaving action cannot take down the watch loop.
func (w *Watcher) runWithTimeout(ctx context.Context, job Job) (outputPath string, err error) {
	runCtx, cancel := context.WithTimeout(ctx, w.Timeout)
	defer cancel()

	type result struct {
		outputPath string
		err        error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("job panicked: %v", r)}
			}
		}()
		out, err := w.Run(runCtx, job)
		done <- result{outputPath: out, err: err}
	}()

	select {
	case <-runCtx.Done():
		return "", runCtx.Err()
	case res := <-done:
		return res.outputPath, res.err
	}
}
