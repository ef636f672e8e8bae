package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/opencohort/runner/internal/joberrors"
)

// fakeQueue serves a one-job list and records PATCH bodies.
type fakeQueue struct {
	mu      sync.Mutex
	patches []map[string]any
}

func (f *fakeQueue) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/jobs/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			fmt.Fprintf(w, `{
				"count": 1, "next": null, "previous": null,
				"results": [{
					"url": "http://%s/jobs/0/",
					"repo": "https://github.com/repo",
					"tag": "master",
					"backend": "tpp",
					"db": "full",
					"operation": "generate_cohorts",
					"started": false
				}]
			}`, r.Host)

		case http.MethodPatch:
			body, _ := io.ReadAll(r.Body)
			var patch map[string]any
			if err := json.Unmarshal(body, &patch); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			f.mu.Lock()
			f.patches = append(f.patches, patch)
			f.mu.Unlock()

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	return mux
}

func (f *fakeQueue) patchAt(i int) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.patches) {
		return nil
	}
	return f.patches[i]
}

func newTestWatcher(t *testing.T, run Runner) (*Watcher, *fakeQueue) {
	t.Helper()

	fake := &fakeQueue{}
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &Watcher{
		Client:   NewClient(server.URL+"/jobs/", "user", "pass", logger),
		Run:      run,
		Interval: time.Millisecond,
		Timeout:  time.Second,
		Logger:   logger,
	}, fake
}

func TestPoll_WorkingJob(t *testing.T) {
	w, fake := newTestWatcher(t, func(ctx context.Context, job Job) (string, error) {
		return "/mnt/high_privacy/repo-master-full", nil
	})

	if err := w.Poll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := fake.patchAt(0); got == nil || got["started"] != true {
		t.Errorf("first patch = %v, want started=true", got)
	}
	got := fake.patchAt(1)
	if got == nil || got["status_code"] != float64(0) {
		t.Fatalf("second patch = %v, want status_code=0", got)
	}
	if got["output_path"] != "/mnt/high_privacy/repo-master-full" {
		t.Errorf("output_path = %v", got["output_path"])
	}
}

func TestPoll_BrokenJob(t *testing.T) {
	w, fake := newTestWatcher(t, func(ctx context.Context, job Job) (string, error) {
		return "", fmt.Errorf("something exploded")
	})

	if err := w.Poll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := fake.patchAt(1)
	if got == nil || got["status_code"] != float64(joberrors.CodeUnclassified) {
		t.Errorf("patch = %v, want status_code=99", got)
	}
}

func TestPoll_TypedJobError(t *testing.T) {
	jerr := joberrors.OperationNotInProject("do_the_twist")
	w, fake := newTestWatcher(t, func(ctx context.Context, job Job) (string, error) {
		return "", jerr
	})

	if err := w.Poll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := fake.patchAt(1)
	if got == nil || got["status_code"] != float64(jerr.Code) {
		t.Fatalf("patch = %v, want status_code=%d", got, jerr.Code)
	}
	// OperationNotInProject details are not reportable.
	if got["status_message"] != jerr.SafeDetails() {
		t.Errorf("status_message = %v, want %q", got["status_message"], jerr.SafeDetails())
	}
}

func TestPoll_PanickingJob(t *testing.T) {
	w, fake := newTestWatcher(t, func(ctx context.Context, job Job) (string, error) {
		panic("boom")
	})

	if err := w.Poll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := fake.patchAt(1)
	if got == nil || got["status_code"] != float64(joberrors.CodeUnclassified) {
		t.Errorf("patch = %v, want status_code=99", got)
	}
}

func TestPoll_TimeoutJob(t *testing.T) {
	w, fake := newTestWatcher(t, func(ctx context.Context, job Job) (string, error) {
		select {
		case <-time.After(10 * time.Second):
		case <-ctx.Done():
		}
		return "", ctx.Err()
	})
	w.Timeout = 10 * time.Millisecond

	if err := w.Poll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := fake.patchAt(1)
	if got == nil || got["status_code"] != float64(joberrors.CodeTimeout) {
		t.Errorf("patch = %v, want status_code=-1", got)
	}
}

func TestPoll_CancelledMidJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, fake := newTestWatcher(t, func(jobCtx context.Context, job Job) (string, error) {
		cancel()
		<-jobCtx.Done()
		return "", jobCtx.Err()
	})

	if err := w.Poll(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := fake.patchAt(0); got == nil || got["started"] != true {
		t.Errorf("first patch = %v, want started=true", got)
	}
	// No status report: a shutdown must not mark the job failed.
	if got := fake.patchAt(1); got != nil {
		t.Errorf("unexpected report after shutdown: %v", got)
	}
}

func TestPendingJobs_SkipsStarted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"count": 2, "next": null, "previous": null,
			"results": [
				{"url": "http://q/jobs/0/", "operation": "a", "started": true},
				{"url": "http://q/jobs/1/", "operation": "b", "started": false}
			]
		}`)
	}))
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := NewClient(server.URL, "user", "pass", logger)

	jobs, err := client.PendingJobs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Operation != "b" {
		t.Errorf("jobs = %+v, want only the unstarted one", jobs)
	}
}

func TestPendingJobs_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := NewClient(server.URL, "user", "pass", logger)

	if _, err := client.PendingJobs(context.Background()); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestPendingJobs_Auth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "queue-user" || pass != "queue-pass" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"count": 0, "next": null, "previous": null, "results": []}`)
	}))
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := NewClient(server.URL, "queue-user", "queue-pass", logger)

	if _, err := client.PendingJobs(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
