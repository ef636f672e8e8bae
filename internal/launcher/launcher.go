// Package launcher builds a child process environment from an environment
// file and a fixed module-path override, then runs a target executable with
// a verbatim argument vector, forwarding signals and the exit code.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/opencohort/runner/internal/envfile"
)

const (
	// ModulePathVar is the override variable always set for the child.
	ModulePathVar = "PYTHONPATH"

	// ModulePathValue is the fixed value of the override variable. It wins
	// over any assignment of the same name in the environment file.
	ModulePathValue = "lib"

	// DefaultInterpreter is the fixed target executable.
	DefaultInterpreter = "/usr/bin/python3"
)

// Spec describes a single launch attempt. The environment is built up front
// and passed explicitly so the launch itself has no hidden inputs.
type Spec struct {
	// Path is the target executable. Must be absolute.
	Path string

	// Args is the argument vector, forwarded in order and unmodified.
	Args []string

	// Env is the complete child environment in KEY=VALUE form.
	Env []string

	// Stdin, Stdout and Stderr default to the launcher's own streams.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// MergeEnv merges an inherited environment with file entries and overrides.
// Later sources win: file entries shadow the base environment, and overrides
// shadow everything. The result is sorted by nothing; base order is kept and
// new keys append in source order.
func MergeEnv(base []string, entries []envfile.Entry, overrides ...envfile.Entry) []string {
	index := make(map[string]int, len(base))
	merged := make([]string, 0, len(base)+len(entries)+len(overrides))

	for _, kv := range base {
		key, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if i, seen := index[key]; seen {
			merged[i] = kv
			continue
		}
		index[key] = len(merged)
		merged = append(merged, kv)
	}

	set := func(e envfile.Entry) {
		kv := e.Key + "=" + e.Value
		if i, seen := index[e.Key]; seen {
			merged[i] = kv
			return
		}
		index[e.Key] = len(merged)
		merged = append(merged, kv)
	}
	for _, e := range entries {
		set(e)
	}
	for _, e := range overrides {
		set(e)
	}

	return merged
}

// BuildEnv is the launcher's environment contract: the inherited process
// environment, then every entry from the environment file at envPath, then
// the fixed module-path override applied last.
func BuildEnv(envPath string) ([]string, error) {
	entries, err := envfile.Load(envPath)
	if err != nil {
		return nil, err
	}
	override := envfile.Entry{Key: ModulePathVar, Value: ModulePathValue}
	return MergeEnv(os.Environ(), entries, override), nil
}

// Run starts the target and waits for it, forwarding SIGINT and SIGTERM to
// the child. It returns the child's exit code. A non-nil error means the
// child could not be started (or was interrupted by the context before it
// ran to completion in a way that produced no exit status).
func Run(ctx context.Context, spec Spec) (int, error) {
	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Env = spec.Env
	cmd.Stdin = spec.Stdin
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting %s: %w", spec.Path, err)
	}

	// Process replacement is not portable, so spawn-and-wait and relay
	// termination signals to keep the contract of an exec.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	ctxDone := ctx.Done()
	for {
		select {
		case sig := <-sigCh:
			_ = cmd.Process.Signal(sig)
		case <-ctxDone:
			_ = cmd.Process.Signal(syscall.SIGTERM)
			ctxDone = nil
		case err := <-done:
			if err == nil {
				return 0, nil
			}
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return exitErr.ExitCode(), nil
			}
			return 0, fmt.Errorf("waiting for %s: %w", spec.Path, err)
		}
	}
}
