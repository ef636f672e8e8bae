package launcher

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opencohort/runner/internal/envfile"
)

func TestMergeEnv_OverrideWins(t *testing.T) {
	base := []string{"HOME=/home/user", "PYTHONPATH=/elsewhere"}
	entries := []envfile.Entry{
		{Key: "FOO", Value: "bar"},
		{Key: "PYTHONPATH", Value: "from-file"},
	}
	override := envfile.Entry{Key: ModulePathVar, Value: ModulePathValue}

	merged := MergeEnv(base, entries, override)

	got := envMap(merged)
	if got["PYTHONPATH"] != ModulePathValue {
		t.Errorf("override must win: PYTHONPATH=%q, want %q", got["PYTHONPATH"], ModulePathValue)
	}
	if got["FOO"] != "bar" {
		t.Errorf("file entry missing: FOO=%q, want bar", got["FOO"])
	}
	if got["HOME"] != "/home/user" {
		t.Errorf("base environment lost: HOME=%q", got["HOME"])
	}
}

func TestMergeEnv_FileShadowsBase(t *testing.T) {
	merged := MergeEnv(
		[]string{"DB=old"},
		[]envfile.Entry{{Key: "DB", Value: "new"}},
	)
	if got := envMap(merged)["DB"]; got != "new" {
		t.Errorf("DB=%q, want new", got)
	}
	// Shadowing replaces in place: no duplicate keys in the result.
	if n := countKey(merged, "DB"); n != 1 {
		t.Errorf("DB appears %d times, want 1", n)
	}
}

func TestMergeEnv_EmptySources(t *testing.T) {
	merged := MergeEnv(nil, nil, envfile.Entry{Key: ModulePathVar, Value: ModulePathValue})
	if len(merged) != 1 || merged[0] != "PYTHONPATH=lib" {
		t.Errorf("got %v, want [PYTHONPATH=lib]", merged)
	}
}

func TestBuildEnv_MissingFile(t *testing.T) {
	env, err := BuildEnv(filepath.Join(t.TempDir(), "absent.env"))
	if err != nil {
		t.Fatalf("missing env file must not fail the launch: %v", err)
	}
	if got := envMap(env)[ModulePathVar]; got != ModulePathValue {
		t.Errorf("override absent: %s=%q", ModulePathVar, got)
	}
}

func TestBuildEnv_FileEntriesVisible(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("FOO=bar\nPYTHONPATH=shadowed\n"), 0o644); err != nil {
		t.Fatalf("writing env file: %v", err)
	}

	env, err := BuildEnv(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := envMap(env)
	if got["FOO"] != "bar" {
		t.Errorf("FOO=%q, want bar", got["FOO"])
	}
	if got[ModulePathVar] != ModulePathValue {
		t.Errorf("%s=%q, want %q", ModulePathVar, got[ModulePathVar], ModulePathValue)
	}
}

func TestRun_ExitCode(t *testing.T) {
	code, err := Run(context.Background(), Spec{
		Path: "/bin/sh",
		Args: []string{"-c", "exit 7"},
		Env:  []string{"PATH=/usr/bin:/bin"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 7 {
		t.Errorf("exit code = %d, want 7", code)
	}
}

func TestRun_ArgsAndEnvForwarded(t *testing.T) {
	var out bytes.Buffer
	code, err := Run(context.Background(), Spec{
		Path:   "/bin/sh",
		Args:   []string{"-c", `echo "$FOO $1 $2"`, "sh", "-m", "pkg.mod"},
		Env:    []string{"PATH=/usr/bin:/bin", "FOO=bar"},
		Stdout: &out,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if got := strings.TrimSpace(out.String()); got != "bar -m pkg.mod" {
		t.Errorf("child saw %q, want %q", got, "bar -m pkg.mod")
	}
}

func TestRun_MissingTarget(t *testing.T) {
	_, err := Run(context.Background(), Spec{
		Path: "/nonexistent/interpreter",
	})
	if err == nil {
		t.Fatal("expected error for missing target executable")
	}
}

func envMap(env []string) map[string]string {
	m := make(map[string]string, len(env))
	for _, kv := range env {
		key, value, ok := strings.Cut(kv, "=")
		if ok {
			m[key] = value
		}
	}
	return m
}

func countKey(env []string, key string) int {
	n := 0
	for _, kv := range env {
		if strings.HasPrefix(kv, key+"=") {
			n++
		}
	}
	return n
}
