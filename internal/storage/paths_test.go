package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opencohort/runner/internal/config"
)

func TestVolumeName(t *testing.T) {
	tests := []struct {
		repo string
		tag  string
		db   string
		want string
	}{
		{"https://github.com/opencohort/hiv-research/", "feasibility-no", "full", "hiv-research-feasibility-no-full"},
		{"https://github.com/opencohort/hiv-research", "master", "slice", "hiv-research-master-slice"},
		{"plain-name", "v1", "dummy", "plain-name-v1-dummy"},
	}

	for _, tt := range tests {
		if got := VolumeName(tt.repo, tt.tag, tt.db); got != tt.want {
			t.Errorf("VolumeName(%q, %q, %q) = %q, want %q", tt.repo, tt.tag, tt.db, got, tt.want)
		}
	}
}

func TestContainerName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/badname", "badname"},
		{"/mnt/high_privacy/repo-master-full", "mnt-high-privacy-repo-master-full"},
		{"simple", "simple"},
	}

	for _, tt := range tests {
		if got := ContainerName(tt.in); got != tt.want {
			t.Errorf("ContainerName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSafeJoin(t *testing.T) {
	got, err := SafeJoin("/data/outputs", "model.log")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/data/outputs/model.log" {
		t.Errorf("SafeJoin = %q", got)
	}

	if _, err := SafeJoin("/data/outputs", "../../etc/passwd"); err == nil {
		t.Error("expected error for path escaping the base")
	}

	// A sibling directory sharing the base as a string prefix must not pass.
	if _, err := SafeJoin("/data/outputs", "../outputs-evil/x"); err == nil {
		t.Error("expected error for sibling prefix path")
	}
}

func TestOutputPath(t *testing.T) {
	base := t.TempDir()
	cfg := config.StorageConfig{HighPrivacyBase: base}

	path, err := OutputPath(cfg, config.PrivacyHigh, "repo-master-full")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != filepath.Join(base, "repo-master-full") {
		t.Errorf("path = %q", path)
	}
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		t.Errorf("output path not created: %v", err)
	}
}

func TestOutputPath_UnconfiguredLevel(t *testing.T) {
	cfg := config.StorageConfig{HighPrivacyBase: t.TempDir()}

	if _, err := OutputPath(cfg, config.PrivacyMedium, "v"); err == nil {
		t.Error("expected error for unconfigured privacy level")
	}
}
