// Package manifest records which action produced each file in a workspace.
// The manifest lives at metadata/manifest.json under the workspace
// directory and is what makes output files visible to the rest of the
// system.
package manifest

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/opencohort/runner/internal/config"
)

const (
	// MetadataDir is the directory inside a workspace where the manifest
	// and logs are created.
	MetadataDir = "metadata"

	// FileName is the manifest file name.
	FileName = "manifest.json"
)

// Manifest is the workspace output index.
type Manifest struct {
	Files   map[string]FileEntry   `json:"files"`
	Actions map[string]ActionEntry `json:"actions"`
}

// FileEntry records the provenance of one output file.
type FileEntry struct {
	CreatedByAction string              `json:"created_by_action"`
	PrivacyLevel    config.PrivacyLevel `json:"privacy_level"`
	Digest          string              `json:"digest,omitempty"`
}

// ActionEntry records what is known about an action run that produced
// outputs. Imported legacy outputs carry "unknown" in most fields.
type ActionEntry struct {
	State         string `json:"state"`
	Commit        string `json:"commit"`
	DockerImageID string `json:"docker_image_id"`
	JobID         string `json:"job_id"`
	RunByUser     string `json:"run_by_user"`
	CreatedAt     string `json:"created_at"`
	CompletedAt   string `json:"completed_at"`
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{
		Files:   make(map[string]FileEntry),
		Actions: make(map[string]ActionEntry),
	}
}

// Path returns the manifest location for a workspace directory.
func Path(workspaceDir string) string {
	return filepath.Join(workspaceDir, MetadataDir, FileName)
}

// Read loads the manifest of a workspace, returning an empty manifest if
// none exists yet.
func Read(workspaceDir string) (*Manifest, error) {
	data, err := os.ReadFile(Path(workspaceDir))
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	m := New()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if m.Files == nil {
		m.Files = make(map[string]FileEntry)
	}
	if m.Actions == nil {
		m.Actions = make(map[string]ActionEntry)
	}
	return m, nil
}

// Write stores the manifest atomically: it is written to a temp file in
// the metadata directory and renamed into place.
func Write(workspaceDir string, m *Manifest) error {
	path := Path(workspaceDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating metadata dir: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing manifest: %w", err)
	}
	return nil
}

// AddFile records an output file, replacing any previous entry of the same
// name. It reports whether the manifest changed.
func (m *Manifest) AddFile(name string, entry FileEntry) bool {
	if existing, ok := m.Files[name]; ok && existing == entry {
		return false
	}
	m.Files[name] = entry
	return true
}

// EnsureAction records a placeholder entry for an action if none exists.
// It reports whether the manifest changed.
func (m *Manifest) EnsureAction(name string) bool {
	if _, ok := m.Actions[name]; ok {
		return false
	}
	m.Actions[name] = ActionEntry{
		State:         "succeeded",
		Commit:        "unknown",
		DockerImageID: "unknown",
		JobID:         "unknown",
		RunByUser:     "unknown",
		CreatedAt:     "unknown",
		CompletedAt:   "unknown",
	}
	return true
}

// FileNames returns the recorded file names, sorted.
func (m *Manifest) FileNames() []string {
	names := make([]string, 0, len(m.Files))
	for name := range m.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Digest computes the hex BLAKE2b-256 digest of a file's contents.
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
