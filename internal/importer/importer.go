// Package importer copies output files from the legacy storage layout into
// a workspace directory and records them in the workspace manifest, which
// is what makes them visible to the rest of the system.
package importer

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/opencohort/runner/internal/config"
	"github.com/opencohort/runner/internal/manifest"
	"github.com/opencohort/runner/internal/storage"
)

// WorkspacesDir is the directory under the high privacy base holding
// workspace layouts.
const WorkspacesDir = "workspaces"

// Importer migrates legacy per-volume outputs into workspace directories.
type Importer struct {
	storage config.StorageConfig
	logger  *slog.Logger
}

// New creates an importer over the configured storage bases.
func New(storage config.StorageConfig, logger *slog.Logger) *Importer {
	return &Importer{storage: storage, logger: logger}
}

// output is one discovered legacy output file.
type output struct {
	createdByAction string
	privacyLevel    config.PrivacyLevel
	sourcePath      string
}

// ImportWorkspace finds the legacy output directories for a workspace,
// copies their files into the workspace layout and updates the manifest.
func (i *Importer) ImportWorkspace(workspaceName string) error {
	outputs, err := i.findOutputs(workspaceName)
	if err != nil {
		return err
	}
	if len(outputs) == 0 {
		i.logger.Info("no legacy outputs found", "workspace", workspaceName)
		return nil
	}

	workspaceDir := filepath.Join(i.storage.HighPrivacyBase, WorkspacesDir, workspaceName)

	for name, out := range outputs {
		if err := i.copyOutput(workspaceDir, name, out); err != nil {
			return err
		}
	}

	return i.updateManifest(workspaceDir, outputs)
}

// findOutputs scans both privacy-level bases for the workspace's legacy
// directory. Exactly one directory per level must match; legacy volume
// names end with the workspace name.
func (i *Importer) findOutputs(workspaceName string) (map[string]output, error) {
	outputs := make(map[string]output)

	levels := []struct {
		level config.PrivacyLevel
		base  string
	}{
		{config.PrivacyHigh, i.storage.HighPrivacyBase},
		{config.PrivacyMedium, i.storage.MediumPrivacyBase},
	}

	for _, l := range levels {
		if l.base == "" {
			continue
		}

		matches, err := filepath.Glob(filepath.Join(l.base, "*-"+workspaceName))
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", l.base, err)
		}
		if len(matches) == 0 {
			continue
		}
		if len(matches) > 1 {
			return nil, fmt.Errorf("expected exactly one match for %s under %s, got: %v", workspaceName, l.base, matches)
		}
		volumeDir := matches[0]

		err = filepath.WalkDir(volumeDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}

			rel, err := filepath.Rel(volumeDir, path)
			if err != nil {
				return err
			}
			// Legacy layout: <action>/<run-id>/<output path...>
			parts := strings.Split(filepath.ToSlash(rel), "/")
			if len(parts) < 3 {
				i.logger.Warn("skipping file outside action layout", "path", path)
				return nil
			}

			name := strings.Join(parts[2:], "/")
			outputs[name] = output{
				createdByAction: parts[0],
				privacyLevel:    l.level,
				sourcePath:      path,
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", volumeDir, err)
		}
	}

	return outputs, nil
}

// copyOutput copies one file into the workspace, skipping files already
// present. The copy goes through a temp file so a partial write never
// appears under the final name. Output names must not escape the
// workspace directory.
func (i *Importer) copyOutput(workspaceDir, name string, out output) error {
	dest, err := storage.SafeJoin(workspaceDir, filepath.FromSlash(name))
	if err != nil {
		return fmt.Errorf("refusing to import %s: %w", name, err)
	}
	if _, err := os.Stat(dest); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	src, err := os.Open(out.sourcePath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", out.sourcePath, err)
	}
	defer src.Close()

	tmp := dest + ".tmp"
	dst, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(tmp)
		return fmt.Errorf("copying %s: %w", out.sourcePath, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("replacing %s: %w", dest, err)
	}

	i.logger.Info("imported output", "name", name, "from", out.sourcePath)
	return nil
}

// updateManifest records the imported files and their producing actions.
func (i *Importer) updateManifest(workspaceDir string, outputs map[string]output) error {
	m, err := manifest.Read(workspaceDir)
	if err != nil {
		return err
	}

	modified := false
	for name, out := range outputs {
		digest, err := manifest.Digest(filepath.Join(workspaceDir, filepath.FromSlash(name)))
		if err != nil {
			return err
		}
		if m.AddFile(name, manifest.FileEntry{
			CreatedByAction: out.createdByAction,
			PrivacyLevel:    out.privacyLevel,
			Digest:          digest,
		}) {
			modified = true
		}
		if m.EnsureAction(out.createdByAction) {
			modified = true
		}
	}

	if !modified {
		return nil
	}
	return manifest.Write(workspaceDir, m)
}
