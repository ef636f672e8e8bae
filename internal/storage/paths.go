// Package storage derives the on-disk locations for action inputs and
// outputs, keyed by workspace state and routed by privacy level.
package storage

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/opencohort/runner/internal/config"
)

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]`)

// VolumeName builds a folder name unique to the job's workspace state:
// repository basename, branch or tag, and database flavour.
func VolumeName(repo, branchOrTag, dbFlavour string) string {
	name := repo
	if u, err := url.Parse(repo); err == nil && u.Path != "" {
		name = strings.Trim(u.Path, "/")
	}
	if i := strings.LastIndex(name, "/"); i != -1 {
		name = name[i+1:]
	}
	return name + "-" + branchOrTag + "-" + dbFlavour
}

// ContainerName sanitises a volume path into a name docker accepts. Basing
// the container name on the volume guarantees only one identical job runs
// at once.
func ContainerName(volumePath string) string {
	name := nonAlnum.ReplaceAllString(volumePath, "-")
	// Docker requires names to begin with an alphanumeric character.
	return strings.TrimLeft(name, "-")
}

// SafeJoin joins base and rel, refusing paths that escape base.
func SafeJoin(base, rel string) (string, error) {
	joined := filepath.Join(base, rel)
	cleanBase := filepath.Clean(base)
	if joined != cleanBase && !strings.HasPrefix(joined, cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid requested path %s, not in %s", joined, base)
	}
	return joined, nil
}

// OutputPath returns the directory for a volume at the given privacy level,
// creating it if needed. The storage bases are volumes shared with the
// docker host, so the resulting path is valid both inside and outside a
// container.
func OutputPath(cfg config.StorageConfig, level config.PrivacyLevel, volumeName string) (string, error) {
	base, ok := cfg.Base(level)
	if !ok {
		return "", fmt.Errorf("no storage base configured for privacy level %q", level)
	}

	path := filepath.Join(base, volumeName)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("creating output path: %w", err)
	}
	return path, nil
}
