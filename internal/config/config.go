// Package config loads the runner backend configuration from HCL: the
// registry of permitted run commands, privacy-level storage bases, database
// URLs and job queue settings.
package config

import (
	"errors"
	"fmt"
	"os"
)

var errNoCommands = errors.New("no command blocks defined")

type validationError struct {
	block  string
	name   string
	detail string
}

func (e *validationError) Error() string {
	return fmt.Sprintf("%s block %q: %s", e.block, e.name, e.detail)
}

// checkPrivacy validates a privacy level attribute. Only output levels must
// be set; inputs may be empty for backend-facing commands.
func checkPrivacy(level PrivacyLevel, allowNone bool) error {
	switch level {
	case PrivacyHigh, PrivacyMedium:
		return nil
	case PrivacyNone:
		if allowNone {
			return nil
		}
		return fmt.Errorf("must be %q or %q", PrivacyHigh, PrivacyMedium)
	default:
		return fmt.Errorf("unknown privacy level %q", level)
	}
}

// Load reads and parses the backend config file at the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return ParseHCL(data, path)
}
