package config

import "time"

// PrivacyLevel routes action inputs and outputs to a storage area. These
// correspond to the levels in the platform security documentation.
type PrivacyLevel string

const (
	// PrivacyNone marks commands that read straight from the backend
	// database and take no file inputs.
	PrivacyNone PrivacyLevel = ""

	// PrivacyHigh is for patient-level data that never leaves the backend.
	PrivacyHigh PrivacyLevel = "high"

	// PrivacyMedium is for aggregated outputs cleared for review.
	PrivacyMedium PrivacyLevel = "medium"
)

// Config is the runner backend configuration.
type Config struct {
	// Storage locates the privacy-level storage bases.
	Storage StorageConfig

	// Databases maps a human-readable flavour ("full", "slice", "dummy")
	// to a database URL.
	Databases map[string]string

	// Commands is the registry of permitted run commands, keyed by the
	// token used in project definitions.
	Commands map[string]CommandConfig

	// Queue configures the job queue client.
	Queue QueueConfig
}

// StorageConfig holds the storage base directories per privacy level.
type StorageConfig struct {
	HighPrivacyBase   string
	MediumPrivacyBase string
}

// Base returns the storage base for the given privacy level.
func (s StorageConfig) Base(level PrivacyLevel) (string, bool) {
	switch level {
	case PrivacyHigh:
		return s.HighPrivacyBase, s.HighPrivacyBase != ""
	case PrivacyMedium:
		return s.MediumPrivacyBase, s.MediumPrivacyBase != ""
	default:
		return "", false
	}
}

// CommandConfig describes one permitted run command and how it is invoked
// in a container.
type CommandConfig struct {
	// Image is the container image reference, without a version tag. The
	// version from the project's run token is appended at invocation time.
	Image string

	// InputPrivacy is the privacy level of the command's input mount, or
	// PrivacyNone for commands that operate directly on the backend.
	InputPrivacy PrivacyLevel

	// OutputPrivacy is the privacy level the command's outputs land in.
	OutputPrivacy PrivacyLevel

	// Args are fixed arguments prepended to the user-supplied ones. They
	// may contain {database_url}, {output_path} and {input_path}
	// placeholders resolved per job.
	Args []string
}

// QueueConfig configures polling of the job queue.
type QueueConfig struct {
	// Endpoint is the job list URL.
	Endpoint string

	// PollInterval is the delay between polls (default 5s).
	PollInterval time.Duration

	// JobTimeout bounds a single job run (default 24h).
	JobTimeout time.Duration

	// Vault, when present, is where queue credentials are read from. When
	// absent the QUEUE_USER/QUEUE_PASS environment variables are used.
	Vault *VaultConfig
}

// VaultConfig locates queue credentials in Vault.
type VaultConfig struct {
	// Address is the Vault server URL (VAULT_ADDR when empty).
	Address string

	// Method is the auth method: token or approle.
	Method string

	// Token for token auth (VAULT_TOKEN when empty).
	Token string

	// RoleID and SecretID for approle auth.
	RoleID   string
	SecretID string

	// MountPath is the auth mount path (default depends on method).
	MountPath string

	// Path is the KV v2 path holding "user" and "pass" keys.
	Path string
}

const (
	defaultPollInterval = 5 * time.Second
	defaultJobTimeout   = 24 * time.Hour
)

// applyDefaults sets default values for unset fields.
func applyDefaults(cfg *Config) {
	if cfg.Queue.PollInterval == 0 {
		cfg.Queue.PollInterval = defaultPollInterval
	}
	if cfg.Queue.JobTimeout == 0 {
		cfg.Queue.JobTimeout = defaultJobTimeout
	}
}

// validate checks the config for errors.
func validate(cfg *Config) error {
	if len(cfg.Commands) == 0 {
		return errNoCommands
	}
	for name, cmd := range cfg.Commands {
		if cmd.Image == "" {
			return &validationError{block: "command", name: name, detail: "image is required"}
		}
		if err := checkPrivacy(cmd.InputPrivacy, true); err != nil {
			return &validationError{block: "command", name: name, detail: "input_privacy_level: " + err.Error()}
		}
		if err := checkPrivacy(cmd.OutputPrivacy, false); err != nil {
			return &validationError{block: "command", name: name, detail: "output_privacy_level: " + err.Error()}
		}
	}
	return nil
}
