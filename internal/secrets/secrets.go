// Package secrets resolves the job queue credentials, either from the
// process environment or from a Vault KV path.
package secrets

import (
	"context"
	"fmt"
	"os"

	"github.com/opencohort/runner/internal/config"
)

// Credentials authenticate the runner against the job queue.
type Credentials struct {
	User string
	Pass string
}

// FromEnv reads credentials from QUEUE_USER and QUEUE_PASS.
func FromEnv() (Credentials, error) {
	user, okUser := os.LookupEnv("QUEUE_USER")
	pass, okPass := os.LookupEnv("QUEUE_PASS")
	if !okUser || !okPass {
		return Credentials{}, fmt.Errorf("QUEUE_USER and QUEUE_PASS must be set")
	}
	return Credentials{User: user, Pass: pass}, nil
}

// Lookup resolves queue credentials: from Vault when a vault block is
// configured, otherwise from the environment.
func Lookup(ctx context.Context, cfg *config.VaultConfig) (Credentials, error) {
	if cfg == nil {
		return FromEnv()
	}

	client, err := NewVaultClient(cfg)
	if err != nil {
		return Credentials{}, err
	}
	return client.QueueCredentials(ctx, cfg.Path)
}
