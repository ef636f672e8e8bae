package secrets

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/vault/api"

	"github.com/opencohort/runner/internal/config"
)

// VaultClient wraps the Vault API client for credential reads.
type VaultClient struct {
	client *api.Client
}

// NewVaultClient creates an authenticated Vault client from the given
// configuration.
func NewVaultClient(cfg *config.VaultConfig) (*VaultClient, error) {
	vaultCfg := api.DefaultConfig()

	// api.DefaultConfig() already reads VAULT_ADDR.
	if cfg.Address != "" {
		vaultCfg.Address = cfg.Address
	}

	client, err := api.NewClient(vaultCfg)
	if err != nil {
		return nil, fmt.Errorf("creating vault client: %w", err)
	}

	if err := authenticate(client, cfg); err != nil {
		return nil, fmt.Errorf("authenticating to vault: %w", err)
	}

	return &VaultClient{client: client}, nil
}

// authenticate sets up authentication based on the config.
func authenticate(client *api.Client, cfg *config.VaultConfig) error {
	switch cfg.Method {
	case "token", "":
		return authenticateToken(client, cfg)
	case "approle":
		return authenticateAppRole(client, cfg)
	default:
		return fmt.Errorf("unsupported auth method: %s", cfg.Method)
	}
}

// authenticateToken sets up token authentication.
func authenticateToken(client *api.Client, cfg *config.VaultConfig) error {
	token := cfg.Token
	if token == "" {
		token = os.Getenv("VAULT_TOKEN")
	}
	if token == "" {
		return fmt.Errorf("no token provided: set VAULT_TOKEN or specify in config")
	}

	client.SetToken(token)
	return nil
}

// authenticateAppRole performs AppRole authentication.
func authenticateAppRole(client *api.Client, cfg *config.VaultConfig) error {
	roleID := cfg.RoleID
	if roleID == "" {
		roleID = os.Getenv("VAULT_ROLE_ID")
	}
	secretID := cfg.SecretID
	if secretID == "" {
		secretID = os.Getenv("VAULT_SECRET_ID")
	}
	if roleID == "" || secretID == "" {
		return fmt.Errorf("approle auth requires role_id and secret_id")
	}

	mountPath := cfg.MountPath
	if mountPath == "" {
		mountPath = "approle"
	}

	path := fmt.Sprintf("auth/%s/login", mountPath)
	secret, err := client.Logical().Write(path, map[string]interface{}{
		"role_id":   roleID,
		"secret_id": secretID,
	})
	if err != nil {
		return fmt.Errorf("approle auth login: %w", err)
	}
	if secret == nil || secret.Auth == nil {
		return fmt.Errorf("approle auth: no auth info returned")
	}

	client.SetToken(secret.Auth.ClientToken)
	return nil
}

// QueueCredentials reads "user" and "pass" keys from a KV path.
func (c *VaultClient) QueueCredentials(ctx context.Context, path string) (Credentials, error) {
	secret, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return Credentials{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return Credentials{}, fmt.Errorf("no secret at %s", path)
	}

	return extractCredentials(secret.Data, path)
}

// extractCredentials pulls user/pass out of a secret's data, unwrapping
// the KV v2 "data" envelope when present.
func extractCredentials(data map[string]interface{}, path string) (Credentials, error) {
	if inner, ok := data["data"].(map[string]interface{}); ok {
		data = inner
	}

	user, okUser := data["user"].(string)
	pass, okPass := data["pass"].(string)
	if !okUser || !okPass {
		return Credentials{}, fmt.Errorf("secret at %s missing user/pass keys", path)
	}

	return Credentials{User: user, Pass: pass}, nil
}
