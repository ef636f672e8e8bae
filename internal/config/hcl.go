package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// rootSchema defines the top-level HCL structure.
var rootSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "storage"},
		{Type: "database", LabelNames: []string{"flavour"}},
		{Type: "command", LabelNames: []string{"name"}},
		{Type: "queue"},
	},
}

// ParseHCL parses backend configuration from HCL bytes.
func ParseHCL(data []byte, filename string) (*Config, error) {
	file, diags := hclsyntax.ParseConfig(data, filename, hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing HCL: %s", diags.Error())
	}

	evalCtx := buildEvalContext()

	content, diags := file.Body.Content(rootSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing config structure: %s", diags.Error())
	}

	cfg := &Config{
		Databases: make(map[string]string),
		Commands:  make(map[string]CommandConfig),
	}

	for _, block := range content.Blocks {
		switch block.Type {
		case "storage":
			storage, err := parseStorageBlock(block, evalCtx)
			if err != nil {
				return nil, fmt.Errorf("parsing storage block: %w", err)
			}
			cfg.Storage = *storage

		case "database":
			flavour := block.Labels[0]
			url, err := parseDatabaseBlock(block, evalCtx)
			if err != nil {
				return nil, fmt.Errorf("parsing database block %q: %w", flavour, err)
			}
			cfg.Databases[flavour] = url

		case "command":
			name := block.Labels[0]
			command, err := parseCommandBlock(block, evalCtx)
			if err != nil {
				return nil, fmt.Errorf("parsing command block %q: %w", name, err)
			}
			cfg.Commands[name] = *command

		case "queue":
			queue, err := parseQueueBlock(block, evalCtx)
			if err != nil {
				return nil, fmt.Errorf("parsing queue block: %w", err)
			}
			cfg.Queue = *queue
		}
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// buildEvalContext creates the HCL evaluation context with the env()
// lookup function.
func buildEvalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: map[string]function.Function{
			"env": makeEnvFunction(),
		},
	}
}

// makeEnvFunction creates the env() function for environment lookups in
// config expressions. Unset variables resolve to the empty string so a
// config can reference credentials that only exist in production.
func makeEnvFunction() function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "name", Type: cty.String},
		},
		Type: function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			return cty.StringVal(os.Getenv(args[0].AsString())), nil
		},
	})
}

func parseStorageBlock(block *hcl.Block, evalCtx *hcl.EvalContext) (*StorageConfig, error) {
	storage := &StorageConfig{}

	content, diags := block.Body.Content(&hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "high_privacy"},
			{Name: "medium_privacy"},
		},
	})
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s", diags.Error())
	}

	attrMap := map[string]*string{
		"high_privacy":   &storage.HighPrivacyBase,
		"medium_privacy": &storage.MediumPrivacyBase,
	}
	for name, ptr := range attrMap {
		if attr, exists := content.Attributes[name]; exists {
			val, err := evalString(attr, evalCtx)
			if err != nil {
				return nil, err
			}
			*ptr = val
		}
	}

	return storage, nil
}

func parseDatabaseBlock(block *hcl.Block, evalCtx *hcl.EvalContext) (string, error) {
	content, diags := block.Body.Content(&hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "url", Required: true},
		},
	})
	if diags.HasErrors() {
		return "", fmt.Errorf("%s", diags.Error())
	}

	return evalString(content.Attributes["url"], evalCtx)
}

func parseCommandBlock(block *hcl.Block, evalCtx *hcl.EvalContext) (*CommandConfig, error) {
	command := &CommandConfig{}

	content, diags := block.Body.Content(&hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "image", Required: true},
			{Name: "input_privacy_level"},
			{Name: "output_privacy_level", Required: true},
			{Name: "args"},
		},
	})
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s", diags.Error())
	}

	image, err := evalString(content.Attributes["image"], evalCtx)
	if err != nil {
		return nil, err
	}
	command.Image = image

	if attr, exists := content.Attributes["input_privacy_level"]; exists {
		val, err := evalString(attr, evalCtx)
		if err != nil {
			return nil, err
		}
		command.InputPrivacy = PrivacyLevel(val)
	}

	output, err := evalString(content.Attributes["output_privacy_level"], evalCtx)
	if err != nil {
		return nil, err
	}
	command.OutputPrivacy = PrivacyLevel(output)

	if attr, exists := content.Attributes["args"]; exists {
		args, err := evalStringList(attr, evalCtx)
		if err != nil {
			return nil, err
		}
		command.Args = args
	}

	return command, nil
}

func parseQueueBlock(block *hcl.Block, evalCtx *hcl.EvalContext) (*QueueConfig, error) {
	queue := &QueueConfig{}

	content, diags := block.Body.Content(&hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "endpoint", Required: true},
			{Name: "poll_interval"},
			{Name: "job_timeout"},
		},
		Blocks: []hcl.BlockHeaderSchema{
			{Type: "vault"},
		},
	})
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s", diags.Error())
	}

	endpoint, err := evalString(content.Attributes["endpoint"], evalCtx)
	if err != nil {
		return nil, err
	}
	queue.Endpoint = endpoint

	durations := map[string]*time.Duration{
		"poll_interval": &queue.PollInterval,
		"job_timeout":   &queue.JobTimeout,
	}
	for name, ptr := range durations {
		if attr, exists := content.Attributes[name]; exists {
			val, err := evalString(attr, evalCtx)
			if err != nil {
				return nil, err
			}
			d, err := time.ParseDuration(val)
			if err != nil {
				return nil, fmt.Errorf("evaluating %s: %w", name, err)
			}
			*ptr = d
		}
	}

	for _, vaultBlock := range content.Blocks {
		if vaultBlock.Type == "vault" {
			vault, err := parseVaultBlock(vaultBlock, evalCtx)
			if err != nil {
				return nil, fmt.Errorf("parsing vault block: %w", err)
			}
			queue.Vault = vault
		}
	}

	return queue, nil
}

func parseVaultBlock(block *hcl.Block, evalCtx *hcl.EvalContext) (*VaultConfig, error) {
	vault := &VaultConfig{}

	content, diags := block.Body.Content(&hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "address"},
			{Name: "method"},
			{Name: "token"},
			{Name: "role_id"},
			{Name: "secret_id"},
			{Name: "mount_path"},
			{Name: "path", Required: true},
		},
	})
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s", diags.Error())
	}

	attrMap := map[string]*string{
		"address":    &vault.Address,
		"method":     &vault.Method,
		"token":      &vault.Token,
		"role_id":    &vault.RoleID,
		"secret_id":  &vault.SecretID,
		"mount_path": &vault.MountPath,
		"path":       &vault.Path,
	}
	for name, ptr := range attrMap {
		if attr, exists := content.Attributes[name]; exists {
			val, err := evalString(attr, evalCtx)
			if err != nil {
				return nil, err
			}
			*ptr = val
		}
	}

	return vault, nil
}

func evalString(attr *hcl.Attribute, evalCtx *hcl.EvalContext) (string, error) {
	val, diags := attr.Expr.Value(evalCtx)
	if diags.HasErrors() {
		return "", fmt.Errorf("evaluating %s: %s", attr.Name, diags.Error())
	}
	if val.Type() != cty.String {
		return "", fmt.Errorf("evaluating %s: expected string, got %s", attr.Name, val.Type().FriendlyName())
	}
	return val.AsString(), nil
}

func evalStringList(attr *hcl.Attribute, evalCtx *hcl.EvalContext) ([]string, error) {
	val, diags := attr.Expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, fmt.Errorf("evaluating %s: %s", attr.Name, diags.Error())
	}
	if !val.CanIterateElements() {
		return nil, fmt.Errorf("evaluating %s: expected list of strings", attr.Name)
	}

	var out []string
	for it := val.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		if elem.Type() != cty.String {
			return nil, fmt.Errorf("evaluating %s: expected string element, got %s", attr.Name, elem.Type().FriendlyName())
		}
		out = append(out, elem.AsString())
	}
	return out, nil
}
