// Package project parses and validates project.yaml pipeline definitions
// and expands a requested action into a container invocation, walking its
// dependency graph and interpolating references to dependency outputs.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/opencohort/runner/internal/config"
	"github.com/opencohort/runner/internal/joberrors"
)

// FileName is the pipeline definition file expected in a checkout.
const FileName = "project.yaml"

// Load reads and parses project.yaml from the given working directory.
func Load(workdir string) (*Project, error) {
	data, err := os.ReadFile(filepath.Join(workdir, FileName))
	if err != nil {
		return nil, fmt.Errorf("reading project file: %w", err)
	}
	return Parse(data)
}

// Parse parses a project definition from YAML bytes.
func Parse(data []byte) (*Project, error) {
	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing project yaml: %w", err)
	}

	if len(p.Actions) == 0 {
		return nil, fmt.Errorf("project defines no actions")
	}
	for id, action := range p.Actions {
		if action == nil {
			return nil, fmt.Errorf("action %q is empty", id)
		}
		action.ID = id
	}

	return &p, nil
}

// Validate checks every action against the run command registry: the
// command token must be registered, the command-plus-arguments signature
// must be unique within the project, and any variable references must name
// dependency outputs.
func Validate(p *Project, commands map[string]config.CommandConfig) error {
	seenRuns := make(map[string]string)

	for id, action := range p.Actions {
		if action.Run == "" {
			return joberrors.InvalidRunCommand(fmt.Sprintf("action %q has no run command", id))
		}

		token, _, args, err := SplitRun(action.Run)
		if err != nil {
			return joberrors.InvalidRunCommand(fmt.Sprintf("action %q: %v", id, err))
		}
		if _, ok := commands[token]; !ok {
			return joberrors.InvalidRunCommand(token)
		}

		// The same command with the same arguments appearing twice would
		// produce indistinguishable outputs.
		signature := fmt.Sprintf("%s %v", token, args)
		if other, dup := seenRuns[signature]; dup {
			return joberrors.DuplicateRunCommand(fmt.Sprintf("%q and %q run identical commands", other, id))
		}
		seenRuns[signature] = id

		for _, ref := range VariablesIn(action.Run) {
			if _, _, err := parseVariable(ref); err != nil {
				return joberrors.InvalidVariable(ref)
			}
		}
	}

	return nil
}
