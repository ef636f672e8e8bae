package project

import (
	"fmt"
	"os"
	"strings"

	"github.com/opencohort/runner/internal/config"
	"github.com/opencohort/runner/internal/joberrors"
	"github.com/opencohort/runner/internal/storage"
)

// Resolve loads project.yaml from the job's working directory, validates
// it, and expands the requested action into a runnable container
// invocation. Direct dependencies are expanded too, and must already have
// produced their declared outputs.
func Resolve(cfg *config.Config, job Job) (*Runtime, error) {
	p, err := Load(job.Workdir)
	if err != nil {
		return nil, err
	}
	return ResolveProject(cfg, p, job)
}

// ResolveProject is Resolve for an already-parsed project.
func ResolveProject(cfg *config.Config, p *Project, job Job) (*Runtime, error) {
	if err := Validate(p, cfg.Commands); err != nil {
		return nil, err
	}

	action, ok := p.Actions[job.Operation]
	if !ok {
		return nil, joberrors.OperationNotInProject(job.Operation)
	}

	g, err := buildGraph(p)
	if err != nil {
		return nil, err
	}

	rt, err := expand(cfg, action, job)
	if err != nil {
		return nil, err
	}

	// Expand dependencies the same way, then assert they have finished by
	// checking their expected outputs exist.
	deps := make(map[string]*Runtime)
	for _, depID := range g.Predecessors(job.Operation) {
		depRT, err := expand(cfg, p.Actions[depID], job)
		if err != nil {
			return nil, err
		}
		if err := checkFinished(depRT); err != nil {
			return nil, err
		}
		deps[depID] = depRT
	}

	// Output references can only be interpolated once the dependencies
	// have been expanded, since they resolve to dependency output paths.
	rt.Invocation, err = interpolate(rt.Invocation, deps)
	if err != nil {
		return nil, err
	}

	return rt, nil
}

// expand turns an action into a Runtime: image with version tag, database
// URL, privacy-routed paths, volume mounts and the argument template with
// per-job placeholders resolved.
func expand(cfg *config.Config, action *Action, job Job) (*Runtime, error) {
	token, version, userArgs, err := SplitRun(action.Run)
	if err != nil {
		return nil, joberrors.InvalidRunCommand(err.Error())
	}

	command, ok := cfg.Commands[token]
	if !ok {
		return nil, joberrors.InvalidRunCommand(token)
	}

	dbURL, ok := cfg.Databases[job.DB]
	if !ok {
		return nil, fmt.Errorf("no database configured for flavour %q", job.DB)
	}

	volume := storage.VolumeName(job.Repo, job.Tag, job.DB)
	outputPath, err := storage.OutputPath(cfg.Storage, command.OutputPrivacy, volume)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		Action:        action,
		Image:         command.Image + ":" + version,
		DatabaseURL:   dbURL,
		OutputPath:    outputPath,
		ContainerName: storage.ContainerName(outputPath),
	}

	vars := map[string]string{
		"database_url": dbURL,
		"output_path":  outputPath,
		"workspace":    job.Workdir,
	}

	mounts := []string{"--volume", "{output_path}:{output_path}"}
	if command.InputPrivacy != config.PrivacyNone {
		inputPath, err := storage.OutputPath(cfg.Storage, command.InputPrivacy, volume)
		if err != nil {
			return nil, err
		}
		rt.InputPath = inputPath
		vars["input_path"] = inputPath
		mounts = append(mounts, "--volume", "{input_path}:{input_path}")
	}

	template := make([]string, 0, len(mounts)+1+len(command.Args)+len(userArgs))
	template = append(template, mounts...)
	template = append(template, rt.Image)
	template = append(template, command.Args...)
	template = append(template, userArgs...)

	invocation := make([]string, 0, len(template))
	for _, arg := range template {
		resolved := config.Substitute(arg, vars)
		// Output references are interpolated later; anything else left in
		// braces is a template mistake.
		if len(VariablesIn(resolved)) == 0 {
			if unresolved := config.FindUnresolved(resolved); len(unresolved) > 0 {
				return nil, fmt.Errorf("unresolved placeholder %s in %q", strings.Join(unresolved, ", "), arg)
			}
		}
		invocation = append(invocation, resolved)
	}
	rt.Invocation = invocation

	return rt, nil
}

// checkFinished raises a typed error unless every declared output of the
// dependency exists on disk. Output filenames come from the study repo and
// must not escape the dependency's output directory.
func checkFinished(dep *Runtime) error {
	for _, filename := range dep.Action.Outputs {
		expected, err := storage.SafeJoin(dep.OutputPath, filename)
		if err != nil {
			return joberrors.InvalidOutputPath(err.Error())
		}
		if _, err := os.Stat(expected); err != nil {
			return joberrors.DependencyNotFinished(
				fmt.Sprintf("No output for %s at %s", dep.Action.ID, expected))
		}
	}
	return nil
}

// interpolate replaces arguments containing output references with the
// path of the referenced dependency output.
func interpolate(args []string, deps map[string]*Runtime) ([]string, error) {
	interpolated := make([]string, 0, len(args))
	for _, arg := range args {
		names := variableNamesIn(arg)
		if len(names) == 0 {
			interpolated = append(interpolated, arg)
			continue
		}

		actionID, outputName, err := parseVariable(names[0])
		if err != nil {
			return nil, joberrors.InvalidVariable(err.Error())
		}

		dep, ok := deps[actionID]
		if !ok {
			return nil, joberrors.InvalidVariable(fmt.Sprintf("No output corresponding to %s was found", arg))
		}
		filename, ok := dep.Action.Outputs[outputName]
		if !ok {
			return nil, joberrors.InvalidVariable(fmt.Sprintf("No output corresponding to %s was found", arg))
		}

		resolved, err := storage.SafeJoin(dep.OutputPath, filename)
		if err != nil {
			return nil, joberrors.InvalidOutputPath(err.Error())
		}
		interpolated = append(interpolated, resolved)
	}
	return interpolated, nil
}
