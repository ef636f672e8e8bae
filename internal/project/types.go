package project

// Project is a parsed project.yaml pipeline definition.
type Project struct {
	// Actions is keyed by action id.
	Actions map[string]*Action `yaml:"actions"`
}

// Action is one step of the pipeline.
type Action struct {
	// ID is the action's key in the project file. Filled in after parsing.
	ID string `yaml:"-"`

	// Run is the run command in the form "token:version args...".
	Run string `yaml:"run"`

	// Needs lists action ids that must have completed before this one.
	Needs []string `yaml:"needs"`

	// Outputs maps an output name to the filename the action writes.
	Outputs map[string]string `yaml:"outputs"`
}

// Job is a single requested pipeline run, as received from the queue.
type Job struct {
	// Operation is the id of the action to run.
	Operation string

	// Repo and Tag identify the study repository checkout.
	Repo string
	Tag  string

	// DB is the database flavour ("full", "slice", "dummy").
	DB string

	// Workdir is the checkout directory containing project.yaml.
	Workdir string
}

// Runtime is an action expanded with everything needed to run it in a
// container.
type Runtime struct {
	// Action is the underlying project action.
	Action *Action

	// Image is the container image reference including the version tag.
	Image string

	// DatabaseURL is the backend database URL for the job's flavour.
	DatabaseURL string

	// OutputPath is the privacy-level-routed directory the action writes
	// outputs to. InputPath is set only for commands with an input mount.
	OutputPath string
	InputPath  string

	// ContainerName names the container; derived from OutputPath so that
	// docker itself serialises identical jobs.
	ContainerName string

	// Invocation is the full `docker run` argument list after the image
	// name, mounts and interpolation.
	Invocation []string
}
