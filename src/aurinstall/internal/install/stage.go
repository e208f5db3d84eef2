package install

import (
	"context"
)

// StageName identifies a pipeline stage
type StageName string

const (
	// StageResolve resolves the product name and version to a repository URL
	StageResolve StageName = "resolve"
	// StageFetch materializes the source code locally
	StageFetch StageName = "fetch"
	// StageDetect classifies the build type of the fetched tree
	StageDetect StageName = "detect_build"
	// StageBuild runs the build action and populates the install directory
	StageBuild StageName = "build"
	// StageModule synthesizes the environment-module file
	StageModule StageName = "synth_module"
	// StagePermissions normalizes permissions on the install tree
	StagePermissions StageName = "fix_permissions"
	// StageCleanup removes the working directory
	StageCleanup StageName = "cleanup"
)

// Stage defines the interface for a single pipeline stage
type Stage interface {
	// Name returns the stage name
	Name() StageName

	// Validate checks whether this stage can run given the current context
	Validate(ctx context.Context, ic *Context) error

	// Execute runs the stage
	Execute(ctx context.Context, ic *Context) error
}

// InstallPaths holds the directory layout for one run, computed once during
// resolution and read by every later stage.
type InstallPaths struct {
	// Root is the product root, e.g. /global/software/auriga
	Root string
	// WorkingParent is the directory under which the working dir is created
	WorkingParent string
	// WorkingDir is where the fetched source lives
	WorkingDir string
	// InstallDir is <root>/code/<product>/<version>
	InstallDir string
	// ModuleDir is where module files are installed
	ModuleDir string
}

// Config carries the command-line and configuration inputs for one run.
// Threading this struct through the stages replaces the original reliance on
// ambient environment variables for inter-stage communication.
type Config struct {
	ProductName    string
	ProductVersion string

	// Root overrides AURIGA_PRODUCT_ROOT
	Root string
	// ModulesHome is the Modules installation ($MODULESHOME)
	ModulesHome string
	// ModuleDir overrides the computed module file directory
	ModuleDir string
	// Username for svn access
	Username string
	// Password for svn access, set only when prompted for
	Password string
	// Python is the interpreter used for py builds
	Python string
	// NerscHost mirrors $NERSC_HOST and drives dependency filtering
	NerscHost string
	// Overrides extends the known-products table
	Overrides map[string]string

	// Group and ACLAccount configure the permission stage
	Group      string
	ACLAccount string

	Force         bool
	ForceCompile  bool
	Keep          bool
	NoDefault     bool
	WorldReadable bool
	EnableACL     bool
	DryRun        bool
	Verbose       bool
}

// Context holds shared state passed through the pipeline
type Context struct {
	// RunID tags every log line and the ledger row for this invocation
	RunID string

	Config Config

	// Product is populated by the resolve stage
	Product *Product
	// Paths is populated by the resolve stage
	Paths InstallPaths
	// BuildType is populated by the detect stage
	BuildType BuildType
	// PyVersion is the "pythonX.Y" string for py builds, populated by the
	// build stage
	PyVersion string
	// Dependencies is populated by the module stage
	Dependencies []string
	// ModuleFile is the path of the installed module file
	ModuleFile string

	// Runner executes external commands; dry-run swaps in a recorder
	Runner Runner
}
