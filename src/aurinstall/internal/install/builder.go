package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aurigasurvey/toolkit/src/common/errors"
	"github.com/aurigasurvey/toolkit/src/common/paths"
)

// Builder turns a fetched working directory into a populated install
// directory according to the detected build type.
type Builder struct {
	runner Runner

	// Python is the interpreter used for py builds
	Python string
}

// NewBuilder creates a builder. python falls back to "python3" when empty.
func NewBuilder(runner Runner, python string) *Builder {
	if python == "" {
		python = "python3"
	}
	return &Builder{runner: runner, Python: python}
}

// PyVersion asks the configured interpreter for its "pythonX.Y" directory
// name, used both for the site-packages layout and the module file.
func (b *Builder) PyVersion(ctx context.Context) (string, error) {
	out, err := b.runner.Run(ctx, "", b.Python, "-c",
		`import sys; print("python{0.major}.{0.minor}".format(sys.version_info))`)
	if err != nil {
		return "", errors.ErrBuildFailed.WithMessagef(
			"Cannot determine version of %s", b.Python).WithCause(err)
	}
	version := strings.TrimSpace(out)
	if version == "" {
		// Dry-run recorders return no output.
		version = "python3"
	}
	return version, nil
}

// PrepareInstallDir ensures installDir does not already hold an install.
// With force an existing directory is removed, otherwise the build is
// refused so a finished install is never clobbered by accident.
func (b *Builder) PrepareInstallDir(installDir string, force bool) error {
	if !paths.Exists(installDir) {
		return nil
	}
	if !force {
		return errors.ErrInstallDirExists.WithMessagef(
			"Install directory %s already exists", installDir)
	}
	log.Info("Removing existing install", "dir", installDir)
	if err := os.RemoveAll(installDir); err != nil {
		return errors.ErrBuildFailed.WithCause(err)
	}
	return nil
}

// Build dispatches on the build type and populates installDir from
// workingDir. pyVersion is only consulted for py builds.
func (b *Builder) Build(ctx context.Context, bt BuildType, workingDir, installDir, pyVersion string) error {
	switch bt {
	case BuildPy:
		return b.buildPy(ctx, workingDir, installDir, pyVersion)
	case BuildMake:
		return b.buildMake(ctx, workingDir)
	case BuildSrc:
		return b.buildSrc(ctx, workingDir, installDir)
	case BuildPlain:
		return b.buildPlain(workingDir, installDir)
	default:
		return errors.ErrBuildFailed.WithMessagef("Unknown build type %q", bt)
	}
}

// buildPy installs the package under a versioned prefix. The site-packages
// directory must exist before pip runs and has to be on PYTHONPATH, or pip
// refuses the prefix.
func (b *Builder) buildPy(ctx context.Context, workingDir, installDir, pyVersion string) error {
	sitePackages := filepath.Join(installDir, "lib", pyVersion, "site-packages")
	if err := os.MkdirAll(sitePackages, 0755); err != nil {
		return errors.ErrBuildFailed.WithCause(err)
	}

	pythonPath := sitePackages
	if existing := os.Getenv("PYTHONPATH"); existing != "" {
		pythonPath = sitePackages + string(os.PathListSeparator) + existing
	}
	if err := os.Setenv("PYTHONPATH", pythonPath); err != nil {
		return errors.ErrBuildFailed.WithCause(err)
	}

	out, err := b.runner.Run(ctx, workingDir, b.Python, "-m", "pip", "install",
		"--no-deps", "--ignore-installed", "--prefix", installDir, ".")
	if err != nil {
		return errors.ErrBuildFailed.WithMessagef(
			"Error during installation of %s", workingDir).WithCause(err)
	}
	logCommandOutput(out)
	return nil
}

// buildMake delegates everything to the product's own install target.
func (b *Builder) buildMake(ctx context.Context, workingDir string) error {
	out, err := b.runner.Run(ctx, workingDir, "make", "install")
	if err != nil {
		return errors.ErrBuildFailed.WithMessage("Error during make install").WithCause(err)
	}
	logCommandOutput(out)
	return nil
}

// buildSrc copies the tree and compiles in place, so built artifacts land
// next to the sources that produced them.
func (b *Builder) buildSrc(ctx context.Context, workingDir, installDir string) error {
	if err := b.buildPlain(workingDir, installDir); err != nil {
		return err
	}
	out, err := b.runner.Run(ctx, installDir, "make", "-C", "src", "all")
	if err != nil {
		return errors.ErrBuildFailed.WithMessage("Error during compile").WithCause(err)
	}
	logCommandOutput(out)
	return nil
}

// buildPlain copies the working directory verbatim.
func (b *Builder) buildPlain(workingDir, installDir string) error {
	if _, dry := b.runner.(*DryRunner); dry {
		fmt.Printf("copy %s -> %s\n", workingDir, installDir)
		return nil
	}
	log.Debug("Copying install tree", "from", workingDir, "to", installDir)
	if err := copyTree(workingDir, installDir); err != nil {
		return errors.ErrBuildFailed.WithMessagef(
			"Error copying %s to %s", workingDir, installDir).WithCause(err)
	}
	return nil
}

// logCommandOutput forwards nonempty build tool output to the debug log.
func logCommandOutput(out string) {
	if trimmed := strings.TrimSpace(out); trimmed != "" {
		log.Debug("Command output", "output", trimmed)
	}
}
