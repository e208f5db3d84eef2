package install

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/aurigasurvey/toolkit/src/common/paths"
)

// buildStage populates the install directory from the working directory.
// It also exports the environment build scripts traditionally expect:
// WORKING_DIR, INSTALL_DIR and <PRODUCT>_VERSION.
type buildStage struct{}

func (s *buildStage) Name() StageName {
	return StageBuild
}

func (s *buildStage) Validate(ctx context.Context, ic *Context) error {
	builder := NewBuilder(ic.Runner, ic.Config.Python)
	return builder.PrepareInstallDir(ic.Paths.InstallDir, ic.Config.Force)
}

func (s *buildStage) Execute(ctx context.Context, ic *Context) error {
	if err := s.exportEnvironment(ic); err != nil {
		return err
	}
	s.runDataHook(ctx, ic)

	builder := NewBuilder(ic.Runner, ic.Config.Python)
	if ic.BuildType == BuildPy {
		pyVersion, err := builder.PyVersion(ctx)
		if err != nil {
			return err
		}
		ic.PyVersion = pyVersion
	}

	log.Info("Building", "product", ic.Product.Name, "type", string(ic.BuildType),
		"install", ic.Paths.InstallDir)
	return builder.Build(ctx, ic.BuildType, ic.Paths.WorkingDir, ic.Paths.InstallDir, ic.PyVersion)
}

// exportEnvironment publishes the per-run variables build scripts read.
func (s *buildStage) exportEnvironment(ic *Context) error {
	vars := map[string]string{
		"WORKING_DIR": ic.Paths.WorkingDir,
		"INSTALL_DIR": ic.Paths.InstallDir,
		strings.ToUpper(ic.Product.Name) + "_VERSION": ic.Product.BaseVersion,
	}
	for k, v := range vars {
		if err := os.Setenv(k, v); err != nil {
			return err
		}
		log.Debug("Environment", "name", k, "value", v)
	}
	return nil
}

// runDataHook executes the product's optional etc/<name>_data.sh script,
// which downloads auxiliary data too large to keep in the repository.
// Hook failures are reported but never abort the install.
func (s *buildStage) runDataHook(ctx context.Context, ic *Context) {
	hook := filepath.Join(ic.Paths.WorkingDir, "etc", ic.Product.Name+"_data.sh")
	if !paths.IsFile(hook) {
		return
	}
	log.Info("Running data hook", "script", hook)
	if out, err := ic.Runner.Run(ctx, ic.Paths.WorkingDir, "/bin/sh", hook); err != nil {
		log.Warn("Data hook failed, continuing", "script", hook, "error", err, "output", out)
	}
}
