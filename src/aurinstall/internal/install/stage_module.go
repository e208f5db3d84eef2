package install

import (
	"context"
	"fmt"

	"github.com/aurigasurvey/toolkit/src/aurinstall/internal/modulefile"
	"github.com/aurigasurvey/toolkit/src/common/errors"
	"github.com/aurigasurvey/toolkit/src/common/paths"
)

// moduleStage synthesizes and installs the module file describing the
// finished install, plus the default-version pointer unless suppressed.
type moduleStage struct{}

func (s *moduleStage) Name() StageName {
	return StageModule
}

func (s *moduleStage) Validate(ctx context.Context, ic *Context) error {
	if ic.Paths.ModuleDir == "" {
		return errors.ErrModulesNotConfigured.WithMessage(
			"No module file directory could be determined")
	}
	return nil
}

func (s *moduleStage) Execute(ctx context.Context, ic *Context) error {
	p := ic.Product
	productRoot := ic.Paths.Root + "/code"

	dev := p.IsBranch()
	keywords := modulefile.Configure(p.Name, p.BaseVersion, productRoot,
		ic.Paths.WorkingDir, ic.PyVersion, dev)

	template := modulefile.FindTemplate(ic.Paths.WorkingDir, p.Name)
	content := modulefile.Process(template, keywords)

	deps := modulefile.Dependencies(content, ic.Config.NerscHost)
	if len(deps) == 0 {
		deps = modulefile.Filter(
			modulefile.Fallback(ic.Paths.WorkingDir, p.Name), ic.Config.NerscHost)
	}
	content = modulefile.ApplyDependencies(content, deps)
	ic.Dependencies = deps
	for _, dep := range deps {
		log.Info("Module dependency", "product", p.Name, "dependency", dep)
	}

	if ic.Config.DryRun {
		fmt.Printf("install module file %s/%s/%s\n", ic.Paths.ModuleDir, p.Name, p.BaseVersion)
		if !ic.Config.NoDefault {
			fmt.Printf("install module default %s/%s/.version\n", ic.Paths.ModuleDir, p.Name)
		}
		return nil
	}

	if err := paths.EnsureDirPath(ic.Paths.ModuleDir); err != nil {
		return errors.ErrModuleWriteFailed.WithMessagef(
			"Cannot create module directory %s", ic.Paths.ModuleDir).WithCause(err)
	}

	moduleFile, err := modulefile.Install(ic.Paths.ModuleDir, p.Name, p.BaseVersion, content)
	if err != nil {
		return err
	}
	ic.ModuleFile = moduleFile

	if !ic.Config.NoDefault {
		return modulefile.WriteDefault(ic.Paths.ModuleDir, p.Name, p.BaseVersion)
	}
	return nil
}
