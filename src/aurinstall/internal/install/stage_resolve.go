package install

import (
	"context"
	"os"
	"path/filepath"

	"github.com/aurigasurvey/toolkit/src/common/errors"
	"github.com/aurigasurvey/toolkit/src/common/paths"
)

// resolveStage turns the product/version request into a Product and lays
// out the directories every later stage writes into.
type resolveStage struct{}

func (s *resolveStage) Name() StageName {
	return StageResolve
}

func (s *resolveStage) Validate(ctx context.Context, ic *Context) error {
	cfg := ic.Config
	if cfg.ProductName == "" || cfg.ProductVersion == "" {
		return errors.ErrMissingArguments
	}
	if cfg.Root == "" {
		return errors.ErrMissingRoot
	}
	if !cfg.DryRun && !paths.IsDir(cfg.Root) {
		return errors.ErrMissingRoot.WithMessagef(
			"Root directory %s does not exist", cfg.Root)
	}
	if !cfg.DryRun && !paths.IsDir(cfg.ModulesHome) {
		return errors.ErrModulesNotConfigured.WithMessagef(
			"MODULESHOME=%s is not a directory", cfg.ModulesHome)
	}
	return nil
}

func (s *resolveStage) Execute(ctx context.Context, ic *Context) error {
	resolver := NewResolver(ic.Config.Overrides)
	product, err := resolver.Resolve(ctx, ic.Config.ProductName, ic.Config.ProductVersion)
	if err != nil {
		return err
	}
	ic.Product = product

	cwd, err := os.Getwd()
	if err != nil {
		return errors.New(errors.DomainInternal, errors.CodeInternal,
			errors.ExitFailure, "Cannot determine current directory").WithCause(err)
	}

	ic.Paths.Root = ic.Config.Root
	ic.Paths.WorkingParent = cwd
	ic.Paths.InstallDir = filepath.Join(ic.Config.Root, "code", product.Name, product.BaseVersion)
	ic.Paths.ModuleDir = ic.Config.ModuleDir
	if ic.Paths.ModuleDir == "" {
		ic.Paths.ModuleDir = filepath.Join(ic.Config.Root, "modulefiles")
	}

	log.Info("Resolved product", "product", product.Name, "version", product.Version,
		"kind", string(product.Kind), "install", ic.Paths.InstallDir)
	return nil
}
