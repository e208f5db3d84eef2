package install

import (
	"context"

	"github.com/aurigasurvey/toolkit/src/common/perms"
)

// permsStage normalizes ownership and permissions on the install tree.
// Failures here leave a usable install behind, so they are reported as
// warnings rather than aborting the run.
type permsStage struct{}

func (s *permsStage) Name() StageName {
	return StagePermissions
}

func (s *permsStage) Validate(ctx context.Context, ic *Context) error {
	return nil
}

func (s *permsStage) Execute(ctx context.Context, ic *Context) error {
	if ic.Config.DryRun {
		// The fixer's own dry-run output needs a real tree to walk.
		log.Info("Skipping permission fixes in dry-run mode")
		return nil
	}

	fixer, err := perms.New(perms.Options{
		Group:         ic.Config.Group,
		ACLAccount:    ic.Config.ACLAccount,
		EnableACL:     ic.Config.EnableACL,
		WorldReadable: ic.Config.WorldReadable,
		Verbose:       ic.Config.Verbose,
	})
	if err != nil {
		log.Warn("Skipping permission fixes", "error", err)
		return nil
	}

	report, err := fixer.Fix(ic.Paths.InstallDir)
	if err != nil {
		log.Warn("Permission fixes incomplete", "error", err)
		return nil
	}
	log.Info("Fixed permissions", "examined", report.Examined,
		"changed", report.Changed, "skipped", report.Skipped)
	return nil
}
