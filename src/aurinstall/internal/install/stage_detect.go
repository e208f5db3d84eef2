package install

import (
	"context"

	"github.com/aurigasurvey/toolkit/src/common/errors"
	"github.com/aurigasurvey/toolkit/src/common/paths"
)

// detectStage classifies the fetched tree into exactly one build type.
type detectStage struct{}

func (s *detectStage) Name() StageName {
	return StageDetect
}

func (s *detectStage) Validate(ctx context.Context, ic *Context) error {
	if ic.Paths.WorkingDir == "" {
		return errors.New(errors.DomainInternal, errors.CodeInternal,
			errors.ExitFailure, "Detect stage reached without a working directory")
	}
	if !ic.Config.DryRun && !paths.IsDir(ic.Paths.WorkingDir) {
		return errors.ErrTransferFailed.WithMessagef(
			"Working directory %s has gone missing", ic.Paths.WorkingDir)
	}
	return nil
}

func (s *detectStage) Execute(ctx context.Context, ic *Context) error {
	ic.BuildType = DetectBuildType(ic.Paths.WorkingDir, ic.Config.ForceCompile)
	log.Info("Build type", "type", string(ic.BuildType))
	return nil
}
