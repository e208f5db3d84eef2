package install

import (
	"context"
	"os"

	"github.com/aurigasurvey/toolkit/src/common/paths"
)

// cleanupStage removes the working directory. It runs even when an earlier
// stage failed, so aborted runs do not litter the filesystem.
type cleanupStage struct{}

func (s *cleanupStage) Name() StageName {
	return StageCleanup
}

func (s *cleanupStage) Validate(ctx context.Context, ic *Context) error {
	return nil
}

func (s *cleanupStage) Execute(ctx context.Context, ic *Context) error {
	if ic.Config.Keep {
		log.Info("Keeping working directory", "dir", ic.Paths.WorkingDir)
		return nil
	}
	if ic.Paths.WorkingDir == "" || !paths.IsDir(ic.Paths.WorkingDir) {
		return nil
	}
	if ic.Config.DryRun {
		log.Info("Would remove working directory", "dir", ic.Paths.WorkingDir)
		return nil
	}
	log.Debug("Removing working directory", "dir", ic.Paths.WorkingDir)
	if err := os.RemoveAll(ic.Paths.WorkingDir); err != nil {
		// Not worth failing a finished install over.
		log.Warn("Could not remove working directory", "dir", ic.Paths.WorkingDir, "error", err)
	}
	return nil
}
