package install

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Pipeline runs the install stages in order. Cleanup is held apart from the
// ordered stages because it runs whether or not the others succeeded.
type Pipeline struct {
	ic      *Context
	stages  []Stage
	cleanup Stage
}

// NewPipeline builds a pipeline for one install request. Dry-run swaps the
// command runner for a recorder that prints what would happen.
func NewPipeline(cfg Config) *Pipeline {
	var runner Runner = &ExecRunner{}
	if cfg.DryRun {
		runner = &DryRunner{}
	}
	return &Pipeline{
		ic: &Context{
			RunID:  uuid.NewString(),
			Config: cfg,
			Runner: runner,
		},
		stages: []Stage{
			&resolveStage{},
			&fetchStage{},
			&detectStage{},
			&buildStage{},
			&moduleStage{},
			&permsStage{},
		},
		cleanup: &cleanupStage{},
	}
}

// Context exposes the shared pipeline state, mainly for the CLI layer to
// report results and feed the install ledger.
func (p *Pipeline) Context() *Context {
	return p.ic
}

// Run executes the stages in order, stopping at the first failure. The
// cleanup stage runs regardless of how far the pipeline got.
func (p *Pipeline) Run(ctx context.Context) error {
	var runErr error
	for _, stage := range p.stages {
		log.Debug("Stage starting", "stage", string(stage.Name()), "run_id", p.ic.RunID)
		if err := stage.Validate(ctx, p.ic); err != nil {
			runErr = fmt.Errorf("stage %s: %w", stage.Name(), err)
			break
		}
		if err := stage.Execute(ctx, p.ic); err != nil {
			runErr = fmt.Errorf("stage %s: %w", stage.Name(), err)
			break
		}
		log.Debug("Stage complete", "stage", string(stage.Name()))
	}

	if err := p.cleanup.Execute(ctx, p.ic); err != nil && runErr == nil {
		runErr = fmt.Errorf("stage %s: %w", p.cleanup.Name(), err)
	}
	return runErr
}
