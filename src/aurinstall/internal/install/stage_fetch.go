package install

import (
	"context"

	"github.com/aurigasurvey/toolkit/src/common/errors"
)

// fetchStage verifies the remote reference and materializes the source in
// the working directory.
type fetchStage struct{}

func (s *fetchStage) Name() StageName {
	return StageFetch
}

func (s *fetchStage) Validate(ctx context.Context, ic *Context) error {
	if ic.Product == nil {
		return errors.New(errors.DomainInternal, errors.CodeInternal,
			errors.ExitFailure, "Fetch stage reached without a resolved product")
	}
	return nil
}

func (s *fetchStage) Execute(ctx context.Context, ic *Context) error {
	fetcher := NewFetcher(ic.Runner)
	fetcher.Username = ic.Config.Username
	fetcher.Password = ic.Config.Password

	if err := fetcher.Verify(ctx, ic.Product); err != nil {
		return err
	}
	workingDir, err := fetcher.Fetch(ctx, ic.Product, ic.Paths.WorkingParent)
	if err != nil {
		return err
	}
	ic.Paths.WorkingDir = workingDir
	log.Info("Fetched source", "product", ic.Product.Name, "dir", workingDir)
	return nil
}
