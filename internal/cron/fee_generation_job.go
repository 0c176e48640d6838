package cron

import (
	"context"
	"fmt"

	"github.com/schoolride/billing-backend/internal/billing"
	"github.com/schoolride/billing-backend/pkg/logger"
)

type feeGenerator interface {
	GenerateMonthlyFees(ctx context.Context) (billing.GenerationResult, error)
}

type FeeGenerationJobParams struct {
	Logger    *logger.Logger
	Generator feeGenerator
}

// NewFeeGenerationJob bills every enrolled child for the current period. It runs on
// every cycle; children already billed are skipped, so the first cycle of a month
// does the work and later ones are cheap.
func NewFeeGenerationJob(params FeeGenerationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Generator == nil {
		return nil, fmt.Errorf("fee generator required")
	}
	return &feeGenerationJob{logg: params.Logger, generator: params.Generator}, nil
}

type feeGenerationJob struct {
	logg      *logger.Logger
	generator feeGenerator
}

func (j *feeGenerationJob) Name() string { return "fee-generation" }

func (j *feeGenerationJob) Run(ctx context.Context) error {
	result, err := j.generator.GenerateMonthlyFees(ctx)
	if err != nil {
		return fmt.Errorf("generate monthly fees: %w", err)
	}
	if err := result.Err(); err != nil {
		return fmt.Errorf("fee generation for %s: %d of %d children failed: %w",
			result.Period, len(result.Failed), result.Created+result.Skipped+len(result.Failed), err)
	}
	return nil
}
