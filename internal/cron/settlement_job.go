package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/schoolride/billing-backend/internal/billing"
	"github.com/schoolride/billing-backend/internal/settlement"
	"github.com/schoolride/billing-backend/pkg/logger"
)

type periodSettler interface {
	SettlePeriod(ctx context.Context, period string) (settlement.Result, error)
}

type SettlementJobParams struct {
	Logger    *logger.Logger
	Settler   periodSettler
	Location  *time.Location
	GraceDays int
}

// NewSettlementJob closes the previous billing period once GraceDays have passed
// since the current period started.
func NewSettlementJob(params SettlementJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Settler == nil {
		return nil, fmt.Errorf("period settler required")
	}
	if params.GraceDays < 0 {
		return nil, fmt.Errorf("grace days must not be negative")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	return &settlementJob{
		logg:      params.Logger,
		settler:   params.Settler,
		loc:       loc,
		graceDays: params.GraceDays,
		now:       time.Now,
	}, nil
}

type settlementJob struct {
	logg      *logger.Logger
	settler   periodSettler
	loc       *time.Location
	graceDays int
	now       func() time.Time
}

func (j *settlementJob) Name() string { return "period-settlement" }

func (j *settlementJob) Run(ctx context.Context) error {
	now := j.now()
	opensAt := billing.PeriodStart(now, j.loc).AddDate(0, 0, j.graceDays)
	period := billing.PreviousPeriodLabel(now, j.loc)
	logCtx := j.logg.WithBillingPeriod(ctx, period)

	if now.Before(opensAt) {
		j.logg.Info(j.logg.WithField(logCtx, "opens_at", opensAt), "settlement grace window still open")
		return nil
	}

	result, err := j.settler.SettlePeriod(ctx, period)
	if err != nil {
		return fmt.Errorf("settle %s: %w", period, err)
	}
	if err := result.Err(); err != nil {
		return fmt.Errorf("settlement for %s: %d payments failed: %w", period, len(result.Failed), err)
	}
	return nil
}
