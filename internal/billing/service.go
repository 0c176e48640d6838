package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/schoolride/billing-backend/internal/ledger"
	"github.com/schoolride/billing-backend/pkg/db/models"
	"github.com/schoolride/billing-backend/pkg/enums"
	pkgerrors "github.com/schoolride/billing-backend/pkg/errors"
	"github.com/schoolride/billing-backend/pkg/logger"
	"github.com/schoolride/billing-backend/pkg/metrics"
	"github.com/schoolride/billing-backend/pkg/outbox"
	"github.com/schoolride/billing-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// RecordFailure is one child (or payment) a batch could not process.
type RecordFailure struct {
	ID     uuid.UUID      `json:"id"`
	Code   pkgerrors.Code `json:"code"`
	Reason string         `json:"reason"`
}

// GenerationResult summarizes one fee generation run.
type GenerationResult struct {
	Period  string          `json:"period"`
	Created int             `json:"created"`
	Skipped int             `json:"skipped"`
	Failed  []RecordFailure `json:"failed"`
}

// Err folds the per-record failures into a single error, nil when the run was clean.
func (r GenerationResult) Err() error {
	return FailuresErr(r.Failed)
}

// FailuresErr combines record failures with multierr.
func FailuresErr(failures []RecordFailure) error {
	var combined error
	for _, f := range failures {
		combined = multierr.Append(combined, fmt.Errorf("%s: %s: %s", f.ID, f.Code, f.Reason))
	}
	return combined
}

// ServiceParams groups dependencies for the fee generator.
type ServiceParams struct {
	Tx       txRunner
	Repo     ledger.Repository
	Outbox   outboxPublisher
	Location *time.Location
	Metrics  *metrics.BillingMetrics
	Logger   *logger.Logger
	Now      func() time.Time
}

// Service creates the monthly payment obligations.
type Service struct {
	tx      txRunner
	repo    ledger.Repository
	outbox  outboxPublisher
	loc     *time.Location
	metrics *metrics.BillingMetrics
	logg    *logger.Logger
	now     func() time.Time
}

var errAlreadyBilled = errors.New("child already billed for period")

// NewService builds a billing service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tx runner required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger repository required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		tx:      params.Tx,
		repo:    params.Repo,
		outbox:  params.Outbox,
		loc:     location(params.Location),
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     now,
	}, nil
}

// CurrentPeriod is the label of the billing period that contains the service clock.
func (s *Service) CurrentPeriod() string {
	return PeriodLabel(s.now(), s.loc)
}

// GenerateMonthlyFees creates one PENDING payment per billable child for the current
// period. Children already billed are skipped, so reruns are harmless. Each child is
// committed on its own; a bad row never aborts the batch.
func (s *Service) GenerateMonthlyFees(ctx context.Context) (GenerationResult, error) {
	period := s.CurrentPeriod()
	result := GenerationResult{Period: period, Failed: []RecordFailure{}}

	children, err := s.repo.ListBillableChildren(ctx)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list billable children")
	}

	for _, child := range children {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		err := s.billChild(ctx, child, period)
		switch {
		case err == nil:
			result.Created++
		case errors.Is(err, errAlreadyBilled):
			result.Skipped++
		default:
			failure := RecordFailure{ID: child.ID, Code: pkgerrors.CodeOf(err), Reason: err.Error()}
			result.Failed = append(result.Failed, failure)
			if s.logg != nil {
				logCtx := s.logg.WithFields(ctx, map[string]any{
					"child_id":       child.ID.String(),
					"billing_period": period,
					"code":           failure.Code,
				})
				s.logg.Error(logCtx, "fee generation failed for child", err)
			}
		}
	}

	s.metrics.ObserveGeneration(result.Created, result.Skipped, len(result.Failed))
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"billing_period": period,
			"created":        result.Created,
			"skipped":        result.Skipped,
			"failed":         len(result.Failed),
		})
		s.logg.Info(logCtx, "monthly fee generation finished")
	}
	return result, nil
}

func (s *Service) billChild(ctx context.Context, child models.Child, period string) error {
	if !child.FeeAmount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "fee amount must be positive")
	}
	if child.VanID == nil {
		return pkgerrors.New(pkgerrors.CodeIntegrity, "child has no van assignment")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		exists, err := repo.PaymentExists(ctx, child.ID, period)
		if err != nil {
			return err
		}
		if exists {
			return errAlreadyBilled
		}

		van, err := repo.FindVan(ctx, *child.VanID)
		if err != nil {
			if ledger.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeIntegrity, "assigned van not found")
			}
			return err
		}

		payment := &models.Payment{
			ID:                 uuid.New(),
			ChildID:            child.ID,
			PayerID:            child.ParentID,
			VanID:              van.ID,
			DriverID:           van.DriverID,
			Amount:             child.FeeAmount,
			BillingPeriod:      period,
			Status:             enums.PaymentStatusPending,
			DriverSharePercent: van.DriverSharePercent,
		}
		if err := repo.CreatePayment(ctx, payment); err != nil {
			if errors.Is(err, ledger.ErrDuplicatePayment) {
				return pkgerrors.Wrap(pkgerrors.CodeIntegrity, err, "payment already exists for period")
			}
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentCreated,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Data: payloads.PaymentCreatedEvent{
				PaymentID:     payment.ID,
				ChildID:       child.ID,
				PayerID:       child.ParentID,
				Amount:        payment.Amount,
				BillingPeriod: period,
			},
		})
	})
}
