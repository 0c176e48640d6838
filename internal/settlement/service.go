package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/schoolride/billing-backend/internal/billing"
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

// Result summarizes one settlement run over a billing period.
type Result struct {
	Period    string                  `json:"period"`
	Settled   int                     `json:"settled"`
	Suspended int                     `json:"suspended"`
	Skipped   int                     `json:"skipped"`
	Failed    []billing.RecordFailure `json:"failed"`
}

// Err folds the per-payment failures into one error.
func (r Result) Err() error {
	return billing.FailuresErr(r.Failed)
}

// ServiceParams groups dependencies for the settlement service.
type ServiceParams struct {
	Tx                 txRunner
	Repo               ledger.Repository
	Outbox             outboxPublisher
	PlatformFeePercent decimal.Decimal
	Metrics            *metrics.BillingMetrics
	Logger             *logger.Logger
	Now                func() time.Time
}

// Service closes billing periods: paid fees become payroll lines, unpaid fees
// suspend the child.
type Service struct {
	tx         txRunner
	repo       ledger.Repository
	outbox     outboxPublisher
	feePercent decimal.Decimal
	metrics    *metrics.BillingMetrics
	logg       *logger.Logger
	now        func() time.Time
}

var errAlreadySettled = errors.New("payment already settled")

type outcome int

const (
	outcomeSettled outcome = iota
	outcomeSuspended
)

// NewService builds a settlement service.
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
	if params.PlatformFeePercent.IsNegative() || params.PlatformFeePercent.GreaterThan(hundred) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "platform fee percent must be between 0 and 100")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		tx:         params.Tx,
		repo:       params.Repo,
		outbox:     params.Outbox,
		feePercent: params.PlatformFeePercent,
		metrics:    params.Metrics,
		logg:       params.Logger,
		now:        now,
	}, nil
}

// SettlePeriod processes every payment of period that has not been settled yet.
// Running it again for the same period is a no-op for settled or suspended
// payments, and pays out those confirmed after a previous run suspended them.
func (s *Service) SettlePeriod(ctx context.Context, period string) (Result, error) {
	result := Result{Period: period, Failed: []billing.RecordFailure{}}
	if _, err := billing.ParsePeriod(period); err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid billing period")
	}

	payments, err := s.repo.ListUnsettledForPeriod(ctx, period)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list unsettled payments")
	}

	for _, payment := range payments {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		out, err := s.settlePayment(ctx, payment)
		switch {
		case err == nil && out == outcomeSuspended:
			result.Suspended++
		case err == nil:
			result.Settled++
		case errors.Is(err, errAlreadySettled):
			result.Skipped++
		default:
			failure := billing.RecordFailure{ID: payment.ID, Code: pkgerrors.CodeOf(err), Reason: err.Error()}
			result.Failed = append(result.Failed, failure)
			if s.logg != nil {
				logCtx := s.logg.WithPaymentID(ctx, payment.ID.String())
				logCtx = s.logg.WithBillingPeriod(logCtx, period)
				s.logg.Error(logCtx, "settlement failed for payment", err)
			}
		}
	}

	s.metrics.ObserveSettlement(result.Settled, result.Suspended, len(result.Failed))
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"billing_period": period,
			"settled":        result.Settled,
			"suspended":      result.Suspended,
			"skipped":        result.Skipped,
			"failed":         len(result.Failed),
		})
		s.logg.Info(logCtx, "period settlement finished")
	}
	return result, nil
}

func (s *Service) settlePayment(ctx context.Context, payment models.Payment) (outcome, error) {
	var out outcome
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now().UTC()

		// re-read so a confirmation that landed after listing is seen
		current, err := repo.FindPayment(ctx, payment.ID)
		if err != nil {
			return err
		}

		if !current.IsPaid() {
			claimed, err := repo.MarkSuspended(ctx, current.ID, now)
			if err != nil {
				return err
			}
			if claimed {
				out = outcomeSuspended
				return s.suspend(ctx, tx, repo, *current)
			}
			// lost to a concurrent confirmation or an earlier suspension
			if current, err = repo.FindPayment(ctx, payment.ID); err != nil {
				return err
			}
			if !current.IsPaid() {
				return errAlreadySettled
			}
		}

		claimed, err := repo.MarkSettled(ctx, current.ID, now)
		if err != nil {
			return err
		}
		if !claimed {
			return errAlreadySettled
		}
		out = outcomeSettled
		return s.disburse(ctx, tx, repo, *current, now)
	})
	return out, err
}

func (s *Service) suspend(ctx context.Context, tx *gorm.DB, repo ledger.Repository, payment models.Payment) error {
	if _, err := repo.SuspendChild(ctx, payment.ChildID); err != nil {
		return err
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventChildSuspended,
		AggregateType: enums.AggregateChild,
		AggregateID:   payment.ChildID,
		Data: payloads.ChildSuspendedEvent{
			ChildID:       payment.ChildID,
			PaymentID:     payment.ID,
			PayerID:       payment.PayerID,
			BillingPeriod: payment.BillingPeriod,
		},
	})
}

func (s *Service) disburse(ctx context.Context, tx *gorm.DB, repo ledger.Repository, payment models.Payment, now time.Time) error {
	split := Split(payment.Amount, s.feePercent, payment.DriverSharePercent)
	driverShare, ownerShare := split.DriverShare, split.OwnerShare
	if payment.DriverID == nil && driverShare.IsPositive() {
		// no driver captured: the owner takes the whole remainder
		ownerShare = split.Remaining
		driverShare = decimal.Zero
	}

	var ownerID *uuid.UUID
	if ownerShare.IsPositive() {
		van, err := repo.FindVan(ctx, payment.VanID)
		if err != nil && !ledger.IsNotFound(err) {
			return err
		}
		if van == nil || van.OwnerID == nil {
			return pkgerrors.New(pkgerrors.CodeIntegrity, "van owner not resolvable for service share")
		}
		ownerID = van.OwnerID
	}

	lines := make([]payloads.PayrollLine, 0, 2)
	add := func(recipient uuid.UUID, role enums.PayrollRole, amount decimal.Decimal) error {
		row := &models.Payroll{
			ID:            uuid.New(),
			PaymentID:     payment.ID,
			RecipientID:   recipient,
			RecipientRole: role,
			Amount:        amount,
			Status:        enums.PayrollStatusPending,
			BillingPeriod: payment.BillingPeriod,
			CreatedAt:     now,
		}
		if err := repo.CreatePayroll(ctx, row); err != nil {
			if errors.Is(err, ledger.ErrDuplicatePayroll) {
				return pkgerrors.Wrap(pkgerrors.CodeIntegrity, err, "payroll already recorded for payment")
			}
			return err
		}
		lines = append(lines, payloads.PayrollLine{
			PayrollID:     row.ID,
			RecipientID:   recipient,
			RecipientRole: role,
			Amount:        amount,
		})
		return nil
	}

	if driverShare.IsPositive() {
		if err := add(*payment.DriverID, enums.PayrollRoleDriver, driverShare); err != nil {
			return err
		}
	}
	if ownerShare.IsPositive() {
		if err := add(*ownerID, enums.PayrollRoleService, ownerShare); err != nil {
			return err
		}
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPayrollCreated,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Data: payloads.PayrollCreatedEvent{
			PaymentID:     payment.ID,
			BillingPeriod: payment.BillingPeriod,
			PlatformFee:   split.PlatformFee,
			Lines:         lines,
		},
	})
}
