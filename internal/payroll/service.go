package payroll

import (
	"context"
	"sort"
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
	"github.com/schoolride/billing-backend/pkg/outbox"
	"github.com/schoolride/billing-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// PeriodSummary totals one recipient's payroll lines for one billing period.
type PeriodSummary struct {
	BillingPeriod string          `json:"billing_period"`
	Completed     decimal.Decimal `json:"completed"`
	Pending       decimal.Decimal `json:"pending"`
	Total         decimal.Decimal `json:"total"`
	Lines         int             `json:"lines"`
}

// CompleteResult is the payroll row after a completion request.
type CompleteResult struct {
	Payroll          *models.Payroll
	AlreadyCompleted bool
}

// Service reads and completes payroll lines.
type Service struct {
	tx     txRunner
	repo   ledger.Repository
	outbox outboxPublisher
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(tx txRunner, repo ledger.Repository, publisher outboxPublisher, logg *logger.Logger) (*Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tx runner required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger repository required")
	}
	if publisher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	}
	return &Service{tx: tx, repo: repo, outbox: publisher, logg: logg, now: time.Now}, nil
}

// MonthlySummary groups the recipient's payroll by billing period, newest first.
func (s *Service) MonthlySummary(ctx context.Context, recipientID uuid.UUID) ([]PeriodSummary, error) {
	if recipientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient id required")
	}
	rows, err := s.repo.ListPayrollsForRecipient(ctx, recipientID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payrolls")
	}
	return Summarize(rows), nil
}

// Summarize folds payroll rows into per-period totals.
func Summarize(rows []models.Payroll) []PeriodSummary {
	byPeriod := map[string]*PeriodSummary{}
	for _, row := range rows {
		sum, ok := byPeriod[row.BillingPeriod]
		if !ok {
			sum = &PeriodSummary{
				BillingPeriod: row.BillingPeriod,
				Completed:     decimal.Zero,
				Pending:       decimal.Zero,
				Total:         decimal.Zero,
			}
			byPeriod[row.BillingPeriod] = sum
		}
		if row.Status == enums.PayrollStatusCompleted {
			sum.Completed = sum.Completed.Add(row.Amount)
		} else {
			sum.Pending = sum.Pending.Add(row.Amount)
		}
		sum.Total = sum.Total.Add(row.Amount)
		sum.Lines++
	}

	out := make([]PeriodSummary, 0, len(byPeriod))
	for _, sum := range byPeriod {
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, errI := billing.ParsePeriod(out[i].BillingPeriod)
		tj, errJ := billing.ParsePeriod(out[j].BillingPeriod)
		switch {
		case errI != nil && errJ != nil:
			return out[i].BillingPeriod < out[j].BillingPeriod
		case errI != nil:
			return false
		case errJ != nil:
			return true
		}
		return ti.After(tj)
	})
	return out
}

// Complete records the disbursement of a payroll line. Repeating it is harmless.
func (s *Service) Complete(ctx context.Context, payrollID uuid.UUID) (*CompleteResult, error) {
	if payrollID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payroll id required")
	}

	result := &CompleteResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		at := s.now().UTC()

		changed, err := repo.CompletePayroll(ctx, payrollID, at)
		if err != nil {
			return err
		}
		row, err := repo.FindPayroll(ctx, payrollID)
		if err != nil {
			if ledger.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payroll not found")
			}
			return err
		}
		result.Payroll = row
		if !changed {
			result.AlreadyCompleted = true
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayrollComplete,
			AggregateType: enums.AggregatePayroll,
			AggregateID:   row.ID,
			OccurredAt:    at,
			Data: payloads.PayrollCompletedEvent{
				PayrollID:   row.ID,
				RecipientID: row.RecipientID,
				Amount:      row.Amount,
				CompletedAt: at,
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "complete payroll")
	}

	if s.logg != nil && !result.AlreadyCompleted {
		s.logg.Info(s.logg.WithField(ctx, "payroll_id", payrollID.String()), "payroll completed")
	}
	return result, nil
}
