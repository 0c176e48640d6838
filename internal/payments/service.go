package payments

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
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
	pkgstripe "github.com/schoolride/billing-backend/pkg/stripe"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// SessionRetriever reads the live state of a checkout session from the processor.
type SessionRetriever interface {
	RetrieveCheckoutSession(ctx context.Context, sessionID string) (*pkgstripe.Session, error)
}

// ConfirmInput is a processor-confirmed payment arriving through either path.
type ConfirmInput struct {
	PaymentID uuid.UUID
	SessionID string
	Source    enums.ConfirmationSource
}

// ConfirmResult reports the ledger row after confirmation. AlreadyPaid is set when
// another delivery won the transition. Reactivated is set when the payment lifted
// a non-payment suspension.
type ConfirmResult struct {
	Payment     *models.Payment
	AlreadyPaid bool
	Reactivated bool
}

// ServiceParams groups dependencies for the payments service.
type ServiceParams struct {
	Tx        txRunner
	Repo      ledger.Repository
	Outbox    outboxPublisher
	Processor SessionRetriever
	Location  *time.Location
	Metrics   *metrics.BillingMetrics
	Logger    *logger.Logger
	Now       func() time.Time
}

// Service owns the PENDING -> PAID transition and the payer-facing ledger reads.
type Service struct {
	tx        txRunner
	repo      ledger.Repository
	outbox    outboxPublisher
	processor SessionRetriever
	loc       *time.Location
	metrics   *metrics.BillingMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the payments service.
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
	if params.Processor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session retriever required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		tx:        params.Tx,
		repo:      params.Repo,
		outbox:    params.Outbox,
		processor: params.Processor,
		loc:       loc,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// ConfirmPaid moves a payment to PAID exactly once. Concurrent or repeated
// confirmations observe AlreadyPaid and emit nothing.
func (s *Service) ConfirmPaid(ctx context.Context, input ConfirmInput) (*ConfirmResult, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if !input.Source.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown confirmation source")
	}

	result := &ConfirmResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		paidAt := s.now().UTC()

		changed, err := repo.MarkPaid(ctx, input.PaymentID, paidAt)
		if err != nil {
			return err
		}
		payment, err := repo.FindPayment(ctx, input.PaymentID)
		if err != nil {
			if ledger.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
			}
			return err
		}
		result.Payment = payment
		if !changed {
			result.AlreadyPaid = true
			return nil
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentPaid,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			OccurredAt:    paidAt,
			Data: payloads.PaymentPaidEvent{
				PaymentID:     payment.ID,
				PayerID:       payment.PayerID,
				Amount:        payment.Amount,
				BillingPeriod: payment.BillingPeriod,
				SessionID:     input.SessionID,
				Source:        input.Source,
				PaidAt:        paidAt,
			},
		}); err != nil {
			return err
		}
		if payment.SuspendedAt == nil {
			return nil
		}
		reactivated, err := s.reactivate(ctx, tx, repo, *payment, paidAt)
		result.Reactivated = reactivated
		return err
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "confirm payment")
	}

	s.metrics.ObserveConfirmation(string(input.Source), result.AlreadyPaid)
	if s.logg != nil {
		logCtx := s.logg.WithPaymentID(ctx, input.PaymentID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"source":       input.Source,
			"already_paid": result.AlreadyPaid,
			"reactivated":  result.Reactivated,
		})
		s.logg.Info(logCtx, "payment confirmation processed")
	}
	return result, nil
}

// reactivate restores a child suspended for this payment once no other unpaid
// suspension remains.
func (s *Service) reactivate(ctx context.Context, tx *gorm.DB, repo ledger.Repository, payment models.Payment, at time.Time) (bool, error) {
	owing, err := repo.HasSuspendedDebt(ctx, payment.ChildID)
	if err != nil || owing {
		return false, err
	}
	changed, err := repo.ReactivateChild(ctx, payment.ChildID)
	if err != nil || !changed {
		return false, err
	}
	return true, s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventChildReactivated,
		AggregateType: enums.AggregateChild,
		AggregateID:   payment.ChildID,
		OccurredAt:    at,
		Data: payloads.ChildReactivatedEvent{
			ChildID:       payment.ChildID,
			PaymentID:     payment.ID,
			PayerID:       payment.PayerID,
			BillingPeriod: payment.BillingPeriod,
		},
	})
}

// VerifySession is the poll path: it asks the processor about a session and
// confirms the payment only when the processor reports it paid. The session must
// belong to a payment of payerID.
func (s *Service) VerifySession(ctx context.Context, payerID uuid.UUID, sessionID string) (*ConfirmResult, error) {
	if payerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "payer identity required")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}

	sess, err := s.processor.RetrieveCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment processor unavailable")
	}
	if !sess.Paid() {
		status := ""
		if sess != nil {
			status = sess.PaymentStatus
		}
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment not completed").
			WithDetails(map[string]any{"payment_status": status})
	}

	payment, err := s.resolvePayment(ctx, sessionID, sess)
	if err != nil {
		return nil, err
	}
	if payment.PayerID != payerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "checkout session belongs to another payer")
	}
	return s.ConfirmPaid(ctx, ConfirmInput{
		PaymentID: payment.ID,
		SessionID: sessionID,
		Source:    enums.ConfirmationSourcePoll,
	})
}

// resolvePayment maps a paid session to its ledger row, preferring the payment id
// carried in session metadata over the stored session id.
func (s *Service) resolvePayment(ctx context.Context, sessionID string, sess *pkgstripe.Session) (*models.Payment, error) {
	var (
		payment *models.Payment
		err     error
	)
	if id, parseErr := uuid.Parse(sess.PaymentID()); parseErr == nil {
		payment, err = s.repo.FindPayment(ctx, id)
	} else {
		payment, err = s.repo.FindPaymentBySessionID(ctx, sessionID)
	}
	if err != nil {
		if ledger.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "no payment matches checkout session")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve payment")
	}
	return payment, nil
}

// Due lists what the payer owes or was billed this period: every PENDING payment
// first, then the remaining current-period payments, each group newest first.
func (s *Service) Due(ctx context.Context, payerID uuid.UUID) ([]models.Payment, error) {
	if payerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "payer identity required")
	}
	pending, err := s.repo.ListPendingForPayer(ctx, payerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending payments")
	}
	current, err := s.repo.ListForPayerAndPeriod(ctx, payerID, billing.PeriodLabel(s.now(), s.loc))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list current period payments")
	}

	seen := make(map[uuid.UUID]struct{}, len(pending)+len(current))
	due := make([]models.Payment, 0, len(pending)+len(current))
	for _, group := range [][]models.Payment{pending, current} {
		for _, p := range group {
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			due = append(due, p)
		}
	}
	return due, nil
}

// History lists every payment of the payer, newest first.
func (s *Service) History(ctx context.Context, payerID uuid.UUID) ([]models.Payment, error) {
	if payerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "payer identity required")
	}
	payments, err := s.repo.ListForPayer(ctx, payerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment history")
	}
	return payments, nil
}
