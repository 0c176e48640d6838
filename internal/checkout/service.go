package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/schoolride/billing-backend/internal/ledger"
	"github.com/schoolride/billing-backend/pkg/enums"
	pkgerrors "github.com/schoolride/billing-backend/pkg/errors"
	"github.com/schoolride/billing-backend/pkg/logger"
	pkgstripe "github.com/schoolride/billing-backend/pkg/stripe"
)

// SessionCreator issues hosted checkout sessions at the payment processor.
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, input pkgstripe.CheckoutInput) (*pkgstripe.Session, error)
}

// CreateSessionInput identifies the payment and the payer asking to pay it.
type CreateSessionInput struct {
	PaymentID uuid.UUID
	PayerID   uuid.UUID
}

// Session is what the client needs to redirect the payer.
type Session struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

// Service issues checkout sessions for pending payments.
type Service interface {
	CreateSession(ctx context.Context, input CreateSessionInput) (*Session, error)
}

type service struct {
	repo      ledger.Repository
	processor SessionCreator
	logg      *logger.Logger
}

// NewService builds the checkout session issuer.
func NewService(repo ledger.Repository, processor SessionCreator, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if processor == nil {
		return nil, fmt.Errorf("session creator required")
	}
	return &service{repo: repo, processor: processor, logg: logg}, nil
}

// CreateSession opens a processor session for a PENDING payment. It never touches
// payment status; the session id is stored only for correlation.
func (s *service) CreateSession(ctx context.Context, input CreateSessionInput) (*Session, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if input.PayerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "payer identity required")
	}

	payment, err := s.repo.FindPayment(ctx, input.PaymentID)
	if err != nil {
		if ledger.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment.PayerID != input.PayerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment belongs to another payer")
	}
	if payment.Status != enums.PaymentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not pending").
			WithDetails(map[string]any{"status": payment.Status})
	}

	sess, err := s.processor.CreateCheckoutSession(ctx, pkgstripe.CheckoutInput{
		PaymentID:   payment.ID.String(),
		Amount:      payment.Amount,
		Description: fmt.Sprintf("%s transport fee", payment.BillingPeriod),
	})
	if err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithPaymentID(ctx, payment.ID.String()), "create checkout session failed", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment processor unavailable")
	}
	if sess == nil || sess.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment processor returned no session")
	}

	if err := s.repo.AttachCheckoutSession(ctx, payment.ID, sess.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store checkout session")
	}

	if s.logg != nil {
		logCtx := s.logg.WithPaymentID(ctx, payment.ID.String())
		logCtx = s.logg.WithField(logCtx, "session_id", sess.ID)
		s.logg.Info(logCtx, "checkout session created")
	}
	return &Session{SessionID: sess.ID, RedirectURL: sess.URL}, nil
}
