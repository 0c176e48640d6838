package stripewebhook

import (
	"context"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/schoolride/billing-backend/internal/payments"
	"github.com/schoolride/billing-backend/pkg/enums"
	pkgerrors "github.com/schoolride/billing-backend/pkg/errors"
	"github.com/schoolride/billing-backend/pkg/logger"
	pkgstripe "github.com/schoolride/billing-backend/pkg/stripe"
)

type paymentConfirmer interface {
	ConfirmPaid(ctx context.Context, input payments.ConfirmInput) (*payments.ConfirmResult, error)
}

// Outcome describes what a verified event did to the ledger.
type Outcome string

const (
	OutcomeConfirmed   Outcome = "confirmed"
	OutcomeAlreadyPaid Outcome = "already_paid"
	OutcomeIgnored     Outcome = "ignored"
	OutcomeUnmatched   Outcome = "unmatched"
)

// Checkout events that can carry a paid session.
const (
	EventCheckoutCompleted     stripe.EventType = "checkout.session.completed"
	EventAsyncPaymentSucceeded stripe.EventType = "checkout.session.async_payment_succeeded"
)

type ServiceParams struct {
	Payments paymentConfirmer
	Logger   *logger.Logger
}

// Service applies verified Stripe events to the ledger.
type Service struct {
	payments paymentConfirmer
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment confirmer required")
	}
	return &Service{payments: params.Payments, logg: params.Logger}, nil
}

// HandleEvent expects an event whose signature was already verified. Event types
// other than completed checkout sessions are acknowledged without effect.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) (Outcome, error) {
	if event == nil || event.Data == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case EventCheckoutCompleted, EventAsyncPaymentSucceeded:
	default:
		return OutcomeIgnored, nil
	}

	sess, err := pkgstripe.SessionFromEvent(event)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
	}
	logCtx := ctx
	if s.logg != nil {
		logCtx = s.logg.WithFields(ctx, map[string]any{
			"event_id":   event.ID,
			"event_type": string(event.Type),
			"session_id": sess.ID,
		})
	}

	// completed with async methods still pending: wait for async_payment_succeeded
	if !sess.Paid() {
		if s.logg != nil {
			s.logg.Info(logCtx, "checkout session not paid yet")
		}
		return OutcomeIgnored, nil
	}

	paymentID, err := uuid.Parse(sess.PaymentID())
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(logCtx, "checkout session carries no payment id")
		}
		return OutcomeUnmatched, nil
	}

	result, err := s.payments.ConfirmPaid(ctx, payments.ConfirmInput{
		PaymentID: paymentID,
		SessionID: sess.ID,
		Source:    enums.ConfirmationSourceWebhook,
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			if s.logg != nil {
				s.logg.Warn(s.logg.WithPaymentID(logCtx, paymentID.String()), "checkout session references unknown payment")
			}
			return OutcomeUnmatched, nil
		}
		return "", err
	}
	if result.AlreadyPaid {
		return OutcomeAlreadyPaid, nil
	}
	return OutcomeConfirmed, nil
}
