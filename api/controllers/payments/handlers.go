package payments

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/schoolride/billing-backend/api/middleware"
	"github.com/schoolride/billing-backend/api/responses"
	"github.com/schoolride/billing-backend/api/validators"
	"github.com/schoolride/billing-backend/internal/checkout"
	paymentsvc "github.com/schoolride/billing-backend/internal/payments"
	"github.com/schoolride/billing-backend/pkg/db/models"
	pkgerrors "github.com/schoolride/billing-backend/pkg/errors"
	"github.com/schoolride/billing-backend/pkg/logger"
)

type sessionVerifier interface {
	VerifySession(ctx context.Context, payerID uuid.UUID, sessionID string) (*paymentsvc.ConfirmResult, error)
}

type ledgerReader interface {
	Due(ctx context.Context, payerID uuid.UUID) ([]models.Payment, error)
	History(ctx context.Context, payerID uuid.UUID) ([]models.Payment, error)
}

func payerID(r *http.Request) (uuid.UUID, error) {
	id := middleware.UserUUIDFromContext(r.Context())
	if id == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "payer identity required")
	}
	return *id, nil
}

// Checkout opens a processor checkout session for one of the caller's pending payments.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		payer, err := payerID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		paymentID, err := uuid.Parse(req.PaymentID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment_id"))
			return
		}

		session, err := svc.CreateSession(ctx, checkout.CreateSessionInput{PaymentID: paymentID, PayerID: payer})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

// Verify is the redirect-back reconciliation path. It confirms the payment when
// the processor reports the session paid and answers 400 otherwise.
func Verify(svc sessionVerifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		payer, err := payerID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req verifyRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.VerifySession(ctx, payer, req.SessionID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, verifyResponse{
			Success:     true,
			PaymentID:   result.Payment.ID,
			AlreadyPaid: result.AlreadyPaid,
		})
	}
}

func Due(svc ledgerReader, logg *logger.Logger) http.HandlerFunc {
	return listHandler(svc.Due, logg)
}

func History(svc ledgerReader, logg *logger.Logger) http.HandlerFunc {
	return listHandler(svc.History, logg)
}

func listHandler(list func(context.Context, uuid.UUID) ([]models.Payment, error), logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		payer, err := payerID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		rows, err := list(ctx, payer)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toPaymentResponses(rows))
	}
}
