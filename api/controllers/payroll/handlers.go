package payroll

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/schoolride/billing-backend/api/middleware"
	"github.com/schoolride/billing-backend/api/responses"
	"github.com/schoolride/billing-backend/api/validators"
	payrollsvc "github.com/schoolride/billing-backend/internal/payroll"
	"github.com/schoolride/billing-backend/pkg/enums"
	pkgerrors "github.com/schoolride/billing-backend/pkg/errors"
	"github.com/schoolride/billing-backend/pkg/logger"
)

type summarizer interface {
	MonthlySummary(ctx context.Context, recipientID uuid.UUID) ([]payrollsvc.PeriodSummary, error)
}

type completer interface {
	Complete(ctx context.Context, payrollID uuid.UUID) (*payrollsvc.CompleteResult, error)
}

type completeResponse struct {
	ID               uuid.UUID           `json:"id"`
	PaymentID        uuid.UUID           `json:"payment_id"`
	RecipientID      uuid.UUID           `json:"recipient_id"`
	RecipientRole    enums.PayrollRole   `json:"recipient_role"`
	Amount           decimal.Decimal     `json:"amount"`
	Status           enums.PayrollStatus `json:"status"`
	BillingPeriod    string              `json:"billing_period"`
	CompletedAt      *time.Time          `json:"completed_at,omitempty"`
	AlreadyCompleted bool                `json:"already_completed"`
}

// Summary returns the caller's payroll totals per billing period.
func Summary(svc summarizer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		recipient := middleware.UserUUIDFromContext(ctx)
		if recipient == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "recipient identity required"))
			return
		}
		writeSummary(ctx, w, svc, *recipient, logg)
	}
}

// RecipientSummary is the admin view of any recipient's payroll totals.
func RecipientSummary(svc summarizer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		recipient, err := validators.ParseUUIDParam(r, "recipientId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		writeSummary(ctx, w, svc, recipient, logg)
	}
}

func writeSummary(ctx context.Context, w http.ResponseWriter, svc summarizer, recipient uuid.UUID, logg *logger.Logger) {
	summary, err := svc.MonthlySummary(ctx, recipient)
	if err != nil {
		responses.WriteError(ctx, logg, w, err)
		return
	}
	responses.WriteSuccess(w, summary)
}

// Complete records that a payroll line was disbursed.
func Complete(svc completer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		payrollID, err := validators.ParseUUIDParam(r, "payrollId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		result, err := svc.Complete(ctx, payrollID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		p := result.Payroll
		responses.WriteSuccess(w, completeResponse{
			ID:               p.ID,
			PaymentID:        p.PaymentID,
			RecipientID:      p.RecipientID,
			RecipientRole:    p.RecipientRole,
			Amount:           p.Amount,
			Status:           p.Status,
			BillingPeriod:    p.BillingPeriod,
			CompletedAt:      p.CompletedAt,
			AlreadyCompleted: result.AlreadyCompleted,
		})
	}
}
