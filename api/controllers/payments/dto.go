package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/schoolride/billing-backend/pkg/db/models"
	"github.com/schoolride/billing-backend/pkg/enums"
)

type checkoutRequest struct {
	PaymentID string `json:"payment_id" validate:"required,uuid"`
}

type verifyRequest struct {
	SessionID string `json:"session_id" validate:"required,max=255"`
}

type verifyResponse struct {
	Success     bool      `json:"success"`
	PaymentID   uuid.UUID `json:"payment_id"`
	AlreadyPaid bool      `json:"already_paid"`
}

// PaymentResponse is the payer-facing view of a ledger row.
type PaymentResponse struct {
	ID            uuid.UUID           `json:"id"`
	ChildID       uuid.UUID           `json:"child_id"`
	VanID         uuid.UUID           `json:"van_id"`
	Amount        decimal.Decimal     `json:"amount"`
	BillingPeriod string              `json:"billing_period"`
	Status        enums.PaymentStatus `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
}

func toPaymentResponse(p models.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID,
		ChildID:       p.ChildID,
		VanID:         p.VanID,
		Amount:        p.Amount,
		BillingPeriod: p.BillingPeriod,
		Status:        p.Status,
		CreatedAt:     p.CreatedAt,
		PaidAt:        p.PaidAt,
	}
}

func toPaymentResponses(rows []models.Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(rows))
	for _, p := range rows {
		out = append(out, toPaymentResponse(p))
	}
	return out
}
