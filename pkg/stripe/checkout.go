package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	checksession "github.com/stripe/stripe-go/v84/checkout/session"
)

// PaymentIDMetadataKey correlates a checkout session with its ledger payment.
const PaymentIDMetadataKey = "payment_id"

// Session is the subset of a Checkout Session the billing engine reads.
type Session struct {
	ID            string
	URL           string
	PaymentStatus string
	Metadata      map[string]string
}

// Paid reports whether Stripe considers the session settled.
func (s *Session) Paid() bool {
	return s != nil && s.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusPaid)
}

// PaymentID returns the correlated ledger payment id, if any.
func (s *Session) PaymentID() string {
	if s == nil || s.Metadata == nil {
		return ""
	}
	return strings.TrimSpace(s.Metadata[PaymentIDMetadataKey])
}

// CheckoutInput describes a one-off fee payment.
type CheckoutInput struct {
	PaymentID   string
	Amount      decimal.Decimal
	Description string
}

// CreateCheckoutSession issues a hosted Checkout Session in payment mode. The
// call is bounded by the configured request timeout.
func (c *Client) CreateCheckoutSession(ctx context.Context, input CheckoutInput) (*Session, error) {
	if c == nil {
		return nil, errors.New("stripe client not initialized")
	}
	if input.PaymentID == "" {
		return nil, errors.New("payment id is required")
	}
	minor, err := ToMinorUnits(input.Amount)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(c.currency.String()),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(input.Description),
					},
					UnitAmount: stripe.Int64(minor),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(c.successURL),
		CancelURL:         stripe.String(c.cancelURL),
		ClientReferenceID: stripe.String(input.PaymentID),
	}
	params.AddMetadata(PaymentIDMetadataKey, input.PaymentID)
	params.Context = ctx

	sess, err := checksession.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return fromStripeSession(sess), nil
}

// RetrieveCheckoutSession fetches the live state of a session by id.
func (c *Client) RetrieveCheckoutSession(ctx context.Context, sessionID string) (*Session, error) {
	if c == nil {
		return nil, errors.New("stripe client not initialized")
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("session id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := checksession.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session: %w", err)
	}
	return fromStripeSession(sess), nil
}

func fromStripeSession(sess *stripe.CheckoutSession) *Session {
	if sess == nil {
		return nil
	}
	return &Session{
		ID:            sess.ID,
		URL:           sess.URL,
		PaymentStatus: string(sess.PaymentStatus),
		Metadata:      sess.Metadata,
	}
}

// ToMinorUnits converts a 2dp amount into the integer minor units Stripe expects.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, fmt.Errorf("amount must be positive, got %s", amount.String())
	}
	return amount.Shift(2).Round(0).IntPart(), nil
}
