package stripe

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

// ErrSignatureInvalid is returned when a webhook payload fails verification.
var ErrSignatureInvalid = errors.New("stripe signature invalid")

// ConstructEvent verifies the Stripe-Signature header against the signing secret
// and decodes the event. Nothing in the payload is trusted before this succeeds.
func (c *Client) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if c == nil {
		return stripe.Event{}, errors.New("stripe client not initialized")
	}
	return VerifyEvent(payload, sigHeader, c.signingSecret)
}

// VerifyEvent is ConstructEvent without a client, for callers holding only the secret.
func VerifyEvent(payload []byte, sigHeader, secret string) (stripe.Event, error) {
	if sigHeader == "" {
		return stripe.Event{}, fmt.Errorf("%w: header missing", ErrSignatureInvalid)
	}
	event, err := webhook.ConstructEvent(payload, sigHeader, secret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return event, nil
}

// SessionFromEvent decodes the checkout session carried by a checkout.session.* event.
func SessionFromEvent(event *stripe.Event) (*Session, error) {
	if event == nil || event.Data == nil {
		return nil, errors.New("event data missing")
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	return fromStripeSession(&sess), nil
}
