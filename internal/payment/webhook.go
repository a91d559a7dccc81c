package payment

import (
	"encoding/json"
	"errors"
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// EventCheckoutCompleted is the only event type that triggers
// fulfillment; every other verified type is acknowledged and ignored.
const EventCheckoutCompleted = "checkout.session.completed"

// ErrMissingSignature is returned before any verification is attempted
// when the signature header or the signing secret is absent. Unsigned
// events must never be accepted.
var ErrMissingSignature = errors.New("missing stripe signature or webhook secret")

// Event is a verified webhook notification.
type Event struct {
	Type    string
	Session CheckoutSession
}

// Verifier authenticates inbound Stripe webhooks against the shared
// signing secret.
type Verifier struct {
	secret string
}

func NewVerifier(webhookSecret string) *Verifier {
	return &Verifier{secret: webhookSecret}
}

// Verify checks the signature over the untouched raw body and parses
// the event. The body must be the exact bytes Stripe sent;
// re-serializing parsed JSON invalidates the signature.
func (v *Verifier) Verify(payload []byte, sigHeader string) (Event, error) {
	if sigHeader == "" || v.secret == "" {
		return Event{}, ErrMissingSignature
	}

	stripeEvent, err := webhook.ConstructEvent(payload, sigHeader, v.secret)
	if err != nil {
		return Event{}, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	evt := Event{Type: string(stripeEvent.Type)}
	if evt.Type == EventCheckoutCompleted {
		var s stripe.CheckoutSession
		if err := json.Unmarshal(stripeEvent.Data.Raw, &s); err != nil {
			return Event{}, fmt.Errorf("decode checkout session payload: %w", err)
		}
		evt.Session = fromStripeSession(&s)
	}
	return evt, nil
}
