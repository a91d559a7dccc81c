package fulfillment

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ryacy/storefront/internal/email"
	"github.com/ryacy/storefront/internal/events"
	"github.com/ryacy/storefront/internal/license"
	"github.com/ryacy/storefront/internal/payment"
)

// ValidationError reports a completed checkout whose payload is missing
// fields required for fulfillment. Nothing is issued.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required data: " + strings.Join(e.Missing, ", ")
}

// Result is the terminal outcome of one fulfillment attempt.
type Result struct {
	Received      bool   `json:"received"`
	Success       bool   `json:"success"`
	LicenseKey    string `json:"licenseKey,omitempty"`
	CustomerEmail string `json:"customerEmail,omitempty"`
	ProductName   string `json:"productName,omitempty"`

	// EmailErr records a failed notification. The license was already
	// minted, so a send failure never downgrades the fulfillment.
	EmailErr error `json:"-"`
}

// Pipeline turns a verified checkout.session.completed event into a
// delivered license key: extract metadata, mint, email, acknowledge.
// No state survives between invocations; a redelivered event re-runs
// everything and mints a second, independent key.
type Pipeline struct {
	Issuer license.Issuer
	Email  email.Sender
	Events *events.Producer
	Topic  string
	Logger *log.Logger
}

// Process runs the pipeline for a verified event. Events of any type
// other than checkout.session.completed are acknowledged without side
// effects.
func (p *Pipeline) Process(ctx context.Context, evt payment.Event) (Result, error) {
	if evt.Type != payment.EventCheckoutCompleted {
		p.logf("ignoring event type %s", evt.Type)
		return Result{Received: true}, nil
	}
	return p.FulfillSession(ctx, evt.Session)
}

// FulfillSession issues and delivers a license for a completed checkout
// session. It is also the entry point for the manual fulfillment path,
// which re-fetches the session from Stripe instead of receiving it in a
// signed event.
func (p *Pipeline) FulfillSession(ctx context.Context, session payment.CheckoutSession) (Result, error) {
	customerEmail := session.CustomerEmail
	level := session.Metadata["keyAuthLevel"]
	productName := session.Metadata["productName"]

	var missing []string
	if customerEmail == "" {
		missing = append(missing, "customerEmail")
	}
	if level == "" {
		missing = append(missing, "keyAuthLevel")
	}
	if productName == "" {
		missing = append(missing, "productName")
	}
	if len(missing) > 0 {
		err := &ValidationError{Missing: missing}
		p.publish(ctx, events.TypeFulfillmentFailed, session.ID, map[string]any{"error": err.Error()})
		return Result{Received: true}, err
	}

	key, err := p.Issuer.Issue(ctx, level)
	if err != nil {
		p.logf("license issuance failed for session %s: %v", session.ID, err)
		p.publish(ctx, events.TypeFulfillmentFailed, session.ID, map[string]any{"error": err.Error()})
		return Result{Received: true}, fmt.Errorf("issue license for session %s: %w", session.ID, err)
	}

	result := Result{
		Received:      true,
		Success:       true,
		LicenseKey:    key,
		CustomerEmail: customerEmail,
		ProductName:   productName,
	}

	sendErr := p.Email.Send(ctx, email.Message{
		To:          customerEmail,
		ProductName: productName,
		LicenseKey:  key,
		OrderID:     session.ID,
	})
	result = applyNotificationOutcome(result, sendErr)
	if result.EmailErr != nil {
		p.logf("email send failed for session %s (license already minted): %v", session.ID, result.EmailErr)
	}

	p.publish(ctx, events.TypeLicenseFulfilled, session.ID, map[string]any{
		"customerEmail": customerEmail,
		"productName":   productName,
		"level":         level,
		"emailed":       result.EmailErr == nil,
	})
	return result, nil
}

// applyNotificationOutcome combines the issuance result with the email
// outcome: issuance succeeding is the definition of fulfilled, so a
// send failure is recorded but does not change Success.
func applyNotificationOutcome(r Result, sendErr error) Result {
	r.EmailErr = sendErr
	return r
}

// publish emits a fire-and-forget audit event. Failures are logged and
// never affect the fulfillment outcome.
func (p *Pipeline) publish(ctx context.Context, eventType, sessionID string, data map[string]any) {
	if p.Events == nil {
		return
	}
	evt := events.Envelope{EventType: eventType, EventVersion: "v1", AggregateID: sessionID, Data: data}
	if err := p.Events.Publish(ctx, p.Topic, sessionID, evt); err != nil {
		p.logf("audit event publish failed for session %s: %v", sessionID, err)
	}
}

func (p *Pipeline) logf(format string, args ...any) {
	if p.Logger != nil {
		p.Logger.Printf("[fulfillment] "+format, args...)
		return
	}
	log.Printf("[fulfillment] "+format, args...)
}
