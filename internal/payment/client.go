package payment

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	stripeclient "github.com/stripe/stripe-go/v82/client"

	"github.com/ryacy/storefront/internal/config"
)

// Client wraps the Stripe API for checkout sessions. It is constructed
// once from config and passed by reference; no package-global API key
// is set.
type Client struct {
	api     *stripeclient.API
	siteURL string
}

func NewClient(cfg config.StripeConfig, timeout time.Duration) *Client {
	api := &stripeclient.API{}
	api.Init(cfg.SecretKey, stripe.NewBackends(&http.Client{Timeout: timeout}))
	return &Client{
		api:     api,
		siteURL: cfg.SiteURL,
	}
}

// CheckoutSession is the subset of a Stripe checkout session the
// storefront cares about.
type CheckoutSession struct {
	ID            string
	URL           string
	CustomerEmail string
	Metadata      map[string]string
	PaymentStatus string
}

// CreateCheckoutSession builds a card-payment checkout session for one
// unit of the named product. Metadata is carried through to the webhook
// so fulfillment can recover the product name and access level.
func (c *Client) CreateCheckoutSession(ctx context.Context, price float64, productName, referenceID string, metadata map[string]string) (CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String("usd"),
					UnitAmount: stripe.Int64(int64(math.Round(price * 100))),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(productName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(c.siteURL + "/success.html?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(c.siteURL),
		ClientReferenceID: stripe.String(referenceID),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	params.AddMetadata("productName", productName)

	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("create checkout session: %w", err)
	}
	return fromStripeSession(s), nil
}

// GetCheckoutSession re-fetches a session by id. Used by the manual
// fulfillment endpoint.
func (c *Client) GetCheckoutSession(ctx context.Context, id string) (CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := c.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("retrieve checkout session %s: %w", id, err)
	}
	return fromStripeSession(s), nil
}

func fromStripeSession(s *stripe.CheckoutSession) CheckoutSession {
	out := CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		Metadata:      s.Metadata,
		PaymentStatus: string(s.PaymentStatus),
	}
	if s.CustomerDetails != nil {
		out.CustomerEmail = s.CustomerDetails.Email
	}
	return out
}
