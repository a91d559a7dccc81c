package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/ryacy/storefront/internal/email"
	"github.com/ryacy/storefront/internal/fulfillment"
	"github.com/ryacy/storefront/internal/payment"
)

const testWebhookSecret = "whsec_handler_test"

type stubIssuer struct {
	key   string
	err   error
	calls int
}

func (s *stubIssuer) Issue(_ context.Context, level string) (string, error) {
	s.calls++
	return s.key, s.err
}

type stubSender struct {
	err  error
	sent int
}

func (s *stubSender) Send(_ context.Context, _ email.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent++
	return nil
}

func signedRequest(t *testing.T, payload []byte) *http.Request {
	t.Helper()
	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, testWebhookSecret)
	r := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(payload))
	r.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%x", now.Unix(), sig))
	return r
}

func newWebhookMux(issuer *stubIssuer, sender *stubSender) *http.ServeMux {
	logger := log.New(&bytes.Buffer{}, "", 0)
	pipe := &fulfillment.Pipeline{Issuer: issuer, Email: sender, Logger: logger}
	mux := http.NewServeMux()
	RegisterWebhookRoutes(mux, payment.NewVerifier(testWebhookSecret), pipe, logger)
	return mux
}

func checkoutCompletedPayload(metadata string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"api_version": "`+stripe.APIVersion+`",
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_test_123",
				"customer_details": {"email": "buyer@example.com"},
				"metadata": %s,
				"payment_status": "paid"
			}
		}
	}`, metadata))
}

func TestWebhookRejectsUnsignedRequest(t *testing.T) {
	mux := newWebhookMux(&stubIssuer{}, &stubSender{})
	r := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(checkoutCompletedPayload(`{}`)))
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, r)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookAcknowledgesOtherEventTypes(t *testing.T) {
	issuer := &stubIssuer{key: "AAAAAA-BBBBBB-CCCCCC"}
	mux := newWebhookMux(issuer, &stubSender{})
	payload := []byte(`{"id": "evt_2", "api_version": "` + stripe.APIVersion + `", "type": "invoice.paid", "data": {"object": {"id": "in_1"}}}`)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, signedRequest(t, payload))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, true, body["received"])
	require.Zero(t, issuer.calls)
}

func TestWebhookFailsOnMissingMetadata(t *testing.T) {
	issuer := &stubIssuer{key: "AAAAAA-BBBBBB-CCCCCC"}
	mux := newWebhookMux(issuer, &stubSender{})
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, signedRequest(t, checkoutCompletedPayload(`{"productName": "FloatNote"}`)))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "keyAuthLevel")
	require.Zero(t, issuer.calls)
}

func TestWebhookReturns500OnIssuanceFailure(t *testing.T) {
	issuer := &stubIssuer{err: errors.New("issuer unreachable")}
	sender := &stubSender{}
	mux := newWebhookMux(issuer, sender)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, signedRequest(t, checkoutCompletedPayload(`{"keyAuthLevel": "1", "productName": "FloatNote"}`)))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Zero(t, sender.sent)
}

func TestWebhookSucceedsDespiteEmailFailure(t *testing.T) {
	issuer := &stubIssuer{key: "AAAAAA-BBBBBB-CCCCCC"}
	sender := &stubSender{err: errors.New("sendgrid down")}
	mux := newWebhookMux(issuer, sender)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, signedRequest(t, checkoutCompletedPayload(`{"keyAuthLevel": "1", "productName": "FloatNote"}`)))
	require.Equal(t, http.StatusOK, w.Code)

	var result fulfillment.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.True(t, result.Success)
	require.Equal(t, "AAAAAA-BBBBBB-CCCCCC", result.LicenseKey)
}

func TestWebhookFulfillsCompletedCheckout(t *testing.T) {
	issuer := &stubIssuer{key: "AAAAAA-BBBBBB-CCCCCC"}
	sender := &stubSender{}
	mux := newWebhookMux(issuer, sender)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, signedRequest(t, checkoutCompletedPayload(`{"keyAuthLevel": "1", "productName": "FloatNote"}`)))
	require.Equal(t, http.StatusOK, w.Code)

	var result fulfillment.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.True(t, result.Success)
	require.Equal(t, "buyer@example.com", result.CustomerEmail)
	require.Equal(t, "FloatNote", result.ProductName)
	require.Equal(t, 1, sender.sent)
}
