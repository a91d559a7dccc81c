package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ryacy/storefront/internal/fulfillment"
	"github.com/ryacy/storefront/internal/license"
	"github.com/ryacy/storefront/internal/payment"
)

// RegisterWebhookRoutes mounts the Stripe webhook endpoint.
func RegisterWebhookRoutes(mux *http.ServeMux, verifier *payment.Verifier, pipe *fulfillment.Pipeline, logger *log.Logger) {
	mux.Handle("/api/webhooks/stripe", otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleStripeWebhook(verifier, pipe, logger, w, r)
	}), "stripe-webhook"))
}

func handleStripeWebhook(verifier *payment.Verifier, pipe *fulfillment.Pipeline, logger *log.Logger, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// The signature covers the exact bytes Stripe sent, so the body is
	// read raw and never re-serialized before verification.
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	evt, err := verifier.Verify(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		logger.Printf("[webhook] verification failed: %v", err)
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	result, err := pipe.Process(r.Context(), evt)
	writeFulfillmentResult(w, logger, result, err)
}

// writeFulfillmentResult maps pipeline outcomes to HTTP statuses:
// validation failures are client errors, issuance failures are server
// errors, and everything else (including a failed email after a minted
// key) is acknowledged with 200.
func writeFulfillmentResult(w http.ResponseWriter, logger *log.Logger, result fulfillment.Result, err error) {
	if err != nil {
		var vErr *fulfillment.ValidationError
		if errors.As(err, &vErr) {
			logger.Printf("[webhook] %v", vErr)
			writeJSON(w, http.StatusBadRequest, map[string]any{"received": true, "error": vErr.Error()})
			return
		}
		detail := "failed to process order"
		var iErr *license.IssuanceError
		if errors.As(err, &iErr) {
			detail = iErr.Error()
		}
		logger.Printf("[webhook] fulfillment failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"received": true, "error": detail})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
