package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ryacy/storefront/internal/payment"
)

type checkoutRequest struct {
	Price       float64           `json:"price"`
	ProductName string            `json:"productName"`
	Metadata    map[string]string `json:"metadata"`
}

// RegisterCheckoutRoutes mounts checkout session creation.
func RegisterCheckoutRoutes(mux *http.ServeMux, stripeClient *payment.Client, logger *log.Logger) {
	mux.Handle("/api/checkout-session", otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleCreateCheckoutSession(stripeClient, logger, w, r)
	}), "create-checkout-session"))
}

func handleCreateCheckoutSession(stripeClient *payment.Client, logger *log.Logger, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.ProductName == "" || req.Price <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "price and product name are required"})
		return
	}

	referenceID := "ord-" + strings.ReplaceAll(uuid.New().String()[:8], "-", "")

	session, err := stripeClient.CreateCheckoutSession(r.Context(), req.Price, req.ProductName, referenceID, req.Metadata)
	if err != nil {
		logger.Printf("[checkout] session creation failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "error creating checkout session"})
		return
	}

	logger.Printf("[checkout] session created id=%s ref=%s product=%q", session.ID, referenceID, req.ProductName)
	writeJSON(w, http.StatusOK, map[string]any{
		"url":       session.URL,
		"sessionId": session.ID,
	})
}
