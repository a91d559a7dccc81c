package api

import (
	"crypto/subtle"
	"log"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ryacy/storefront/internal/config"
	"github.com/ryacy/storefront/internal/fulfillment"
	"github.com/ryacy/storefront/internal/license"
	"github.com/ryacy/storefront/internal/payment"
)

// RegisterDebugRoutes mounts the manual fulfillment and mint endpoints.
// Both trigger license issuance outside the signed webhook path, so
// they require the shared debug token; with no token configured they
// are disabled entirely.
func RegisterDebugRoutes(mux *http.ServeMux, cfg config.DebugConfig, stripeClient *payment.Client, issuer license.Issuer, pipe *fulfillment.Pipeline, logger *log.Logger) {
	mux.Handle("/api/debug/fulfill", otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authorizeDebug(cfg, w, r) {
			return
		}
		handleDebugFulfill(stripeClient, pipe, logger, w, r)
	}), "debug-fulfill"))

	mux.Handle("/api/licenses/mint", otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authorizeDebug(cfg, w, r) {
			return
		}
		handleMintLicense(issuer, logger, w, r)
	}), "mint-license"))
}

func authorizeDebug(cfg config.DebugConfig, w http.ResponseWriter, r *http.Request) bool {
	if cfg.Token == "" {
		http.NotFound(w, r)
		return false
	}
	got := r.Header.Get("X-Debug-Token")
	if subtle.ConstantTimeCompare([]byte(got), []byte(cfg.Token)) != 1 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

// handleDebugFulfill re-fetches the checkout session from Stripe and
// re-runs issuance + email delivery. Like the webhook path, a replay
// mints a fresh key.
func handleDebugFulfill(stripeClient *payment.Client, pipe *fulfillment.Pipeline, logger *log.Logger, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "no session ID provided"})
		return
	}

	session, err := stripeClient.GetCheckoutSession(r.Context(), sessionID)
	if err != nil {
		logger.Printf("[debug] session lookup failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}

	result, err := pipe.FulfillSession(r.Context(), session)
	writeFulfillmentResult(w, logger, result, err)
}

func handleMintLicense(issuer license.Issuer, logger *log.Logger, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	level := r.URL.Query().Get("level")
	if level == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "level parameter is required"})
		return
	}

	key, err := issuer.Issue(r.Context(), level)
	if err != nil {
		logger.Printf("[debug] manual mint failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "licenseKey": key})
}
