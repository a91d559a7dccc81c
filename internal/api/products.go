package api

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ryacy/storefront/internal/catalog"
)

// RegisterProductRoutes mounts the catalog endpoint.
func RegisterProductRoutes(mux *http.ServeMux) {
	mux.Handle("/api/products", otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"products": catalog.All()})
	}), "products-list"))
}
