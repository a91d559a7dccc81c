package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"

	appconfig "github.com/ryacy/storefront/internal/config"
	internalapi "github.com/ryacy/storefront/internal/api"
	"github.com/ryacy/storefront/internal/email"
	"github.com/ryacy/storefront/internal/events"
	"github.com/ryacy/storefront/internal/fulfillment"
	"github.com/ryacy/storefront/internal/license"
	"github.com/ryacy/storefront/internal/payment"
	"github.com/ryacy/storefront/internal/telemetry"
)

func newLogger(cfg appconfig.Config) *log.Logger {
	prefix := ""
	if cfg.ServiceName != "" {
		prefix = fmt.Sprintf("[%s] ", cfg.ServiceName)
	}
	logger := log.New(os.Stdout, prefix, log.LstdFlags|log.Lmicroseconds)
	log.SetOutput(os.Stdout)
	log.SetFlags(logger.Flags())
	log.SetPrefix(prefix)
	return logger
}

func setupTelemetry(lc fx.Lifecycle, cfg appconfig.Config) {
	var cleanup func()
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			cleanup = telemetry.InitTracer(cfg.ServiceName)
			return nil
		},
		OnStop: func(context.Context) error {
			if cleanup != nil {
				cleanup()
			}
			return nil
		},
	})
}

func newStripeClient(cfg appconfig.Config) *payment.Client {
	return payment.NewClient(cfg.Stripe, cfg.CallTimeout)
}

func newWebhookVerifier(cfg appconfig.Config) *payment.Verifier {
	return payment.NewVerifier(cfg.Stripe.WebhookSecret)
}

func newLicenseIssuer(cfg appconfig.Config) license.Issuer {
	return license.NewClient(cfg.Issuer, cfg.CallTimeout)
}

func newEmailSender(cfg appconfig.Config, logger *log.Logger) email.Sender {
	if cfg.Email.Driver == "log" {
		logger.Printf("Email driver set to log; license keys will only be printed")
		return email.LogSender{}
	}
	return email.NewSendGridSender(cfg.Email, cfg.CallTimeout)
}

// newEventsProducer constructs the shared audit-event producer and
// binds its lifecycle to Fx.
func newEventsProducer(cfg appconfig.Config, lc fx.Lifecycle) *events.Producer {
	prod := events.NewProducer(cfg.Events.Brokers)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return prod.Close()
		},
	})
	return prod
}

func newPipeline(cfg appconfig.Config, issuer license.Issuer, sender email.Sender, prod *events.Producer, logger *log.Logger) *fulfillment.Pipeline {
	return &fulfillment.Pipeline{
		Issuer: issuer,
		Email:  sender,
		Events: prod,
		Topic:  cfg.Events.Topic,
		Logger: logger,
	}
}

func registerWebServer(lc fx.Lifecycle, cfg appconfig.Config, logger *log.Logger, shutdowner fx.Shutdowner,
	stripeClient *payment.Client, verifier *payment.Verifier, issuer license.Issuer, pipe *fulfillment.Pipeline) {

	httpServer := newWebServer(cfg, logger, stripeClient, verifier, issuer, pipe)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				logger.Printf("Storefront available on %s (serving ./web)", cfg.HTTP.Addr)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Printf("HTTP server error: %v", err)
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	})
}

func newWebServer(cfg appconfig.Config, logger *log.Logger, stripeClient *payment.Client, verifier *payment.Verifier, issuer license.Issuer, pipe *fulfillment.Pipeline) *http.Server {
	mux := http.NewServeMux()

	// Static storefront under / (index.html, success.html).
	// Prefer WEB_DIR env (docker sets WEB_DIR=/app/web). Fallbacks for local dev.
	webDir := os.Getenv("WEB_DIR")
	if webDir == "" {
		webDir = "/app/web"
	}
	if st, err := os.Stat(webDir); err != nil || !st.IsDir() {
		// Fallback to source-relative path for local `go run`.
		if _, src, _, ok := runtime.Caller(0); ok {
			base := filepath.Dir(src) // cmd/server
			guess := filepath.Join(base, "..", "..", "web")
			if abs, err := filepath.Abs(guess); err == nil {
				webDir = abs
			} else {
				webDir = guess
			}
		}
	}

	fileServer := http.FileServer(http.Dir(webDir))
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	mux.Handle("/", fileServer)

	internalapi.RegisterProductRoutes(mux)
	internalapi.RegisterCheckoutRoutes(mux, stripeClient, logger)
	internalapi.RegisterWebhookRoutes(mux, verifier, pipe, logger)
	internalapi.RegisterDebugRoutes(mux, cfg.Debug, stripeClient, issuer, pipe, logger)

	return &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: withCORS(mux),
	}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Simple permissive CORS for local testing
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Debug-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	_ = godotenv.Load()

	app := fx.New(
		fx.Provide(
			appconfig.Load,
			newLogger,
			newStripeClient,
			newWebhookVerifier,
			newLicenseIssuer,
			newEmailSender,
			newEventsProducer,
			newPipeline,
		),
		fx.Invoke(
			func(logger *log.Logger, cfg appconfig.Config) {
				logger.Printf("Starting %s...", cfg.ServiceName)
			},
			setupTelemetry,
			registerWebServer,
		),
	)

	app.Run()
}
