package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config aggregates runtime configuration grouped by concern.
type Config struct {
	ServiceName string
	HTTP        HTTPConfig
	Stripe      StripeConfig
	Issuer      IssuerConfig
	Email       EmailConfig
	Events      EventsConfig
	Debug       DebugConfig

	// CallTimeout bounds every outbound provider call. Stripe retries
	// webhook deliveries that respond too slowly, so a hung provider
	// must never stall the inbound request.
	CallTimeout time.Duration
}

type HTTPConfig struct {
	Addr string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SiteURL       string
}

type IssuerConfig struct {
	SellerKey string
	BaseURL   string
}

type EmailConfig struct {
	Driver string // "sendgrid" or "log"
	APIKey string
	Sender string
}

type EventsConfig struct {
	Brokers []string
	Topic   string
}

// DebugConfig guards the manual fulfillment and mint endpoints.
// When Token is empty those endpoints are disabled.
type DebugConfig struct {
	Token string
}

// Load reads configuration from environment variables. It fails with an
// error naming every missing required secret so the process refuses to
// start half-configured.
func Load() (Config, error) {
	cfg := Config{
		ServiceName: getEnv("SERVICE_NAME", "license-storefront"),
		HTTP: HTTPConfig{
			Addr: getEnv("HTTP_LISTEN_ADDR", ":3000"),
		},
		Stripe: StripeConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			SiteURL:       getEnv("SITE_URL", "http://localhost:3000"),
		},
		Issuer: IssuerConfig{
			SellerKey: os.Getenv("KEYAUTH_SELLER_KEY"),
			BaseURL:   getEnv("KEYAUTH_BASE_URL", "https://keyauth.win/api/seller/"),
		},
		Email: EmailConfig{
			Driver: getEnv("EMAIL_DRIVER", "sendgrid"),
			APIKey: os.Getenv("SENDGRID_API_KEY"),
			Sender: getEnv("SENDGRID_VERIFIED_SENDER", "ryacy.corp@gmail.com"),
		},
		Events: EventsConfig{
			Brokers: splitAndTrim(getEnv("KAFKA_BROKERS", "localhost:9092")),
			Topic:   getEnv("KAFKA_FULFILLMENT_TOPIC", "fulfillment.v1"),
		},
		Debug: DebugConfig{
			Token: os.Getenv("DEBUG_API_TOKEN"),
		},
	}

	timeoutStr := getEnv("PROVIDER_CALL_TIMEOUT", "10s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return Config{}, fmt.Errorf("parse PROVIDER_CALL_TIMEOUT: %w", err)
	}
	cfg.CallTimeout = timeout

	var missing []string
	if cfg.Stripe.SecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if cfg.Stripe.WebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if cfg.Issuer.SellerKey == "" {
		missing = append(missing, "KEYAUTH_SELLER_KEY")
	}
	if cfg.Email.Driver != "log" && cfg.Email.APIKey == "" {
		missing = append(missing, "SENDGRID_API_KEY")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
