package license

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ryacy/storefront/internal/config"
)

// ErrMissingLevel is returned when Issue is called without an access
// level. The request never reaches the issuer.
var ErrMissingLevel = errors.New("license level is required")

// IssuanceError reports a failed mint attempt. RawResponse carries the
// issuer's body for diagnostics; the client never retries.
type IssuanceError struct {
	Status      int
	RawResponse string
	Reason      string
}

func (e *IssuanceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("license issuance failed: %s (status %d)", e.Reason, e.Status)
	}
	return fmt.Sprintf("license issuance failed: %s", e.Reason)
}

// Issuer mints one license key for the given access level.
type Issuer interface {
	Issue(ctx context.Context, level string) (string, error)
}

// Client talks to the KeyAuth seller API. A single key is minted per
// call; keys are permanent (expiry 0) and shaped as three 6-character
// groups.
type Client struct {
	sellerKey string
	baseURL   string
	http      *http.Client
}

const userAgent = "Apidog/1.0.0 (https://apidog.com)"

func NewClient(cfg config.IssuerConfig, timeout time.Duration) *Client {
	return &Client{
		sellerKey: cfg.SellerKey,
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "?"),
		http:      &http.Client{Timeout: timeout},
	}
}

// messageKeyPattern extracts a key from free-text success messages like
// "Successfully added Key: ABC123-DEF456-GHI789".
var messageKeyPattern = regexp.MustCompile(`Key: ([A-Z0-9-]+)`)

type sellerResponse struct {
	Success bool   `json:"success"`
	Key     string `json:"key"`
	Info    string `json:"info"`
	Message string `json:"message"`
}

// Issue requests one permanent, single-use license key. The seller API
// takes all parameters in the query string of a GET request.
func (c *Client) Issue(ctx context.Context, level string) (string, error) {
	if level == "" {
		return "", ErrMissingLevel
	}

	params := url.Values{}
	params.Set("sellerkey", c.sellerKey)
	params.Set("type", "add")
	params.Set("format", "JSON")
	params.Set("expiry", "0") // lifetime
	params.Set("mask", "******-******-******")
	params.Set("level", level)
	params.Set("amount", "1")
	params.Set("character", "1")
	params.Set("note", "Generated from Ryacy Solutions purchase")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build issuer request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &IssuanceError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &IssuanceError{Status: resp.StatusCode, Reason: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &IssuanceError{Status: resp.StatusCode, RawResponse: string(body), Reason: "non-2xx from issuer"}
	}

	var parsed sellerResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &IssuanceError{Status: resp.StatusCode, RawResponse: string(body), Reason: fmt.Sprintf("decode response: %v", err)}
	}

	if key := extractKey(parsed); key != "" {
		return key, nil
	}

	return "", &IssuanceError{Status: resp.StatusCode, RawResponse: string(body), Reason: "unrecognized response shape"}
}

// extractKey tries the issuer's success shapes in fixed priority order:
// a direct key field, then info, then a pattern match over the
// free-text message. First non-empty match wins; the order matters on
// ambiguous responses.
func extractKey(resp sellerResponse) string {
	if !resp.Success {
		return ""
	}
	if resp.Key != "" {
		return resp.Key
	}
	if resp.Info != "" {
		return resp.Info
	}
	if m := messageKeyPattern.FindStringSubmatch(resp.Message); m != nil {
		return m[1]
	}
	return ""
}
