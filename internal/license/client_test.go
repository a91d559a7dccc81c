package license

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ryacy/storefront/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.IssuerConfig{SellerKey: "sk_test", BaseURL: srv.URL + "/"}, 2*time.Second)
}

func TestIssueRequiresLevel(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	_, err := c.Issue(context.Background(), "")
	require.ErrorIs(t, err, ErrMissingLevel)
	require.False(t, called, "empty level must not reach the issuer")
}

func TestIssueSendsSellerParams(t *testing.T) {
	var gotQuery url.Values
	var gotUA string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{"success":true,"key":"AAAAAA-BBBBBB-CCCCCC"}`))
	})

	key, err := c.Issue(context.Background(), "2")
	require.NoError(t, err)
	require.Equal(t, "AAAAAA-BBBBBB-CCCCCC", key)

	require.Equal(t, "sk_test", gotQuery.Get("sellerkey"))
	require.Equal(t, "add", gotQuery.Get("type"))
	require.Equal(t, "JSON", gotQuery.Get("format"))
	require.Equal(t, "0", gotQuery.Get("expiry"))
	require.Equal(t, "******-******-******", gotQuery.Get("mask"))
	require.Equal(t, "2", gotQuery.Get("level"))
	require.Equal(t, "1", gotQuery.Get("amount"))
	require.NotEmpty(t, gotUA)
}

func TestIssueAcceptsInfoField(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"info":"XXXXXX-YYYYYY-ZZZZZZ"}`))
	})

	key, err := c.Issue(context.Background(), "1")
	require.NoError(t, err)
	require.Equal(t, "XXXXXX-YYYYYY-ZZZZZZ", key)
}

func TestIssueExtractsKeyFromMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"message":"Successfully added Key: PPPPPP-QQQQQQ-RRRRRR"}`))
	})

	key, err := c.Issue(context.Background(), "1")
	require.NoError(t, err)
	require.Equal(t, "PPPPPP-QQQQQQ-RRRRRR", key)
}

func TestIssueKeyFieldWinsOverInfo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"key":"DIRECT-KEYKEY-WINSSS","info":"OTHERS-OTHERS-OTHERS"}`))
	})

	key, err := c.Issue(context.Background(), "1")
	require.NoError(t, err)
	require.Equal(t, "DIRECT-KEYKEY-WINSSS", key)
}

func TestIssueFailsOnSuccessFalse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"invalid seller key"}`))
	})

	_, err := c.Issue(context.Background(), "1")
	var iErr *IssuanceError
	require.ErrorAs(t, err, &iErr)
	require.Contains(t, iErr.RawResponse, "invalid seller key")
}

func TestIssueFailsOnUnrecognizedShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"message":"done"}`))
	})

	_, err := c.Issue(context.Background(), "1")
	var iErr *IssuanceError
	require.ErrorAs(t, err, &iErr)
}

func TestIssueFailsOnNon2xx(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "server blew up", http.StatusBadGateway)
	})

	_, err := c.Issue(context.Background(), "1")
	var iErr *IssuanceError
	require.ErrorAs(t, err, &iErr)
	require.Equal(t, http.StatusBadGateway, iErr.Status)
}
