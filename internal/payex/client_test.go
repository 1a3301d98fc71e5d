package payex_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/payex-bridge/internal/payex"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *payex.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := payex.NewClient(payex.Credentials{Email: "merchant@example.com", SecretKey: "s3cret", Sandbox: true}, zerolog.Nop())
	c.BaseURL = srv.URL
	return c
}

func TestTokenSendsBasicAuth(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/Auth/Token", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
	})

	tok, err := c.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-1", tok.Value)
	require.True(t, tok.Sandbox)

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("merchant@example.com:s3cret"))
	require.Equal(t, want, gotAuth)
}

func TestTokenNon200IsAuthError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err := c.Token(context.Background())
	var authErr *payex.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, http.StatusUnauthorized, authErr.Status)
}

func TestTokenEmptyBodyIsAuthError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	})
	_, err := c.Token(context.Background())
	var authErr *payex.AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestSubmitPaymentIntentReturnsRedirectURL(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/PaymentIntents", r.URL.Path)
		require.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body []map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body, 1, "payload must be a single-element array")
		require.Equal(t, "1042", body[0]["reference_number"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "00",
			"result": []map[string]any{{"url": "https://pay.example/redirect"}},
		})
	})

	req, err := payex.BuildPaymentIntent(sampleOrder(), sampleURLs())
	require.NoError(t, err)
	url, err := c.SubmitPaymentIntent(context.Background(), payex.Token{Value: "tok-1"}, req)
	require.NoError(t, err)
	require.Equal(t, "https://pay.example/redirect", url)
}

func TestSubmitRejectedStatusIsRejectionError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "99",
			"message": "invalid merchant",
			"result":  []map[string]any{},
		})
	})

	_, err := c.SubmitPaymentIntent(context.Background(), payex.Token{Value: "tok-1"}, payex.PaymentIntentRequest{})
	var rej *payex.RejectionError
	require.ErrorAs(t, err, &rej)
	require.Equal(t, "invalid merchant", rej.Message)
}

func TestSubmitEmptyResultIsRejectionError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "00", "result": []map[string]any{}})
	})
	_, err := c.SubmitMandate(context.Background(), payex.Token{Value: "tok-1"}, payex.MandateRequest{})
	var rej *payex.RejectionError
	require.ErrorAs(t, err, &rej)
}

func TestSubmitNon200IsTransientError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.SubmitPaymentIntent(context.Background(), payex.Token{Value: "tok-1"}, payex.PaymentIntentRequest{})
	var transient *payex.TransientError
	require.ErrorAs(t, err, &transient)
	require.Equal(t, http.StatusBadGateway, transient.Status)
}

func TestSubmitCollectionExtractsNumberAndStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/Mandates/Collections", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "00",
			"result": []map[string]any{{"collection_number": "COL-7", "status": "00"}},
		})
	})
	res, err := c.SubmitCollection(context.Background(), payex.Token{Value: "tok-1"}, payex.CollectionRequest{})
	require.NoError(t, err)
	require.Equal(t, "COL-7", res.CollectionNumber)
	require.Equal(t, "00", res.Status)
}
