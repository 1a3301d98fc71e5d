package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/payex-bridge/internal/order"
	"github.com/noah-isme/payex-bridge/internal/payex"
)

func newTestHandlers(t *testing.T, svc *Service) (*Handlers, *chi.Mux) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := &Handlers{
		Service:   svc,
		Redis:     client,
		ReplayTTL: time.Minute,
		Logger:    zerolog.Nop(),
	}
	r := chi.NewRouter()
	h.Routes(r)
	return h, r
}

func postForm(r http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreatePaymentLinkHandler(t *testing.T) {
	mem := order.NewMemoryStore()
	mem.Seed(seededOrder("1042"))
	svc := newTestService(t, &payexStub{token: "tok-1", intentURL: "https://checkout.payex.io/i/abc"}, mem)
	_, r := newTestHandlers(t, svc)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders/1042/payment-link", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "https://checkout.payex.io/i/abc")
}

func TestCreatePaymentLinkHandlerUnknownOrder(t *testing.T) {
	svc := newTestService(t, &payexStub{token: "tok-1"}, order.NewMemoryStore())
	_, r := newTestHandlers(t, svc)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders/missing/payment-link", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePaymentLinkHandlerHidesRemoteFailure(t *testing.T) {
	mem := order.NewMemoryStore()
	mem.Seed(seededOrder("1042"))
	svc := newTestService(t, &payexStub{token: "tok-1", rejectWith: "merchant disabled"}, mem)
	_, r := newTestHandlers(t, svc)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders/1042/payment-link", nil))

	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), genericFailureMessage)
	require.NotContains(t, rec.Body.String(), "merchant disabled")
}

func TestCreatePaymentLinkHandlerTokenFailure(t *testing.T) {
	mem := order.NewMemoryStore()
	mem.Seed(seededOrder("1042"))
	svc := newTestService(t, &payexStub{token: ""}, mem)
	_, r := newTestHandlers(t, svc)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders/1042/payment-link", nil))

	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), genericFailureMessage)
}

func TestWebhookHandlerFinalizesOrder(t *testing.T) {
	mem := order.NewMemoryStore()
	mem.Seed(seededOrder("1042"))
	svc := newTestService(t, &payexStub{token: "tok-1"}, mem)
	_, r := newTestHandlers(t, svc)

	payload := signedPayload("sk_test_123", map[string]string{
		"txn_id":           "TXN-001",
		"reference_number": "1042",
		"auth_code":        "00",
	})
	form := url.Values{}
	for k, v := range payload {
		form.Set(k, v)
	}

	rec := postForm(r, "/webhooks/payex", form)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), string(OutcomeFinalized))

	o, err := mem.Get(context.Background(), "1042")
	require.NoError(t, err)
	require.True(t, o.Paid)
}

func TestWebhookHandlerRefusesReplay(t *testing.T) {
	mem := order.NewMemoryStore()
	mem.Seed(seededOrder("1042"))
	svc := newTestService(t, &payexStub{token: "tok-1"}, mem)
	_, r := newTestHandlers(t, svc)

	payload := signedPayload("sk_test_123", map[string]string{
		"txn_id":           "TXN-001",
		"reference_number": "1042",
		"auth_code":        "00",
	})
	form := url.Values{}
	for k, v := range payload {
		form.Set(k, v)
	}

	first := postForm(r, "/webhooks/payex", form)
	require.Equal(t, http.StatusOK, first.Code)

	second := postForm(r, "/webhooks/payex", form)
	require.Equal(t, http.StatusConflict, second.Code)
}

func TestWebhookHandlerSilentOnBadSignature(t *testing.T) {
	mem := order.NewMemoryStore()
	mem.Seed(seededOrder("1042"))
	svc := newTestService(t, &payexStub{token: "tok-1"}, mem)
	_, r := newTestHandlers(t, svc)

	form := url.Values{}
	form.Set("txn_id", "TXN-001")
	form.Set("reference_number", "1042")
	form.Set("auth_code", "00")
	form.Set("signature", "deadbeef")

	rec := postForm(r, "/webhooks/payex", form)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Body.String())

	o, err := mem.Get(context.Background(), "1042")
	require.NoError(t, err)
	require.False(t, o.Paid)
}

func TestWebhookHandlerBadSignatureReplayStaysSilent(t *testing.T) {
	mem := order.NewMemoryStore()
	mem.Seed(seededOrder("1042"))
	svc := newTestService(t, &payexStub{token: "tok-1"}, mem)
	_, r := newTestHandlers(t, svc)

	form := url.Values{}
	form.Set("txn_id", "TXN-001")
	form.Set("reference_number", "1042")
	form.Set("auth_code", "00")
	form.Set("signature", "deadbeef")

	// An unverifiable body must look identical on every delivery; a 409 on
	// the second attempt would tell a prober the first one was seen.
	first := postForm(r, "/webhooks/payex", form)
	require.Equal(t, http.StatusOK, first.Code)
	require.Empty(t, first.Body.String())

	second := postForm(r, "/webhooks/payex", form)
	require.Equal(t, http.StatusOK, second.Code)
	require.Empty(t, second.Body.String())
}

func TestCollectHandler(t *testing.T) {
	mem := order.NewMemoryStore()
	o := seededOrder("3001")
	o.Metadata = map[string]string{"payex_mandate_reference": "MAN-12"}
	mem.Seed(o)
	stub := &payexStub{token: "tok-1", collection: payex.CollectionResult{CollectionNumber: "COL-78", Status: "PP"}}
	svc := newTestService(t, stub, mem)
	_, r := newTestHandlers(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/orders/3001/collect", strings.NewReader(`{"amount":"75.25"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "COL-78")
}
