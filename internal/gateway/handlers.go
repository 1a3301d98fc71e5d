package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/payex-bridge/internal/common"
	"github.com/noah-isme/payex-bridge/internal/order"
	"github.com/noah-isme/payex-bridge/internal/payex"
)

// maxWebhookBody caps notification bodies; processor callbacks are small
// form posts.
const maxWebhookBody = 1 << 20

// genericFailureMessage is the only failure text exposed to shoppers. The
// real cause is logged server-side.
const genericFailureMessage = "Payment gateway is temporarily down, please try again later."

// Handlers exposes the gateway over HTTP.
type Handlers struct {
	Service *Service
	Redis   *redis.Client
	// ReplayTTL bounds the webhook dedup window. Duplicate bodies inside
	// the window are answered 409 without reaching the service.
	ReplayTTL time.Duration
	Logger    zerolog.Logger
}

// Routes mounts the gateway endpoints on a chi router.
func (h *Handlers) Routes(r chi.Router) {
	r.Post("/orders/{orderID}/payment-link", h.CreatePaymentLink)
	r.Post("/webhooks/payex", h.Webhook)
	r.Post("/orders/{orderID}/collect", h.Collect)
}

// CreatePaymentLink builds a hosted-checkout redirect URL for the order.
func (h *Handlers) CreatePaymentLink(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	redirectURL, err := h.Service.ProcessPayment(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "order_not_found", "order not found", nil)
			return
		}
		if errors.Is(err, order.ErrInvalidOrder) {
			common.JSONError(w, http.StatusUnprocessableEntity, "invalid_order", "order cannot be submitted for payment", nil)
			return
		}
		h.logRemoteFailure(orderID, err)
		common.JSONError(w, http.StatusBadGateway, "gateway_unavailable", genericFailureMessage, nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]string{"redirect_url": redirectURL})
}

// logRemoteFailure records the full remote failure detail for operators
// while the shopper only ever sees the generic message.
func (h *Handlers) logRemoteFailure(orderID string, err error) {
	evt := h.Logger.Error().Err(err).Str("order_id", orderID)
	var authErr *payex.AuthError
	var rejection *payex.RejectionError
	var transient *payex.TransientError
	switch {
	case errors.As(err, &authErr):
		evt = evt.Str("failure", "auth").Int("remote_status", authErr.Status)
	case errors.As(err, &rejection):
		evt = evt.Str("failure", "rejection").Str("remote_message", rejection.Message)
	case errors.As(err, &transient):
		evt = evt.Str("failure", "transient").Int("http_status", transient.Status)
	}
	evt.Msg("payment link creation failed")
}

// Webhook receives processor notifications. Replayed bodies are refused with
// 409; invalid signatures are answered 200 with an empty body so probing
// senders learn nothing.
func (h *Handlers) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "bad_request", "unreadable body", nil)
		return
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "bad_request", "malformed form body", nil)
		return
	}
	payload := make(map[string]string, len(values))
	for k := range values {
		payload[k] = values.Get(k)
	}

	// The replay guard only runs for verified payloads. An unverifiable
	// body must get the same silent 200 whether fresh or replayed, so its
	// replay state is never recorded.
	if h.Service.Verifier.Verify(payload) && h.Redis != nil {
		key := "wh:payex:" + common.Sha256Hex(string(body))
		ok, err := h.Redis.SetNX(r.Context(), key, "1", h.replayTTL()).Result()
		if err != nil {
			h.Logger.Error().Err(err).Msg("webhook replay guard unavailable")
		} else if !ok {
			common.JSONError(w, http.StatusConflict, "duplicate_delivery", "notification already processed", nil)
			return
		}
	}

	outcome, err := h.Service.HandleWebhook(r.Context(), payload)
	if err != nil {
		if errors.Is(err, ErrSignatureMismatch) {
			w.WriteHeader(http.StatusOK)
			return
		}
		h.Logger.Error().Err(err).Str("outcome", string(outcome)).Msg("webhook processing failed")
		common.JSONError(w, http.StatusInternalServerError, "internal", "notification processing failed", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]string{"outcome": string(outcome)})
}

type collectRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Collect triggers a recurring collection for a renewal order. Used by the
// collector binary and by operators replaying a missed renewal.
func (h *Handlers) Collect(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	var req collectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "bad_request", "invalid collection request", nil)
		return
	}
	res, err := h.Service.CollectRecurring(r.Context(), orderID, req.Amount)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "order_not_found", "order not found", nil)
			return
		}
		h.logRemoteFailure(orderID, err)
		common.JSONError(w, http.StatusBadGateway, "gateway_unavailable", genericFailureMessage, nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]string{
		"collection_number": res.CollectionNumber,
		"status":            res.Status,
	})
}

func (h *Handlers) replayTTL() time.Duration {
	if h.ReplayTTL <= 0 {
		return 24 * time.Hour
	}
	return h.ReplayTTL
}
