package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/payex-bridge/internal/obs"
	"github.com/noah-isme/payex-bridge/internal/order"
	"github.com/noah-isme/payex-bridge/internal/payex"
	"github.com/noah-isme/payex-bridge/internal/schedule"
)

// Processor auth codes delivered on webhooks.
const (
	AuthCodeSuccess  = "00"
	AuthCodePending  = "09"
	AuthCodePending2 = "99"
)

// Webhook field names beyond the verification pair.
const (
	fieldReferenceNumber           = "reference_number"
	fieldAuthCode                  = "auth_code"
	fieldCollectionReferenceNumber = "collection_reference_number"
	fieldCollectionStatus          = "collection_status"
	fieldMandateReferenceNumber    = "mandate_reference_number"
)

// WebhookOutcome classifies how an inbound notification was handled.
type WebhookOutcome string

// Webhook outcomes.
const (
	OutcomeFinalized        WebhookOutcome = "finalized"
	OutcomePending          WebhookOutcome = "pending"
	OutcomeCollectionPaid   WebhookOutcome = "collection_paid"
	OutcomeCollectionStored WebhookOutcome = "collection_stored"
	OutcomeIgnored          WebhookOutcome = "ignored"
	OutcomeRejected         WebhookOutcome = "rejected"
)

// ErrSignatureMismatch is returned when a webhook fails verification. The
// HTTP layer turns it into a silent 200 with no order mutation.
var ErrSignatureMismatch = errors.New("gateway: webhook signature mismatch")

// Service orchestrates the payment flows: hosted-checkout link creation,
// webhook finalization and recurring collections.
type Service struct {
	Store     order.Store
	Client    *payex.Client
	Verifier  Verifier
	Finalizer Finalizer
	URLs      payex.RedirectURLs
	// MandateMaxAmountFloor clamps mandate max_amount upward when an initial
	// payment exists. Environment tuning carried over from the legacy
	// integration; 0 disables it.
	MandateMaxAmountFloor int64
	Now                   func() time.Time
	Logger                zerolog.Logger
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ProcessPayment exchanges the order for a hosted-checkout redirect URL. A
// fresh bearer token is obtained per call; orders with subscription lines go
// through the mandate endpoint, everything else through payment intents.
func (s *Service) ProcessPayment(ctx context.Context, orderID string) (string, error) {
	ctx, span := otel.Tracer("gateway.Service").Start(ctx, "GatewayService.ProcessPayment")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	flow := "payment_intent"
	result := "error"
	defer func() {
		span.SetAttributes(attribute.String("payment.flow", flow), attribute.String("payment.result", result))
		if obs.PaymentLinkTotal != nil {
			obs.PaymentLinkTotal.WithLabelValues(flow, result).Inc()
		}
	}()

	o, err := s.Store.Get(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("load order %s: %w", orderID, err)
	}
	if err := o.Validate(); err != nil {
		return "", err
	}

	tok, err := s.token(ctx)
	if err != nil {
		return "", err
	}

	var url string
	if o.HasSubscription() {
		flow = "mandate"
		url, err = s.submitMandate(ctx, tok, o)
	} else {
		req, buildErr := payex.BuildPaymentIntent(o, s.URLs)
		if buildErr != nil {
			return "", buildErr
		}
		url, err = s.Client.SubmitPaymentIntent(ctx, tok, req)
	}
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	result = "success"
	s.Logger.Info().Str("order_id", orderID).Str("flow", flow).Msg("payment link created")
	return url, nil
}

func (s *Service) submitMandate(ctx context.Context, tok payex.Token, o order.Order) (string, error) {
	subs := o.SubscriptionLines()
	terms := subs[0].Subscription
	sched, err := schedule.Compute(s.now(), terms.Period, terms.Interval, terms.Length, terms.TrialPeriod, terms.TrialLength)
	if err != nil {
		return "", err
	}
	req, err := payex.BuildMandate(o, sched, s.URLs, s.MandateMaxAmountFloor)
	if err != nil {
		return "", err
	}
	return s.Client.SubmitMandate(ctx, tok, req)
}

// HandleWebhook verifies and applies an inbound notification. Signature
// failures return ErrSignatureMismatch with no side effects; callers must
// not reveal the rejection to the sender.
func (s *Service) HandleWebhook(ctx context.Context, payload map[string]string) (WebhookOutcome, error) {
	ctx, span := otel.Tracer("gateway.Service").Start(ctx, "GatewayService.HandleWebhook")
	defer span.End()

	outcome := OutcomeRejected
	defer func() {
		span.SetAttributes(attribute.String("webhook.outcome", string(outcome)))
		if obs.PaymentWebhookTotal != nil {
			obs.PaymentWebhookTotal.WithLabelValues(string(outcome)).Inc()
		}
	}()

	if !s.Verifier.Verify(payload) {
		s.Logger.Debug().Msg("webhook signature verification failed")
		return OutcomeRejected, ErrSignatureMismatch
	}

	if ref, ok := payload[fieldReferenceNumber]; ok {
		if authCode, ok := payload[fieldAuthCode]; ok {
			out, err := s.applyPaymentOutcome(ctx, ref, payload[fieldTxnID], authCode)
			outcome = out
			return out, err
		}
	}
	if collectionRef, ok := payload[fieldCollectionReferenceNumber]; ok {
		out, err := s.applyCollectionOutcome(ctx, payload, collectionRef)
		outcome = out
		return out, err
	}

	outcome = OutcomeIgnored
	s.Logger.Warn().Msg("verified webhook carried no recognised outcome fields")
	return OutcomeIgnored, nil
}

func (s *Service) applyPaymentOutcome(ctx context.Context, orderID, txnID, authCode string) (WebhookOutcome, error) {
	switch authCode {
	case AuthCodeSuccess:
		if err := s.Finalizer.FinalizePayment(ctx, orderID, txnID); err != nil {
			return OutcomeRejected, err
		}
		return OutcomeFinalized, nil
	case AuthCodePending, AuthCodePending2:
		if err := s.Finalizer.RecordPending(ctx, orderID, authCode); err != nil {
			return OutcomeRejected, err
		}
		return OutcomePending, nil
	default:
		s.Logger.Info().Str("order_id", orderID).Str("auth_code", authCode).
			Msg("webhook auth code not finalized")
		return OutcomeIgnored, nil
	}
}

func (s *Service) applyCollectionOutcome(ctx context.Context, payload map[string]string, collectionRef string) (WebhookOutcome, error) {
	orderID := payload[fieldReferenceNumber]
	if orderID == "" {
		orderID = s.resolveMandateOrder(ctx, payload[fieldMandateReferenceNumber])
	}
	if orderID == "" {
		s.Logger.Warn().Str("collection_ref", collectionRef).
			Msg("collection webhook carried no resolvable order reference")
		return OutcomeIgnored, nil
	}
	status := payload[fieldCollectionStatus]
	if status == AuthCodeSuccess {
		mandateRef := payload[fieldMandateReferenceNumber]
		if err := s.Finalizer.FinalizeCollection(ctx, orderID, collectionRef, mandateRef); err != nil {
			return OutcomeRejected, err
		}
		return OutcomeCollectionPaid, nil
	}
	if err := s.Finalizer.RecordCollectionStatus(ctx, orderID, status); err != nil {
		return OutcomeRejected, err
	}
	return OutcomeCollectionStored, nil
}

// resolveMandateOrder maps a mandate reference back to its renewal order for
// deliveries that omit the order reference.
func (s *Service) resolveMandateOrder(ctx context.Context, mandateRef string) string {
	if mandateRef == "" {
		return ""
	}
	resolver, ok := s.Store.(order.MandateResolver)
	if !ok {
		return ""
	}
	id, err := resolver.OrderIDByMandate(ctx, mandateRef)
	if err != nil {
		if !errors.Is(err, order.ErrNotFound) {
			s.Logger.Error().Err(err).Str("mandate_ref", mandateRef).Msg("resolve mandate order")
		}
		return ""
	}
	return id
}

// CollectRecurring executes one recurring charge against the mandate stored
// on the renewal order. Remote rejections and transport failures mark the
// renewal failed with the remote message; success persists the returned
// collection number. Final settlement still arrives via webhook.
func (s *Service) CollectRecurring(ctx context.Context, orderID string, amount decimal.Decimal) (payex.CollectionResult, error) {
	ctx, span := otel.Tracer("gateway.Service").Start(ctx, "GatewayService.CollectRecurring")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	result := "error"
	defer func() {
		span.SetAttributes(attribute.String("collection.result", result))
		if obs.CollectionTotal != nil {
			obs.CollectionTotal.WithLabelValues(result).Inc()
		}
	}()

	o, err := s.Store.Get(ctx, orderID)
	if err != nil {
		return payex.CollectionResult{}, fmt.Errorf("load renewal order %s: %w", orderID, err)
	}
	mandateRef := o.Metadata[metaMandateReference]
	if mandateRef == "" {
		err := fmt.Errorf("renewal order %s has no mandate reference", orderID)
		_ = s.Finalizer.FailCollection(ctx, orderID, err.Error())
		return payex.CollectionResult{}, err
	}

	tok, err := s.token(ctx)
	if err != nil {
		_ = s.Finalizer.FailCollection(ctx, orderID, err.Error())
		return payex.CollectionResult{}, err
	}
	req, err := payex.BuildCollection(o, mandateRef, amount)
	if err != nil {
		_ = s.Finalizer.FailCollection(ctx, orderID, err.Error())
		return payex.CollectionResult{}, err
	}
	res, err := s.Client.SubmitCollection(ctx, tok, req)
	if err != nil {
		span.RecordError(err)
		var rejection *payex.RejectionError
		reason := "payment gateway unavailable"
		if errors.As(err, &rejection) {
			reason = rejection.Message
		}
		if failErr := s.Finalizer.FailCollection(ctx, orderID, reason); failErr != nil {
			s.Logger.Error().Err(failErr).Str("order_id", orderID).Msg("mark renewal failed")
		}
		return payex.CollectionResult{}, err
	}

	if err := s.Store.SaveMetadata(ctx, orderID, metaCollectionNumber, res.CollectionNumber); err != nil {
		return payex.CollectionResult{}, err
	}
	if err := s.Store.SaveMetadata(ctx, orderID, metaCollectionStatus, res.Status); err != nil {
		return payex.CollectionResult{}, err
	}
	result = "success"
	s.Logger.Info().Str("order_id", orderID).Str("collection_number", res.CollectionNumber).
		Str("status", res.Status).Msg("collection submitted")
	return res, nil
}

func (s *Service) token(ctx context.Context) (payex.Token, error) {
	tok, err := s.Client.Token(ctx)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	if obs.TokenRequestTotal != nil {
		obs.TokenRequestTotal.WithLabelValues(outcome).Inc()
	}
	return tok, err
}
