package payex

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/payex-bridge/internal/order"
	"github.com/noah-isme/payex-bridge/internal/schedule"
)

// Source identifies the integration origin on every outbound payload. The
// processor gates some behaviour on known sources, so the legacy literal is
// kept on the wire.
const Source = "wordpress"

// debitTypeAuthorizedDebit is emitted on mandates that carry an initial
// one-time payment.
const debitTypeAuthorizedDebit = "AD"

// mandateDateLayout is the wire format for mandate schedule dates.
const mandateDateLayout = "2006-01-02"

// RedirectURLs are the host-provided return targets for a hosted checkout.
type RedirectURLs struct {
	Accept   string
	Reject   string
	Callback string
}

// MinorUnits converts a decimal currency amount into integer minor units,
// rounding half away from zero. Negative amounts are refused.
func MinorUnits(amount decimal.Decimal) (int64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("payex: amount must not be negative, got %s", amount)
	}
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart(), nil
}

// BuildPaymentIntent flattens an order into the one-off payment payload.
// Pure transformation, no network I/O.
func BuildPaymentIntent(o order.Order, urls RedirectURLs) (PaymentIntentRequest, error) {
	amount, err := MinorUnits(o.Total)
	if err != nil {
		return PaymentIntentRequest{}, err
	}
	items, err := buildItems(o.Lines)
	if err != nil {
		return PaymentIntentRequest{}, err
	}
	return PaymentIntentRequest{
		Amount:           amount,
		Currency:         o.Currency,
		CustomerID:       o.CustomerID,
		Description:      "Payment for Order Reference:" + o.OrderKey,
		ReferenceNumber:  o.ID,
		CustomerName:     o.Billing.FullName(),
		ContactNumber:    o.Billing.Phone,
		Email:            o.Billing.Email,
		Address:          o.Billing.Flatten(),
		Postcode:         o.Billing.Postcode,
		City:             o.Billing.City,
		State:            o.Billing.State,
		Country:          o.Billing.Country,
		ShippingName:     o.Shipping.FullName(),
		ShippingAddress:  o.Shipping.Flatten(),
		ShippingPostcode: o.Shipping.Postcode,
		ShippingCity:     o.Shipping.City,
		ShippingState:    o.Shipping.State,
		ShippingCountry:  o.Shipping.Country,
		ReturnURL:        urls.Accept,
		AcceptURL:        urls.Accept,
		RejectURL:        urls.Reject,
		CallbackURL:      urls.Callback,
		Items:            items,
		Source:           Source,
	}, nil
}

// BuildMandate flattens an order with recurring lines into the mandate
// payload, folding in the precomputed schedule. maxAmountFloor clamps
// max_amount upward when an initial payment exists; it is environment
// tuning, not a protocol rule, and callers may pass 0 to disable it.
func BuildMandate(o order.Order, sched schedule.Schedule, urls RedirectURLs, maxAmountFloor int64) (MandateRequest, error) {
	subs := o.SubscriptionLines()
	if len(subs) == 0 {
		return MandateRequest{}, fmt.Errorf("payex: order %s has no subscription lines", o.ID)
	}
	initialAmount, err := MinorUnits(o.Total)
	if err != nil {
		return MandateRequest{}, err
	}
	recurring := decimal.Zero
	for _, line := range subs {
		recurring = recurring.Add(line.Subscription.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	maxAmount, err := MinorUnits(recurring)
	if err != nil {
		return MandateRequest{}, err
	}
	if initialAmount > 0 && maxAmount < maxAmountFloor {
		maxAmount = maxAmountFloor
	}
	items, err := buildItems(o.Lines)
	if err != nil {
		return MandateRequest{}, err
	}

	req := MandateRequest{
		InitialAmount:     initialAmount,
		MaxAmount:         maxAmount,
		Frequency:         sched.Frequency,
		FrequencyInterval: sched.Interval,
		EffectiveDate:     sched.EffectiveDate.Format(mandateDateLayout),
		MaxFrequency:      sched.MaxFrequency,
		Currency:          o.Currency,
		CustomerID:        o.CustomerID,
		Description:       "Payment for Order Reference:" + o.OrderKey,
		ReferenceNumber:   o.ID,
		CustomerName:      o.Billing.FullName(),
		ContactNumber:     o.Billing.Phone,
		Email:             o.Billing.Email,
		Address:           o.Billing.Flatten(),
		Postcode:          o.Billing.Postcode,
		City:              o.Billing.City,
		State:             o.Billing.State,
		Country:           o.Billing.Country,
		ShippingName:      o.Shipping.FullName(),
		ShippingAddress:   o.Shipping.Flatten(),
		ShippingPostcode:  o.Shipping.Postcode,
		ShippingCity:      o.Shipping.City,
		ShippingState:     o.Shipping.State,
		ShippingCountry:   o.Shipping.Country,
		ReturnURL:         urls.Accept,
		AcceptURL:         urls.Accept,
		RejectURL:         urls.Reject,
		CallbackURL:       urls.Callback,
		Items:             items,
		Source:            Source,
	}
	if initialAmount > 0 {
		req.DebitType = debitTypeAuthorizedDebit
	}
	if sched.HasExpiry {
		req.ExpiryDate = sched.ExpiryDate.Format(mandateDateLayout)
	}
	return req, nil
}

// BuildCollection assembles the payload for one recurring charge against an
// existing mandate.
func BuildCollection(o order.Order, mandateRef string, amount decimal.Decimal) (CollectionRequest, error) {
	minor, err := MinorUnits(amount)
	if err != nil {
		return CollectionRequest{}, err
	}
	return CollectionRequest{
		MandateReferenceNumber: mandateRef,
		ReferenceNumber:        o.ID,
		Amount:                 minor,
		Currency:               o.Currency,
		Description:            "Payment for Order Reference:" + o.OrderKey,
		Source:                 Source,
	}, nil
}

func buildItems(lines []order.Line) ([]Item, error) {
	items := make([]Item, 0, len(lines))
	for _, line := range lines {
		unit, err := MinorUnits(line.UnitPrice)
		if err != nil {
			return nil, err
		}
		total, err := MinorUnits(line.LineTotal)
		if err != nil {
			return nil, err
		}
		items = append(items, Item{
			ProductID: line.ProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: unit,
			LineTotal: total,
		})
	}
	return items, nil
}
