package order

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/payex-bridge/internal/schedule"
)

// ErrInvalidOrder wraps validation failures detected before a payload is built.
var ErrInvalidOrder = errors.New("order: invalid order")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Address holds the billing or shipping contact block of an order.
type Address struct {
	FirstName string
	LastName  string
	Company   string
	Line1     string
	Line2     string
	Postcode  string
	City      string
	State     string
	Country   string
	Phone     string
	Email     string
}

// FullName joins the first and last name with a single space.
func (a Address) FullName() string {
	return a.FirstName + " " + a.LastName
}

// Flatten collapses the address block into the single string the processor
// expects: company and first line joined by a space, second line after a comma.
func (a Address) Flatten() string {
	return a.Company + " " + a.Line1 + "," + a.Line2
}

// SubscriptionSpec describes the recurring terms attached to an order line.
type SubscriptionSpec struct {
	Price       decimal.Decimal
	SignUpFee   decimal.Decimal
	Period      schedule.Period
	Interval    int
	Length      int
	TrialPeriod schedule.Period
	TrialLength int
}

// Line is a single purchasable row on an order.
type Line struct {
	ProductID    string
	Name         string
	Quantity     int
	UnitPrice    decimal.Decimal
	LineTotal    decimal.Decimal
	Metadata     map[string]string
	Subscription *SubscriptionSpec
}

// Order is the read model the host platform exposes to the gateway. The
// platform owns order storage; this type never round-trips back into it.
type Order struct {
	ID         string `validate:"required"`
	OrderKey   string `validate:"required"`
	Currency   string `validate:"required,len=3"`
	Total      decimal.Decimal
	CustomerID string
	Billing    Address `validate:"required"`
	Shipping   Address
	Lines      []Line `validate:"required,min=1"`
	Paid       bool
	FailReason string
	TxnID      string
	Metadata   map[string]string
}

// Validate checks that the fields required to build an outbound payload are
// present, failing fast instead of sending a half-formed request upstream.
func (o Order) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidOrder, compactValidationError(err))
	}
	if o.Total.IsNegative() {
		return fmt.Errorf("%w: total must not be negative", ErrInvalidOrder)
	}
	if strings.TrimSpace(o.Billing.Email) == "" {
		return fmt.Errorf("%w: billing email is required", ErrInvalidOrder)
	}
	return nil
}

// SubscriptionLines returns the order lines carrying recurring terms.
func (o Order) SubscriptionLines() []Line {
	var subs []Line
	for _, l := range o.Lines {
		if l.Subscription != nil {
			subs = append(subs, l)
		}
	}
	return subs
}

// HasSubscription reports whether any line requires a recurring mandate.
func (o Order) HasSubscription() bool {
	for _, l := range o.Lines {
		if l.Subscription != nil {
			return true
		}
	}
	return false
}

func compactValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return strings.Join(fields, ", ")
}
