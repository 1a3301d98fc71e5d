package order

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when an order id is unknown to the host platform.
var ErrNotFound = errors.New("order: not found")

// Store is the capability interface the host platform satisfies so the
// gateway can read orders and apply payment outcomes. The gateway never owns
// order storage and never transitions a paid order back to unpaid.
type Store interface {
	Get(ctx context.Context, id string) (Order, error)
	// MarkPaid records a successful payment with its transaction id. The
	// host must treat this as the sole unpaid→paid transition.
	MarkPaid(ctx context.Context, id, txnID string) error
	// MarkFailed records a failed renewal with the remote rejection message.
	MarkFailed(ctx context.Context, id, reason string) error
	ReduceStock(ctx context.Context, id string) error
	ActivateSubscriptions(ctx context.Context, id string) error
	SaveMetadata(ctx context.Context, id, key, value string) error
}

// Renewal is a due recurring charge the collector should execute.
type Renewal struct {
	OrderID string
	Amount  decimal.Decimal
	DueAt   time.Time
}

// RenewalSource lists renewal orders whose billing cycle has come due.
type RenewalSource interface {
	DueRenewals(ctx context.Context, now time.Time) ([]Renewal, error)
}

// MandateResolver maps a mandate reference back to the renewal order it was
// stored on. Collection webhooks may omit the order reference, carrying only
// the mandate reference; stores without a mandate index can skip this and
// those deliveries are ignored.
type MandateResolver interface {
	OrderIDByMandate(ctx context.Context, mandateRef string) (string, error)
}
