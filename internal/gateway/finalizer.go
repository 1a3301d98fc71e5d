package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/payex-bridge/internal/lock"
	"github.com/noah-isme/payex-bridge/internal/order"
)

// Order metadata keys persisted by the finalizer.
const (
	metaTxnID             = "payex_txn_id"
	metaPendingAuthCode   = "payex_pending_auth_code"
	metaMandateReference  = "payex_mandate_reference"
	metaCollectionNumber  = "payex_collection_number"
	metaCollectionStatus  = "payex_collection_status"
	metaCollectionFailure = "payex_collection_failure"
)

// Finalizer applies a verified payment outcome to an order. The unpaid→paid
// transition happens at most once; a duplicate delivery observes the paid
// state and performs no side effects. The per-order lock closes the window
// where two concurrent deliveries could both pass the unpaid check.
type Finalizer struct {
	Store   order.Store
	Locker  lock.Locker
	LockTTL time.Duration
	Logger  zerolog.Logger
}

func (f Finalizer) lockKey(orderID string) string {
	return "payex:finalize:" + orderID
}

// FinalizePayment marks the order paid with the transaction id, reduces
// stock, activates subscriptions and records the transaction metadata.
func (f Finalizer) FinalizePayment(ctx context.Context, orderID, txnID string) error {
	return f.Locker.WithLock(ctx, f.lockKey(orderID), f.LockTTL, func(ctx context.Context) error {
		o, err := f.Store.Get(ctx, orderID)
		if err != nil {
			return fmt.Errorf("load order %s: %w", orderID, err)
		}
		if o.Paid {
			f.Logger.Debug().Str("order_id", orderID).Str("txn_id", txnID).
				Msg("duplicate finalization ignored, order already paid")
			return nil
		}
		if err := f.Store.MarkPaid(ctx, orderID, txnID); err != nil {
			return fmt.Errorf("mark order %s paid: %w", orderID, err)
		}
		if err := f.Store.ReduceStock(ctx, orderID); err != nil {
			return fmt.Errorf("reduce stock for order %s: %w", orderID, err)
		}
		if o.HasSubscription() {
			if err := f.Store.ActivateSubscriptions(ctx, orderID); err != nil {
				return fmt.Errorf("activate subscriptions for order %s: %w", orderID, err)
			}
		}
		if err := f.Store.SaveMetadata(ctx, orderID, metaTxnID, txnID); err != nil {
			return fmt.Errorf("save txn metadata for order %s: %w", orderID, err)
		}
		f.Logger.Info().Str("order_id", orderID).Str("txn_id", txnID).Msg("order finalized")
		return nil
	})
}

// RecordPending stores a pending auth code without changing order state.
func (f Finalizer) RecordPending(ctx context.Context, orderID, authCode string) error {
	return f.Store.SaveMetadata(ctx, orderID, metaPendingAuthCode, authCode)
}

// FinalizeCollection applies a successful recurring collection to the
// renewal order: the paid transition plus the collection reference. The same
// at-most-once guard as FinalizePayment applies.
func (f Finalizer) FinalizeCollection(ctx context.Context, orderID, collectionRef, mandateRef string) error {
	return f.Locker.WithLock(ctx, f.lockKey(orderID), f.LockTTL, func(ctx context.Context) error {
		o, err := f.Store.Get(ctx, orderID)
		if err != nil {
			return fmt.Errorf("load renewal order %s: %w", orderID, err)
		}
		if o.Paid {
			f.Logger.Debug().Str("order_id", orderID).Msg("duplicate collection finalization ignored")
			return nil
		}
		if err := f.Store.MarkPaid(ctx, orderID, collectionRef); err != nil {
			return fmt.Errorf("mark renewal %s paid: %w", orderID, err)
		}
		if err := f.Store.SaveMetadata(ctx, orderID, metaCollectionNumber, collectionRef); err != nil {
			return err
		}
		if mandateRef != "" {
			if err := f.Store.SaveMetadata(ctx, orderID, metaMandateReference, mandateRef); err != nil {
				return err
			}
		}
		f.Logger.Info().Str("order_id", orderID).Str("collection_ref", collectionRef).Msg("renewal finalized")
		return nil
	})
}

// RecordCollectionStatus stores a non-success collection status for later
// inspection without touching order state.
func (f Finalizer) RecordCollectionStatus(ctx context.Context, orderID, status string) error {
	return f.Store.SaveMetadata(ctx, orderID, metaCollectionStatus, status)
}

// FailCollection marks a renewal order failed with the remote message.
func (f Finalizer) FailCollection(ctx context.Context, orderID, reason string) error {
	if err := f.Store.MarkFailed(ctx, orderID, reason); err != nil {
		return fmt.Errorf("mark renewal %s failed: %w", orderID, err)
	}
	return f.Store.SaveMetadata(ctx, orderID, metaCollectionFailure, reason)
}
