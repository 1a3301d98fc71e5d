package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/payex-bridge/internal/lock"
	"github.com/noah-isme/payex-bridge/internal/order"
)

// Collector periodically charges due renewals against their stored mandates.
// Each cycle runs under a shared lock so concurrent replicas never double
// charge; individual failures are logged and do not stop the cycle.
type Collector struct {
	Renewals order.RenewalSource
	Service  *Service
	Locker   lock.Locker
	LockTTL  time.Duration
	LockKey  string
	Interval time.Duration
	Now      func() time.Time
	Logger   zerolog.Logger
}

// Run executes collection cycles until the context is cancelled. The first
// cycle starts immediately.
func (c Collector) Run(ctx context.Context) error {
	interval := c.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := c.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.Logger.Error().Err(err).Msg("collection cycle failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce executes a single collection cycle under the shared lock.
func (c Collector) RunOnce(ctx context.Context) error {
	key := c.LockKey
	if key == "" {
		key = "payex:collector:run"
	}
	return c.Locker.WithLock(ctx, key, c.LockTTL, func(ctx context.Context) error {
		now := time.Now()
		if c.Now != nil {
			now = c.Now()
		}
		due, err := c.Renewals.DueRenewals(ctx, now)
		if err != nil {
			return err
		}
		for _, renewal := range due {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			res, err := c.Service.CollectRecurring(ctx, renewal.OrderID, renewal.Amount)
			if err != nil {
				c.Logger.Error().Err(err).Str("order_id", renewal.OrderID).Msg("renewal collection failed")
				continue
			}
			c.Logger.Info().Str("order_id", renewal.OrderID).
				Str("collection_number", res.CollectionNumber).Msg("renewal collected")
		}
		return nil
	})
}
