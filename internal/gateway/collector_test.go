package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/payex-bridge/internal/lock"
	"github.com/noah-isme/payex-bridge/internal/order"
	"github.com/noah-isme/payex-bridge/internal/payex"
)

func TestCollectorRunOnceChargesDueRenewals(t *testing.T) {
	mem := order.NewMemoryStore()
	due := seededOrder("3001")
	due.Metadata = map[string]string{"payex_mandate_reference": "MAN-12"}
	mem.Seed(due)
	mem.SeedRenewal(order.Renewal{
		OrderID: "3001",
		Amount:  decimal.NewFromFloat(75.25),
		DueAt:   time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	mem.SeedRenewal(order.Renewal{
		OrderID: "3002",
		Amount:  decimal.NewFromFloat(75.25),
		DueAt:   time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
	})

	stub := &payexStub{token: "tok-1", collection: payex.CollectionResult{CollectionNumber: "COL-90", Status: "PP"}}
	svc := newTestService(t, stub, mem)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := Collector{
		Renewals: mem,
		Service:  svc,
		Locker:   lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond},
		LockTTL:  time.Second,
		Now:      func() time.Time { return time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC) },
		Logger:   zerolog.Nop(),
	}

	require.NoError(t, c.RunOnce(context.Background()))

	charged, err := mem.Get(context.Background(), "3001")
	require.NoError(t, err)
	require.Equal(t, "COL-90", charged.Metadata["payex_collection_number"])

	// The second renewal is not yet due and must remain untouched.
	require.Len(t, stub.lastPayload, 1)
	require.Equal(t, "3001", stub.lastPayload[0]["reference_number"])
}
