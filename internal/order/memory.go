package order

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by tests and local runs. Production
// deployments replace it with an adapter over the host platform's order API.
type MemoryStore struct {
	mu       sync.RWMutex
	orders   map[string]Order
	stock    map[string]int
	renewals []Renewal
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders: make(map[string]Order),
		stock:  make(map[string]int),
	}
}

// Seed inserts or replaces an order.
func (s *MemoryStore) Seed(o Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.Metadata == nil {
		o.Metadata = make(map[string]string)
	}
	s.orders[o.ID] = o
}

// SeedRenewal registers a due recurring charge for the collector.
func (s *MemoryStore) SeedRenewal(r Renewal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renewals = append(s.renewals, r)
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return cloneOrder(o), nil
}

// MarkPaid implements Store. A paid order is never transitioned back.
func (s *MemoryStore) MarkPaid(_ context.Context, id, txnID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return ErrNotFound
	}
	if o.Paid {
		return nil
	}
	o.Paid = true
	o.TxnID = txnID
	o.FailReason = ""
	s.orders[id] = o
	return nil
}

// MarkFailed implements Store.
func (s *MemoryStore) MarkFailed(_ context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.FailReason = reason
	s.orders[id] = o
	return nil
}

// ReduceStock implements Store by decrementing per-product counters.
func (s *MemoryStore) ReduceStock(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return ErrNotFound
	}
	for _, line := range o.Lines {
		s.stock[line.ProductID] -= line.Quantity
	}
	return nil
}

// ActivateSubscriptions implements Store.
func (s *MemoryStore) ActivateSubscriptions(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Metadata["subscription_status"] = "active"
	s.orders[id] = o
	return nil
}

// SaveMetadata implements Store.
func (s *MemoryStore) SaveMetadata(_ context.Context, id, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Metadata[key] = value
	s.orders[id] = o
	return nil
}

// DueRenewals implements RenewalSource.
func (s *MemoryStore) DueRenewals(_ context.Context, now time.Time) ([]Renewal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []Renewal
	for _, r := range s.renewals {
		if !r.DueAt.After(now) {
			due = append(due, r)
		}
	}
	return due, nil
}

// OrderIDByMandate implements MandateResolver by scanning stored metadata.
func (s *MemoryStore) OrderIDByMandate(_ context.Context, mandateRef string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, o := range s.orders {
		if o.Metadata["payex_mandate_reference"] == mandateRef {
			return id, nil
		}
	}
	return "", ErrNotFound
}

// Stock returns the remaining stock counter for a product id.
func (s *MemoryStore) Stock(productID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stock[productID]
}

// SetStock sets the stock counter for a product id.
func (s *MemoryStore) SetStock(productID string, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[productID] = qty
}

func cloneOrder(o Order) Order {
	meta := make(map[string]string, len(o.Metadata))
	for k, v := range o.Metadata {
		meta[k] = v
	}
	o.Metadata = meta
	lines := make([]Line, len(o.Lines))
	copy(lines, o.Lines)
	o.Lines = lines
	return o
}
