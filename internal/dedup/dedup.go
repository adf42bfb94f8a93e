package dedup

import (
	"context"
	"sync"
	"time"
)

// Store records which drivers were already notified about an order.
// The per-order set expires together with the order's acceptance
// window, so a driver is notified at most once per order even if the
// inbox entry expired unread.
type Store interface {
	// Notified reports whether the driver was already marked for the order.
	Notified(ctx context.Context, orderID, driverID string) (bool, error)
	// Mark records the driver and refreshes the order set's TTL.
	Mark(ctx context.Context, orderID, driverID string, ttl time.Duration) error
}

// MemoryStore is the in-process Store with lazy expiry.
type MemoryStore struct {
	mu     sync.Mutex
	orders map[string]*entry
	now    func() time.Time
}

type entry struct {
	drivers map[string]struct{}
	expires time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]*entry), now: time.Now}
}

func (m *MemoryStore) Notified(ctx context.Context, orderID, driverID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.orders[orderID]
	if e == nil {
		return false, nil
	}
	if m.now().After(e.expires) {
		delete(m.orders, orderID)
		return false, nil
	}
	_, ok := e.drivers[driverID]
	return ok, nil
}

func (m *MemoryStore) Mark(ctx context.Context, orderID, driverID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.orders[orderID]
	if e == nil || m.now().After(e.expires) {
		e = &entry{drivers: make(map[string]struct{})}
		m.orders[orderID] = e
	}
	e.drivers[driverID] = struct{}{}
	e.expires = m.now().Add(ttl)
	return nil
}
