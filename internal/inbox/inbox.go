package inbox

import (
	"context"
	"sync"
	"time"

	"github.com/example/chauffeur-dispatch/internal/models"
)

// Inbox is the per-driver ephemeral mailbox of pending order notices.
// Entries vanish after the queue TTL; a driver who does not poll in
// time simply misses that batch.
type Inbox interface {
	// Push prepends a notice to the driver's queue and refreshes the
	// TTL of the whole queue.
	Push(ctx context.Context, driverID string, notice models.OrderNotice) error
	// DrainAll removes and returns every pending notice, newest first.
	// An empty queue yields an empty slice, not an error.
	DrainAll(ctx context.Context, driverID string) ([]models.OrderNotice, error)
	// Clear drops all pending notices for the driver.
	Clear(ctx context.Context, driverID string) error
}

// MemoryInbox keeps queues in-process with lazy TTL eviction.
type MemoryInbox struct {
	mu     sync.Mutex
	ttl    time.Duration
	queues map[string]*queue
	now    func() time.Time
}

type queue struct {
	notices []models.OrderNotice
	expires time.Time
}

func NewMemoryInbox(ttl time.Duration) *MemoryInbox {
	return &MemoryInbox{ttl: ttl, queues: make(map[string]*queue), now: time.Now}
}

func (m *MemoryInbox) Push(ctx context.Context, driverID string, notice models.OrderNotice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queues[driverID]
	if q == nil || m.now().After(q.expires) {
		q = &queue{}
		m.queues[driverID] = q
	}
	q.notices = append([]models.OrderNotice{notice}, q.notices...)
	q.expires = m.now().Add(m.ttl)
	return nil
}

func (m *MemoryInbox) DrainAll(ctx context.Context, driverID string) ([]models.OrderNotice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queues[driverID]
	if q == nil {
		return []models.OrderNotice{}, nil
	}
	delete(m.queues, driverID)
	if m.now().After(q.expires) {
		return []models.OrderNotice{}, nil
	}
	return q.notices, nil
}

func (m *MemoryInbox) Clear(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.queues, driverID)
	return nil
}
