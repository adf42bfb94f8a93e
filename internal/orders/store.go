package orders

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/example/chauffeur-dispatch/internal/models"
)

var ErrNotFound = errors.New("order not found")

// Update carries the optional field writes applied together with a
// status transition.
type Update struct {
	// SetDriverID assigns the winning driver (acceptance only).
	SetDriverID string
	// GuardDriverID, when set, restricts the transition to the order
	// currently assigned to this driver.
	GuardDriverID string
	AcceptTime    *time.Time
	RealAmount    *float64
	RealDistance  *float64
}

// Store is the order persistence contract. Transition is the
// single-winner correctness backstop: it applies only when the stored
// status still equals from, and reports whether a row changed.
type Store interface {
	Create(ctx context.Context, o *models.Order) error
	Get(ctx context.Context, orderID string) (*models.Order, error)
	// GetStatus returns StatusNullOrder for a missing record so
	// pollers treat "never existed" and "gone" uniformly.
	GetStatus(ctx context.Context, orderID string) (models.OrderStatus, error)
	Transition(ctx context.Context, orderID string, from, to models.OrderStatus, upd Update) (bool, error)
	// AppendStatusLog writes an audit record; it never drives control flow.
	AppendStatusLog(ctx context.Context, orderID string, status models.OrderStatus, at time.Time) error
}

// MemoryStore holds orders in-process. Used by tests and single-node runs.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]*models.Order
	logs   []StatusLog
}

type StatusLog struct {
	OrderID string
	Status  models.OrderStatus
	At      time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]*models.Order)}
}

func (m *MemoryStore) Create(ctx context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, orderID string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MemoryStore) GetStatus(ctx context.Context, orderID string) (models.OrderStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[orderID]
	if !ok {
		return models.StatusNullOrder, nil
	}
	return o.Status, nil
}

func (m *MemoryStore) Transition(ctx context.Context, orderID string, from, to models.OrderStatus, upd Update) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return false, nil
	}
	if o.Status != from {
		return false, nil
	}
	if upd.GuardDriverID != "" && o.DriverID != upd.GuardDriverID {
		return false, nil
	}
	o.Status = to
	if upd.SetDriverID != "" {
		o.DriverID = upd.SetDriverID
	}
	if upd.AcceptTime != nil {
		o.AcceptTime = *upd.AcceptTime
	}
	if upd.RealAmount != nil {
		o.RealAmount = *upd.RealAmount
	}
	if upd.RealDistance != nil {
		o.RealDistance = *upd.RealDistance
	}
	return true, nil
}

func (m *MemoryStore) AppendStatusLog(ctx context.Context, orderID string, status models.OrderStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, StatusLog{OrderID: orderID, Status: status, At: at})
	return nil
}

// StatusLogs returns a copy of the audit trail, used by tests.
func (m *MemoryStore) StatusLogs() []StatusLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]StatusLog, len(m.logs))
	copy(out, m.logs)
	return out
}
