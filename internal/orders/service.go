package orders

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/example/chauffeur-dispatch/internal/models"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("order status conflict")
)

// AwaitMarker is the fast-existence hint for "still waiting for a
// driver". The persisted status is ground truth; the marker only lets
// acceptance attempts fail cheaply.
type AwaitMarker interface {
	Set(ctx context.Context, orderID string, ttl time.Duration) error
	Delete(ctx context.Context, orderID string) error
}

// Service owns the order lifecycle state machine.
type Service struct {
	store     Store
	marker    AwaitMarker
	markerTTL time.Duration
	logger    *slog.Logger
}

func NewService(store Store, marker AwaitMarker, markerTTL time.Duration, logger *slog.Logger) *Service {
	return &Service{store: store, marker: marker, markerTTL: markerTTL, logger: logger}
}

// Submit persists a new waiting order, sets the awaiting marker and
// appends the first status log entry.
func (s *Service) Submit(ctx context.Context, o *models.Order) (string, error) {
	if o.ID == "" {
		o.ID = NewID()
	}
	o.Status = models.StatusWaitingAccept
	if o.CreateTime.IsZero() {
		o.CreateTime = time.Now()
	}
	if err := s.store.Create(ctx, o); err != nil {
		return "", err
	}
	if err := s.marker.Set(ctx, o.ID, s.markerTTL); err != nil {
		s.logger.Error("await marker set failed", "order_id", o.ID, "error", err)
	}
	s.log(ctx, o.ID, o.Status)
	return o.ID, nil
}

func (s *Service) Get(ctx context.Context, orderID string) (*models.Order, error) {
	return s.store.Get(ctx, orderID)
}

// Status never errors on a missing record: it reports StatusNullOrder.
func (s *Service) Status(ctx context.Context, orderID string) (models.OrderStatus, error) {
	return s.store.GetStatus(ctx, orderID)
}

// Cancel tears down a waiting order. Once a driver accepted, the
// guard rejects cancellation.
func (s *Service) Cancel(ctx context.Context, orderID string) error {
	status, err := s.store.GetStatus(ctx, orderID)
	if err != nil {
		return err
	}
	if status != models.StatusWaitingAccept {
		return ErrInvalidTransition
	}
	ok, err := s.store.Transition(ctx, orderID, models.StatusWaitingAccept, models.StatusCanceled, Update{})
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	if err := s.marker.Delete(ctx, orderID); err != nil {
		s.logger.Error("await marker delete failed", "order_id", orderID, "error", err)
	}
	s.log(ctx, orderID, models.StatusCanceled)
	return nil
}

// DriverArrived marks the assigned driver at the pickup point.
func (s *Service) DriverArrived(ctx context.Context, orderID, driverID string) error {
	return s.advance(ctx, orderID, models.StatusAccepted, models.StatusDriverArrived, Update{GuardDriverID: driverID})
}

// UpdateCart records that the driver registered the customer's car.
func (s *Service) UpdateCart(ctx context.Context, orderID, driverID string) error {
	return s.advance(ctx, orderID, models.StatusDriverArrived, models.StatusCartUpdated, Update{GuardDriverID: driverID})
}

// StartService begins the drive.
func (s *Service) StartService(ctx context.Context, orderID, driverID string) error {
	status, err := s.store.GetStatus(ctx, orderID)
	if err != nil {
		return err
	}
	// the cart step is optional; start is legal from either state
	if status != models.StatusDriverArrived && status != models.StatusCartUpdated {
		return ErrInvalidTransition
	}
	return s.advance(ctx, orderID, status, models.StatusStartService, Update{GuardDriverID: driverID})
}

// EndService finishes the drive and stores the real figures.
func (s *Service) EndService(ctx context.Context, orderID, driverID string, realDistance, realAmount float64) error {
	return s.advance(ctx, orderID, models.StatusStartService, models.StatusEndService, Update{
		GuardDriverID: driverID,
		RealDistance:  &realDistance,
		RealAmount:    &realAmount,
	})
}

// SendBill moves the finished order to unpaid.
func (s *Service) SendBill(ctx context.Context, orderID, driverID string) error {
	return s.advance(ctx, orderID, models.StatusEndService, models.StatusUnpaid, Update{GuardDriverID: driverID})
}

// MarkPaid settles the order after the payment collaborator captured funds.
func (s *Service) MarkPaid(ctx context.Context, orderID string) error {
	return s.advance(ctx, orderID, models.StatusUnpaid, models.StatusPaid, Update{})
}

func (s *Service) advance(ctx context.Context, orderID string, from, to models.OrderStatus, upd Update) error {
	if !models.CanTransition(from, to) {
		return ErrInvalidTransition
	}
	ok, err := s.store.Transition(ctx, orderID, from, to, upd)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.log(ctx, orderID, to)
	return nil
}

func (s *Service) log(ctx context.Context, orderID string, status models.OrderStatus) {
	if err := s.store.AppendStatusLog(ctx, orderID, status, time.Now()); err != nil {
		s.logger.Error("status log append failed", "order_id", orderID, "status", status.String(), "error", err)
	}
}

func NewID() string { b := make([]byte, 16); _, _ = rand.Read(b); return hex.EncodeToString(b) }
