// Package accept arbitrates concurrent acceptance attempts so that at
// most one driver wins an order.
package accept

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/chauffeur-dispatch/internal/models"
	"github.com/example/chauffeur-dispatch/internal/observability"
	"github.com/example/chauffeur-dispatch/internal/orders"
)

// ErrOrderTaken means the order is no longer available to this
// driver: someone else won, the order was cancelled, or the lock
// could not be obtained in time.
var ErrOrderTaken = errors.New("order no longer available")

type Service struct {
	store     orders.Store
	marker    Marker
	locker    Locker
	lockWait  time.Duration
	lockLease time.Duration
	logger    *slog.Logger
}

func NewService(store orders.Store, marker Marker, locker Locker, lockWait, lockLease time.Duration, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		marker:    marker,
		locker:    locker,
		lockWait:  lockWait,
		lockLease: lockLease,
		logger:    logger,
	}
}

// AttemptAccept tries to transition the order from waiting to accepted
// on behalf of driverID. The marker checks and the per-order lock are
// optimizations; the conditional update against the store is the
// correctness backstop either way.
func (s *Service) AttemptAccept(ctx context.Context, driverID, orderID string) error {
	observability.AcceptAttempts.Inc()

	// Fast path: most late attempts die here without touching the lock.
	if ok, err := s.marker.Exists(ctx, orderID); err == nil && !ok {
		return ErrOrderTaken
	} else if err != nil {
		s.logger.Warn("await marker read failed, falling through to lock", "order_id", orderID, "error", err)
	}

	release, locked, err := s.locker.Acquire(ctx, orderID, s.lockWait, s.lockLease)
	if err != nil {
		return err
	}
	if !locked {
		return ErrOrderTaken
	}
	defer release()

	// Double check under the lock: the fast path raced against it.
	if ok, err := s.marker.Exists(ctx, orderID); err == nil && !ok {
		return ErrOrderTaken
	}

	now := time.Now()
	won, err := s.store.Transition(ctx, orderID, models.StatusWaitingAccept, models.StatusAccepted, orders.Update{
		SetDriverID: driverID,
		AcceptTime:  &now,
	})
	if err != nil {
		return err
	}
	if !won {
		return ErrOrderTaken
	}

	if err := s.marker.Delete(ctx, orderID); err != nil {
		// harmless: the marker expires on its own and the persisted
		// status already says accepted
		s.logger.Warn("await marker delete failed", "order_id", orderID, "error", err)
	}
	if err := s.store.AppendStatusLog(ctx, orderID, models.StatusAccepted, now); err != nil {
		s.logger.Error("status log append failed", "order_id", orderID, "error", err)
	}

	observability.AcceptWins.Inc()
	s.logger.Info("order accepted", "order_id", orderID, "driver_id", driverID)
	return nil
}
