// Package dispatch drives the recurring driver-discovery task that
// runs per waiting order until a driver accepts, the order is
// cancelled, or the task ages out.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/chauffeur-dispatch/internal/dedup"
	"github.com/example/chauffeur-dispatch/internal/geo"
	"github.com/example/chauffeur-dispatch/internal/inbox"
	"github.com/example/chauffeur-dispatch/internal/models"
	"github.com/example/chauffeur-dispatch/internal/observability"
	"github.com/example/chauffeur-dispatch/internal/prefs"
)

// Lifecycle is the order-service collaborator the scheduler polls for
// termination and calls for age-out cancellation.
type Lifecycle interface {
	Status(ctx context.Context, orderID string) (models.OrderStatus, error)
	Cancel(ctx context.Context, orderID string) error
}

// Notifier pushes a notice to a connected driver immediately. It is
// best effort; the inbox is the source of truth.
type Notifier interface {
	Notify(driverID string, notice models.OrderNotice) error
}

type Config struct {
	TickInterval   time.Duration
	SearchRadiusKm float64
	DedupTTL       time.Duration
	InboxTTL       time.Duration
	MaxTaskAge     time.Duration
	Workers        int
}

// Scheduler owns one recurring task per waiting order. Each task has
// its own ticker goroutine; tick bodies execute on a shared worker
// pool so one slow order cannot stall the others.
type Scheduler struct {
	cfg       Config
	lifecycle Lifecycle
	geo       geo.Index
	dedup     dedup.Store
	inbox     inbox.Inbox
	prefs     prefs.Service
	notifier  Notifier // may be nil
	logger    *slog.Logger

	mu    sync.Mutex
	tasks map[string]*task
	jobs  chan *task
}

type task struct {
	snapshot models.OrderSnapshot
	deadline time.Time
	cancel   context.CancelFunc
	running  atomic.Bool
}

func NewScheduler(cfg Config, lifecycle Lifecycle, gi geo.Index, ds dedup.Store, ib inbox.Inbox, ps prefs.Service, notifier Notifier, logger *slog.Logger) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	return &Scheduler{
		cfg:       cfg,
		lifecycle: lifecycle,
		geo:       gi,
		dedup:     ds,
		inbox:     ib,
		prefs:     ps,
		notifier:  notifier,
		logger:    logger,
		tasks:     make(map[string]*task),
		jobs:      make(chan *task, cfg.Workers*4),
	}
}

// Start launches the worker pool. Workers exit when ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	for i := 0; i < s.cfg.Workers; i++ {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case t := <-s.jobs:
					s.runTick(t)
				}
			}
		}()
	}
}

// Schedule registers a recurring task for the order. Registration is
// idempotent: a second submission for the same order returns the
// existing task without spawning another.
func (s *Scheduler) Schedule(snapshot models.OrderSnapshot) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[snapshot.OrderID]; ok {
		return snapshot.OrderID
	}
	created := snapshot.CreateTime
	if created.IsZero() {
		created = time.Now()
	}
	taskCtx, cancel := context.WithCancel(context.Background())
	t := &task{
		snapshot: snapshot,
		deadline: created.Add(s.cfg.MaxTaskAge),
		cancel:   cancel,
	}
	s.tasks[snapshot.OrderID] = t
	observability.TasksActive.Inc()
	go s.tickLoop(taskCtx, t)
	s.logger.Info("dispatch task scheduled", "order_id", snapshot.OrderID)
	return snapshot.OrderID
}

// Cancel stops future ticks for the order. An in-flight tick finishes
// on its own; it only observes the missing task afterwards.
func (s *Scheduler) Cancel(orderID string) {
	s.deschedule(orderID)
}

// Len reports the number of live tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Scheduler) deschedule(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[orderID]
	if !ok {
		return
	}
	t.cancel()
	delete(s.tasks, orderID)
	observability.TasksActive.Dec()
	s.logger.Info("dispatch task descheduled", "order_id", orderID)
}

func (s *Scheduler) tickLoop(ctx context.Context, t *task) {
	// fire once right away so a fresh order reaches drivers before the
	// first full interval elapses
	s.enqueue(t)
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.enqueue(t)
		}
	}
}

func (s *Scheduler) enqueue(t *task) {
	select {
	case s.jobs <- t:
	default:
		// pool saturated; skip this tick rather than block every
		// other order's ticker
		s.logger.Warn("dispatch workers saturated, tick skipped", "order_id", t.snapshot.OrderID)
	}
}

func (s *Scheduler) runTick(t *task) {
	// overlapping ticks for one order are skipped, not queued
	if !t.running.CompareAndSwap(false, true) {
		return
	}
	defer t.running.Store(false)

	observability.DispatchTicks.Inc()
	timer := time.Now()
	defer func() { observability.TickDuration.Observe(time.Since(timer).Seconds()) }()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.TickInterval)
	defer cancel()

	orderID := t.snapshot.OrderID
	status, err := s.lifecycle.Status(ctx, orderID)
	if err != nil {
		// collaborator unreachable: stay alive and retry next tick,
		// termination is never inferred from an error
		s.logger.Error("order status lookup failed", "order_id", orderID, "error", err)
		return
	}
	if status != models.StatusWaitingAccept {
		s.logger.Info("order left waiting state, stopping task", "order_id", orderID, "status", status.String())
		s.deschedule(orderID)
		return
	}

	if time.Now().After(t.deadline) {
		observability.TasksExpired.Inc()
		s.logger.Info("dispatch task exceeded max age, cancelling order", "order_id", orderID)
		if err := s.lifecycle.Cancel(ctx, orderID); err != nil {
			s.logger.Error("age-out cancel failed", "order_id", orderID, "error", err)
		}
		s.deschedule(orderID)
		return
	}

	candidates, err := s.geo.QueryRadius(ctx, t.snapshot.StartPoint, s.cfg.SearchRadiusKm)
	if err != nil {
		s.logger.Error("geo radius query failed", "order_id", orderID, "error", err)
		return
	}

	for _, cand := range candidates {
		if err := s.offer(ctx, t.snapshot, cand); err != nil {
			// isolate per-candidate failures; the rest of the tick proceeds
			s.logger.Error("candidate fan-out failed", "order_id", orderID, "driver_id", cand.DriverID, "error", err)
		}
	}
}

// offer pushes the order to one candidate's inbox unless the driver's
// preferences exclude it or the driver was already notified.
func (s *Scheduler) offer(ctx context.Context, snap models.OrderSnapshot, cand models.NearbyDriver) error {
	p, err := s.prefs.Preferences(ctx, cand.DriverID)
	if err != nil {
		return err
	}
	// zero means unlimited
	if p.AcceptDistance != 0 && cand.Distance > p.AcceptDistance {
		return nil
	}
	if p.OrderDistance != 0 && snap.ExpectDistance > p.OrderDistance {
		return nil
	}

	notified, err := s.dedup.Notified(ctx, snap.OrderID, cand.DriverID)
	if err != nil {
		return err
	}
	if notified {
		return nil
	}

	notice := models.OrderNotice{
		OrderID:        snap.OrderID,
		StartLocation:  snap.StartLocation,
		EndLocation:    snap.EndLocation,
		ExpectAmount:   snap.ExpectAmount,
		ExpectDistance: snap.ExpectDistance,
		ExpectTime:     snap.ExpectTime,
		FavourFee:      snap.FavourFee,
		Distance:       cand.Distance,
		CreateTime:     snap.CreateTime,
	}

	// push before marking: a crash between the two re-notifies at
	// worst, it never loses a marked notification
	if err := s.inbox.Push(ctx, cand.DriverID, notice); err != nil {
		return err
	}
	if err := s.dedup.Mark(ctx, snap.OrderID, cand.DriverID, s.cfg.DedupTTL); err != nil {
		s.logger.Warn("dedup mark failed after push", "order_id", snap.OrderID, "driver_id", cand.DriverID, "error", err)
	}
	observability.NoticesPushed.Inc()

	if s.notifier != nil {
		if err := s.notifier.Notify(cand.DriverID, notice); err != nil {
			s.logger.Debug("ws push skipped", "driver_id", cand.DriverID, "error", err)
		}
	}
	s.logger.Info("order notice pushed", "order_id", snap.OrderID, "driver_id", cand.DriverID, "distance_km", cand.Distance)
	return nil
}
