package orders

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/chauffeur-dispatch/internal/models"
)

type fakeMarker struct {
	set     map[string]bool
	deleted map[string]bool
}

func newFakeMarker() *fakeMarker {
	return &fakeMarker{set: make(map[string]bool), deleted: make(map[string]bool)}
}

func (f *fakeMarker) Set(ctx context.Context, orderID string, ttl time.Duration) error {
	f.set[orderID] = true
	return nil
}

func (f *fakeMarker) Delete(ctx context.Context, orderID string) error {
	f.deleted[orderID] = true
	return nil
}

func newTestService(t *testing.T) (*Service, *MemoryStore, *fakeMarker) {
	t.Helper()
	store := NewMemoryStore()
	marker := newFakeMarker()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, marker, 15*time.Minute, logger), store, marker
}

func TestSubmitSetsWaitingAndMarker(t *testing.T) {
	ctx := context.Background()
	svc, store, marker := newTestService(t)

	id, err := svc.Submit(ctx, &models.Order{CustomerID: "c1"})
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("empty order id")
	}
	o, err := store.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if o.Status != models.StatusWaitingAccept {
		t.Fatalf("expected waiting_accept, got %s", o.Status)
	}
	if o.CreateTime.IsZero() {
		t.Fatal("create time not set")
	}
	if !marker.set[id] {
		t.Fatal("await marker not set on submit")
	}
	logs := store.StatusLogs()
	if len(logs) != 1 || logs[0].Status != models.StatusWaitingAccept {
		t.Fatalf("expected one waiting_accept log entry, got %+v", logs)
	}
}

func TestStatusMissingOrderIsNullOrder(t *testing.T) {
	svc, _, _ := newTestService(t)
	status, err := svc.Status(context.Background(), "never-existed")
	if err != nil {
		t.Fatal(err)
	}
	if status != models.StatusNullOrder {
		t.Fatalf("expected null_order, got %s", status)
	}
}

func TestCancelOnlyWhileWaiting(t *testing.T) {
	ctx := context.Background()
	svc, store, marker := newTestService(t)

	id, _ := svc.Submit(ctx, &models.Order{CustomerID: "c1"})
	if err := svc.Cancel(ctx, id); err != nil {
		t.Fatal(err)
	}
	status, _ := svc.Status(ctx, id)
	if status != models.StatusCanceled {
		t.Fatalf("expected canceled, got %s", status)
	}
	if !marker.deleted[id] {
		t.Fatal("await marker not deleted on cancel")
	}

	// accepted orders cannot be cancelled
	id2, _ := svc.Submit(ctx, &models.Order{CustomerID: "c2"})
	now := time.Now()
	if ok, _ := store.Transition(ctx, id2, models.StatusWaitingAccept, models.StatusAccepted, Update{SetDriverID: "d1", AcceptTime: &now}); !ok {
		t.Fatal("setup transition failed")
	}
	if err := svc.Cancel(ctx, id2); err != ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	status, _ = svc.Status(ctx, id2)
	if status != models.StatusAccepted {
		t.Fatalf("cancel mutated an accepted order: %s", status)
	}
}

func TestForwardOnlyLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)

	id, _ := svc.Submit(ctx, &models.Order{CustomerID: "c1"})
	now := time.Now()
	if ok, _ := store.Transition(ctx, id, models.StatusWaitingAccept, models.StatusAccepted, Update{SetDriverID: "d1", AcceptTime: &now}); !ok {
		t.Fatal("setup transition failed")
	}

	steps := []func() error{
		func() error { return svc.DriverArrived(ctx, id, "d1") },
		func() error { return svc.UpdateCart(ctx, id, "d1") },
		func() error { return svc.StartService(ctx, id, "d1") },
		func() error { return svc.EndService(ctx, id, "d1", 12.5, 48.0) },
		func() error { return svc.SendBill(ctx, id, "d1") },
		func() error { return svc.MarkPaid(ctx, id) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
	}
	o, _ := store.Get(ctx, id)
	if o.Status != models.StatusPaid {
		t.Fatalf("expected paid, got %s", o.Status)
	}
	if o.RealDistance != 12.5 || o.RealAmount != 48.0 {
		t.Fatalf("real figures not stored: %+v", o)
	}

	// replaying an earlier step must fail, the path is forward only
	if err := svc.DriverArrived(ctx, id, "d1"); err != ErrConflict {
		t.Fatalf("expected ErrConflict on replay, got %v", err)
	}
}

func TestStartServiceSkipsOptionalCartStep(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)

	id, _ := svc.Submit(ctx, &models.Order{CustomerID: "c1"})
	now := time.Now()
	_, _ = store.Transition(ctx, id, models.StatusWaitingAccept, models.StatusAccepted, Update{SetDriverID: "d1", AcceptTime: &now})
	if err := svc.DriverArrived(ctx, id, "d1"); err != nil {
		t.Fatal(err)
	}
	if err := svc.StartService(ctx, id, "d1"); err != nil {
		t.Fatalf("start without cart step should be legal: %v", err)
	}
}

func TestDriverGuardRejectsOtherDriver(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)

	id, _ := svc.Submit(ctx, &models.Order{CustomerID: "c1"})
	now := time.Now()
	_, _ = store.Transition(ctx, id, models.StatusWaitingAccept, models.StatusAccepted, Update{SetDriverID: "d1", AcceptTime: &now})

	if err := svc.DriverArrived(ctx, id, "d2"); err != ErrConflict {
		t.Fatalf("expected ErrConflict for wrong driver, got %v", err)
	}
	status, _ := svc.Status(ctx, id)
	if status != models.StatusAccepted {
		t.Fatalf("wrong driver mutated the order: %s", status)
	}
}

func TestStatusLogAppendOnly(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)

	id, _ := svc.Submit(ctx, &models.Order{CustomerID: "c1"})
	_ = svc.Cancel(ctx, id)

	logs := store.StatusLogs()
	if len(logs) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(logs))
	}
	if logs[0].Status != models.StatusWaitingAccept || logs[1].Status != models.StatusCanceled {
		t.Fatalf("unexpected log sequence: %+v", logs)
	}
}
