package orders

import (
	"context"
	"testing"
	"time"

	"github.com/example/chauffeur-dispatch/internal/models"
)

func TestTransitionIsConditional(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	_ = st.Create(ctx, &models.Order{ID: "o1", Status: models.StatusWaitingAccept})

	// wrong expected status: no row changes
	ok, err := st.Transition(ctx, "o1", models.StatusAccepted, models.StatusDriverArrived, Update{})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("transition applied despite status mismatch")
	}

	now := time.Now()
	ok, _ = st.Transition(ctx, "o1", models.StatusWaitingAccept, models.StatusAccepted, Update{SetDriverID: "d1", AcceptTime: &now})
	if !ok {
		t.Fatal("matching transition did not apply")
	}
	o, _ := st.Get(ctx, "o1")
	if o.DriverID != "d1" || o.AcceptTime.IsZero() {
		t.Fatalf("update fields not applied: %+v", o)
	}

	// a second identical attempt finds the status moved on and loses
	ok, _ = st.Transition(ctx, "o1", models.StatusWaitingAccept, models.StatusAccepted, Update{SetDriverID: "d2", AcceptTime: &now})
	if ok {
		t.Fatal("second acceptance applied")
	}
	o, _ = st.Get(ctx, "o1")
	if o.DriverID != "d1" {
		t.Fatalf("winner overwritten: %s", o.DriverID)
	}
}

func TestTransitionMissingOrder(t *testing.T) {
	ok, err := NewMemoryStore().Transition(context.Background(), "ghost", models.StatusWaitingAccept, models.StatusAccepted, Update{})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("transition applied to a missing order")
	}
}

func TestTransitionDriverGuard(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	_ = st.Create(ctx, &models.Order{ID: "o1", Status: models.StatusAccepted, DriverID: "d1"})

	ok, _ := st.Transition(ctx, "o1", models.StatusAccepted, models.StatusDriverArrived, Update{GuardDriverID: "d2"})
	if ok {
		t.Fatal("guard let a different driver through")
	}
	ok, _ = st.Transition(ctx, "o1", models.StatusAccepted, models.StatusDriverArrived, Update{GuardDriverID: "d1"})
	if !ok {
		t.Fatal("guard rejected the assigned driver")
	}
}

func TestGetMissingOrder(t *testing.T) {
	if _, err := NewMemoryStore().Get(context.Background(), "ghost"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
