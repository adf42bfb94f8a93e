package inbox

import (
	"context"
	"testing"
	"time"

	"github.com/example/chauffeur-dispatch/internal/models"
)

func TestDrainAllNewestFirst(t *testing.T) {
	ctx := context.Background()
	ib := NewMemoryInbox(time.Minute)
	for _, id := range []string{"o1", "o2", "o3"} {
		if err := ib.Push(ctx, "d1", models.OrderNotice{OrderID: id}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := ib.DrainAll(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"o3", "o2", "o1"}
	if len(got) != len(want) {
		t.Fatalf("expected %d notices, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].OrderID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].OrderID)
		}
	}

	// drain removes: a second call yields nothing
	got, err = ib.DrainAll(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty second drain, got %d", len(got))
	}
}

func TestDrainUnknownDriverIsEmptyNotError(t *testing.T) {
	got, err := NewMemoryInbox(time.Minute).DrainAll(context.Background(), "ghost")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty slice, got %v", got)
	}
}

func TestQueueExpires(t *testing.T) {
	ctx := context.Background()
	ib := NewMemoryInbox(time.Minute)
	base := time.Now()
	ib.now = func() time.Time { return base }

	if err := ib.Push(ctx, "d1", models.OrderNotice{OrderID: "o1"}); err != nil {
		t.Fatal(err)
	}
	ib.now = func() time.Time { return base.Add(2 * time.Minute) }
	got, err := ib.DrainAll(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected expired queue to drain empty, got %d", len(got))
	}
}

func TestPushRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	ib := NewMemoryInbox(time.Minute)
	base := time.Now()
	ib.now = func() time.Time { return base }
	_ = ib.Push(ctx, "d1", models.OrderNotice{OrderID: "o1"})

	// 40s later a second push resets the clock for the whole queue
	ib.now = func() time.Time { return base.Add(40 * time.Second) }
	_ = ib.Push(ctx, "d1", models.OrderNotice{OrderID: "o2"})

	ib.now = func() time.Time { return base.Add(80 * time.Second) }
	got, err := ib.DrainAll(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both notices alive, got %d", len(got))
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	ib := NewMemoryInbox(time.Minute)
	_ = ib.Push(ctx, "d1", models.OrderNotice{OrderID: "o1"})
	if err := ib.Clear(ctx, "d1"); err != nil {
		t.Fatal(err)
	}
	got, _ := ib.DrainAll(ctx, "d1")
	if len(got) != 0 {
		t.Fatalf("expected cleared inbox, got %d notices", len(got))
	}
}
