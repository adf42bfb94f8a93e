package geo

import (
	"context"
	"math"
	"testing"

	"github.com/example/chauffeur-dispatch/internal/models"
)

// latOffsetKm returns a coordinate the given number of km due north of
// base. For pure latitude offsets haversine is exact, which makes
// boundary tests deterministic.
func latOffsetKm(base models.Coord, km float64) models.Coord {
	const R = 6371.0
	dLat := km / R * 180 / math.Pi
	return models.Coord{Lon: base.Lon, Lat: base.Lat + dLat}
}

func TestHaversineZero(t *testing.T) {
	d := Haversine(0, 0, 0, 0)
	if d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestQueryRadiusBoundary(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	origin := models.Coord{Lon: 104.0730, Lat: 30.5740}

	at := latOffsetKm(origin, 4.9999)
	beyond := latOffsetKm(origin, 5.0001)
	if err := idx.Upsert(ctx, "at-boundary", at.Lon, at.Lat); err != nil {
		t.Fatal(err)
	}
	if err := idx.Upsert(ctx, "beyond", beyond.Lon, beyond.Lat); err != nil {
		t.Fatal(err)
	}

	got, err := idx.QueryRadius(ctx, origin, 5.0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].DriverID != "at-boundary" {
		t.Fatalf("expected only the boundary driver, got %+v", got)
	}
	if math.Abs(got[0].Distance-5.0) > 1e-3 {
		t.Fatalf("expected distance ~5.0, got %f", got[0].Distance)
	}
}

func TestQueryRadiusAscending(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	origin := models.Coord{Lon: 104.0730, Lat: 30.5740}
	for _, d := range []struct {
		id string
		km float64
	}{{"far", 4}, {"near", 1}, {"mid", 3}} {
		c := latOffsetKm(origin, d.km)
		if err := idx.Upsert(ctx, d.id, c.Lon, c.Lat); err != nil {
			t.Fatal(err)
		}
	}
	got, err := idx.QueryRadius(ctx, origin, 5)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"near", "mid", "far"}
	if len(got) != len(want) {
		t.Fatalf("expected %d drivers, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].DriverID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].DriverID)
		}
	}
}

func TestUpsertOverwritesAndRemove(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	origin := models.Coord{Lon: 104.0730, Lat: 30.5740}
	far := latOffsetKm(origin, 20)
	if err := idx.Upsert(ctx, "d1", far.Lon, far.Lat); err != nil {
		t.Fatal(err)
	}
	// moves back into range, last write wins
	near := latOffsetKm(origin, 1)
	if err := idx.Upsert(ctx, "d1", near.Lon, near.Lat); err != nil {
		t.Fatal(err)
	}
	got, _ := idx.QueryRadius(ctx, origin, 5)
	if len(got) != 1 {
		t.Fatalf("expected 1 driver, got %d", len(got))
	}

	if err := idx.Remove(ctx, "d1"); err != nil {
		t.Fatal(err)
	}
	// removing an absent driver is a no-op
	if err := idx.Remove(ctx, "d1"); err != nil {
		t.Fatal(err)
	}
	got, _ = idx.QueryRadius(ctx, origin, 5)
	if len(got) != 0 {
		t.Fatalf("expected empty result after remove, got %d", len(got))
	}
}

func TestInvalidCoordinatesRejected(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	cases := []struct{ lon, lat float64 }{
		{181, 0}, {-181, 0}, {0, 91}, {0, -91},
		{math.NaN(), 0}, {0, math.Inf(1)},
	}
	for _, c := range cases {
		if err := idx.Upsert(ctx, "bad", c.lon, c.lat); err != ErrInvalidCoord {
			t.Fatalf("lon=%f lat=%f: expected ErrInvalidCoord, got %v", c.lon, c.lat, err)
		}
	}
	if _, err := idx.QueryRadius(ctx, models.Coord{Lon: 200, Lat: 0}, 5); err != ErrInvalidCoord {
		t.Fatalf("expected ErrInvalidCoord for query center, got %v", err)
	}
}
