package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/chauffeur-dispatch/internal/models"
)

type fakeUpdater struct {
	failures int
	calls    int
	last     *redis.GeoLocation
}

func (f *fakeUpdater) GeoAdd(ctx context.Context, key string, loc *redis.GeoLocation) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("transient redis error")
	}
	f.last = loc
	return nil
}

func TestUpdateGeoWithRetrySucceedsAfterTransientFailure(t *testing.T) {
	fu := &fakeUpdater{failures: 2}
	loc := models.DriverLocation{DriverID: "d1", Lon: 104.0730, Lat: 30.5740}
	if err := updateGeoWithRetry(context.Background(), fu, "drivers_geo", loc, 3, time.Millisecond); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if fu.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", fu.calls)
	}
	if fu.last == nil || fu.last.Name != "d1" || fu.last.Longitude != 104.0730 {
		t.Fatalf("location not applied: %+v", fu.last)
	}
}

func TestUpdateGeoWithRetryExhaustsAttempts(t *testing.T) {
	fu := &fakeUpdater{failures: 10}
	loc := models.DriverLocation{DriverID: "d1", Lon: 104.0730, Lat: 30.5740}
	if err := updateGeoWithRetry(context.Background(), fu, "drivers_geo", loc, 3, time.Millisecond); err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if fu.calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", fu.calls)
	}
}
