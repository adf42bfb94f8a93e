package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected addr %s", cfg.HTTPAddr)
	}
	if cfg.TickInterval != time.Minute {
		t.Fatalf("unexpected tick interval %s", cfg.TickInterval)
	}
	if cfg.SearchRadiusKm != 5 {
		t.Fatalf("unexpected radius %f", cfg.SearchRadiusKm)
	}
	if cfg.DedupTTL != 15*time.Minute || cfg.AwaitMarkTTL != 15*time.Minute {
		t.Fatalf("unexpected ttls: dedup=%s mark=%s", cfg.DedupTTL, cfg.AwaitMarkTTL)
	}
	if cfg.InboxTTL != time.Minute {
		t.Fatalf("unexpected inbox ttl %s", cfg.InboxTTL)
	}
	if cfg.DispatchWorkers != 8 {
		t.Fatalf("unexpected worker count %d", cfg.DispatchWorkers)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DISPATCH_TICK_INTERVAL", "30s")
	t.Setenv("DISPATCH_SEARCH_RADIUS_KM", "3.5")
	t.Setenv("KAFKA_BROKERS", "b1:9092, b2:9092 ,")
	t.Setenv("DISPATCH_WORKERS", "4")

	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TickInterval != 30*time.Second {
		t.Fatalf("tick override lost: %s", cfg.TickInterval)
	}
	if cfg.SearchRadiusKm != 3.5 {
		t.Fatalf("radius override lost: %f", cfg.SearchRadiusKm)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b2:9092" {
		t.Fatalf("broker list not parsed: %v", cfg.KafkaBrokers)
	}
	if cfg.DispatchWorkers != 4 {
		t.Fatalf("worker override lost: %d", cfg.DispatchWorkers)
	}
}

func TestInvalidValuesJoinErrors(t *testing.T) {
	t.Setenv("DISPATCH_TICK_INTERVAL", "not-a-duration")
	t.Setenv("DISPATCH_SEARCH_RADIUS_KM", "-1")

	if _, err := LoadServerConfig(); err == nil {
		t.Fatal("expected validation errors")
	}
}
