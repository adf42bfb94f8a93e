package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/example/chauffeur-dispatch/internal/accept"
	"github.com/example/chauffeur-dispatch/internal/config"
	"github.com/example/chauffeur-dispatch/internal/dedup"
	"github.com/example/chauffeur-dispatch/internal/dispatch"
	"github.com/example/chauffeur-dispatch/internal/eta"
	"github.com/example/chauffeur-dispatch/internal/geo"
	httpapi "github.com/example/chauffeur-dispatch/internal/http"
	"github.com/example/chauffeur-dispatch/internal/inbox"
	"github.com/example/chauffeur-dispatch/internal/ingest"
	"github.com/example/chauffeur-dispatch/internal/logging"
	"github.com/example/chauffeur-dispatch/internal/orders"
	"github.com/example/chauffeur-dispatch/internal/payments"
	"github.com/example/chauffeur-dispatch/internal/prefs"
)

const (
	inboxKeyPrefix  = "driver:order:inbox:"
	dedupKeyPrefix  = "order:dispatched:"
	markerKeyPrefix = "order:accept:mark:"
	lockKeyPrefix   = "order:accept:lock:"
	prefsKeyPrefix  = "driver:set:"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		logging.NewLogger("error").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	// backends: redis and postgres when configured, in-memory otherwise
	var rc *redis.Client
	if cfg.RedisAddr != "" {
		rc = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	}

	var geoIndex geo.Index
	var driverInbox inbox.Inbox
	var dedupStore dedup.Store
	var marker accept.Marker
	var locker accept.Locker
	var prefService prefs.Service
	if rc != nil {
		geoIndex = geo.NewRedisIndex(rc, cfg.RedisGeoKey)
		driverInbox = inbox.NewRedisInbox(rc, inboxKeyPrefix, cfg.InboxTTL)
		dedupStore = dedup.NewRedisStore(rc, dedupKeyPrefix)
		marker = accept.NewRedisMarker(rc, markerKeyPrefix)
		locker = accept.NewRedisLocker(rc, lockKeyPrefix)
		prefService = prefs.NewRedisService(rc, prefsKeyPrefix)
	} else {
		logger.Warn("REDIS_ADDR not set, using in-memory backends (single node only)")
		geoIndex = geo.NewMemoryIndex()
		driverInbox = inbox.NewMemoryInbox(cfg.InboxTTL)
		dedupStore = dedup.NewMemoryStore()
		marker = accept.NewMemoryMarker()
		locker = accept.NewMemoryLocker()
		prefService = prefs.NewMemoryService()
	}

	var store orders.Store
	if cfg.PGDSN != "" {
		if cfg.RunMigrations {
			runMigrations(cfg.PGDSN, logger)
		}
		ps, err := orders.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		store = ps
	} else {
		logger.Warn("PG_DSN not set, using in-memory order store")
		store = orders.NewMemoryStore()
	}

	orderService := orders.NewService(store, marker, cfg.AwaitMarkTTL, logger.With("component", "orders"))
	acceptService := accept.NewService(store, marker, locker, cfg.LockWait, cfg.LockLease, logger.With("component", "accept"))

	wsreg := dispatch.NewWSRegistry()
	scheduler := dispatch.NewScheduler(dispatch.Config{
		TickInterval:   cfg.TickInterval,
		SearchRadiusKm: cfg.SearchRadiusKm,
		DedupTTL:       cfg.DedupTTL,
		InboxTTL:       cfg.InboxTTL,
		MaxTaskAge:     cfg.MaxTaskAge,
		Workers:        cfg.DispatchWorkers,
	}, orderService, geoIndex, dedupStore, driverInbox, prefService, wsreg, logger.With("component", "dispatch"))

	var kp *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		kp = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() { _ = kp.Close() }()
	}

	estimator := &eta.Estimator{SpeedMps: cfg.DefaultSpeedMps, Cache: eta.NewCache(cfg.TickInterval)}
	if cfg.OSRMEndpoint != "" {
		estimator.Client = eta.NewOSRMClient(cfg.OSRMEndpoint)
	}

	srv := httpapi.NewServer(httpapi.Deps{
		Orders:    orderService,
		Accept:    acceptService,
		Scheduler: scheduler,
		Inbox:     driverInbox,
		Geo:       geoIndex,
		Kafka:     kp,
		WSReg:     wsreg,
		Estimator: estimator,
		Payments:  payments.NewStripeClient(),
		Logger:    logger.With("component", "http"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	scheduler.Start(ctx)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	go func() {
		logger.Info("chauffeur-dispatch listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", "error", err)
	}
}

func runMigrations(dsn string, logger *slog.Logger) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Error("migration db open error", "error", err)
		return
	}
	defer func() { _ = db.Close() }()
	b, err := os.ReadFile(filepath.Join("migrations", "001_create_orders.sql"))
	if err != nil {
		logger.Error("migration read error", "error", err)
		return
	}
	if _, err := db.Exec(string(b)); err != nil {
		logger.Error("migration exec error", "error", err)
		return
	}
	logger.Info("migration applied", "file", "001_create_orders.sql")
}
