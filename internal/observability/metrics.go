package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DispatchTicks  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "chauffeur_dispatch", Name: "ticks_total", Help: "Total dispatch task ticks executed"})
	NoticesPushed  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "chauffeur_dispatch", Name: "notices_pushed_total", Help: "Total order notices pushed to driver inboxes"})
	TasksActive    = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "chauffeur_dispatch", Name: "tasks_active", Help: "Live dispatch tasks"})
	TasksExpired   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "chauffeur_dispatch", Name: "tasks_expired_total", Help: "Dispatch tasks that hit the max wall-clock age"})
	AcceptAttempts = promauto.NewCounter(prometheus.CounterOpts{Namespace: "chauffeur_dispatch", Name: "accept_attempts_total", Help: "Total driver acceptance attempts"})
	AcceptWins     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "chauffeur_dispatch", Name: "accept_wins_total", Help: "Acceptance attempts that won the order"})
	TickDuration   = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "chauffeur_dispatch",
		Name:      "tick_duration_seconds",
		Help:      "Dispatch tick latency distribution",
		Buckets:   prometheus.DefBuckets,
	})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "chauffeur_dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chauffeur_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
