package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/chauffeur-dispatch/internal/accept"
	"github.com/example/chauffeur-dispatch/internal/dispatch"
	"github.com/example/chauffeur-dispatch/internal/eta"
	"github.com/example/chauffeur-dispatch/internal/geo"
	"github.com/example/chauffeur-dispatch/internal/inbox"
	"github.com/example/chauffeur-dispatch/internal/ingest"
	"github.com/example/chauffeur-dispatch/internal/orders"
	"github.com/example/chauffeur-dispatch/internal/payments"
)

// Server exposes the dispatch engine to clients: order submission and
// lifecycle, driver inbox polling, acceptance attempts, and driver
// location updates.
type Server struct {
	Orders    *orders.Service
	Accept    *accept.Service
	Scheduler *dispatch.Scheduler
	Inbox     inbox.Inbox
	Geo       geo.Index
	Kafka     *ingest.KafkaProducer // optional location stream
	WSReg     *dispatch.WSRegistry
	Estimator *eta.Estimator
	Payments  payments.Collaborator // optional

	logger *slog.Logger
	mux    *mux.Router
}

type Deps struct {
	Orders    *orders.Service
	Accept    *accept.Service
	Scheduler *dispatch.Scheduler
	Inbox     inbox.Inbox
	Geo       geo.Index
	Kafka     *ingest.KafkaProducer
	WSReg     *dispatch.WSRegistry
	Estimator *eta.Estimator
	Payments  payments.Collaborator
	Logger    *slog.Logger
}

func NewServer(d Deps) *Server {
	s := &Server{
		Orders:    d.Orders,
		Accept:    d.Accept,
		Scheduler: d.Scheduler,
		Inbox:     d.Inbox,
		Geo:       d.Geo,
		Kafka:     d.Kafka,
		WSReg:     d.WSReg,
		Estimator: d.Estimator,
		Payments:  d.Payments,
		logger:    d.Logger,
		mux:       mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/{order_id}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/{order_id}/status", s.handleOrderStatus).Methods("GET")
	api.HandleFunc("/orders/{order_id}/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/orders/{order_id}/accept", s.handleAcceptOrder).Methods("POST")
	api.HandleFunc("/orders/{order_id}/arrive", s.handleDriverArrived).Methods("POST")
	api.HandleFunc("/orders/{order_id}/cart", s.handleUpdateCart).Methods("POST")
	api.HandleFunc("/orders/{order_id}/start", s.handleStartService).Methods("POST")
	api.HandleFunc("/orders/{order_id}/end", s.handleEndService).Methods("POST")
	api.HandleFunc("/orders/{order_id}/pay", s.handlePayOrder).Methods("POST")

	api.HandleFunc("/drivers/{driver_id}/inbox", s.handleDrainInbox).Methods("GET")
	api.HandleFunc("/drivers/{driver_id}/inbox", s.handleClearInbox).Methods("DELETE")

	s.mux.HandleFunc("/internal/driver/locations", s.handleDriverLocation).Methods("POST")
	s.mux.HandleFunc("/internal/driver/locations/{driver_id}", s.handleRemoveLocation).Methods("DELETE")

	s.mux.HandleFunc("/ws/{driver_id}", s.handleWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }
