package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/example/chauffeur-dispatch/internal/accept"
	"github.com/example/chauffeur-dispatch/internal/geo"
	"github.com/example/chauffeur-dispatch/internal/models"
	"github.com/example/chauffeur-dispatch/internal/orders"
)

type submitOrderRequest struct {
	CustomerID     string       `json:"customer_id"`
	StartLocation  string       `json:"start_location"`
	StartPoint     models.Coord `json:"start_point"`
	EndLocation    string       `json:"end_location"`
	EndPoint       models.Coord `json:"end_point"`
	ExpectDistance float64      `json:"expect_distance"`
	ExpectAmount   float64      `json:"expect_amount"`
	ExpectTime     float64      `json:"expect_time"`
	FavourFee      float64      `json:"favour_fee"`
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.CustomerID == "" {
		http.Error(w, "customer_id required", http.StatusBadRequest)
		return
	}
	if !geo.ValidCoord(req.StartPoint.Lon, req.StartPoint.Lat) || !geo.ValidCoord(req.EndPoint.Lon, req.EndPoint.Lat) {
		http.Error(w, "invalid coordinates", http.StatusBadRequest)
		return
	}
	if req.ExpectTime == 0 && s.Estimator != nil {
		req.ExpectTime = s.Estimator.EstimateSeconds(req.StartPoint, req.EndPoint)
	}

	o := &models.Order{
		CustomerID:     req.CustomerID,
		StartLocation:  req.StartLocation,
		StartPoint:     req.StartPoint,
		EndLocation:    req.EndLocation,
		EndPoint:       req.EndPoint,
		ExpectDistance: req.ExpectDistance,
		ExpectAmount:   req.ExpectAmount,
		ExpectTime:     req.ExpectTime,
		FavourFee:      req.FavourFee,
	}
	orderID, err := s.Orders.Submit(r.Context(), o)
	if err != nil {
		s.logger.Error("order submit failed", "error", err)
		http.Error(w, "submit failed", http.StatusInternalServerError)
		return
	}
	taskID := s.Scheduler.Schedule(models.OrderSnapshot{
		OrderID:        orderID,
		StartLocation:  o.StartLocation,
		StartPoint:     o.StartPoint,
		EndLocation:    o.EndLocation,
		EndPoint:       o.EndPoint,
		ExpectDistance: o.ExpectDistance,
		ExpectAmount:   o.ExpectAmount,
		ExpectTime:     o.ExpectTime,
		FavourFee:      o.FavourFee,
		CreateTime:     o.CreateTime,
	})
	writeJSON(w, http.StatusCreated, map[string]any{"order_id": orderID, "task_id": taskID})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["order_id"]
	o, err := s.Orders.Get(r.Context(), orderID)
	if errors.Is(err, orders.ErrNotFound) {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["order_id"]
	status, err := s.Orders.Status(r.Context(), orderID)
	if err != nil {
		http.Error(w, "status lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": int(status), "name": status.String()})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["order_id"]
	err := s.Orders.Cancel(r.Context(), orderID)
	switch {
	case errors.Is(err, orders.ErrInvalidTransition), errors.Is(err, orders.ErrConflict):
		http.Error(w, "order can no longer be cancelled", http.StatusConflict)
		return
	case err != nil:
		http.Error(w, "cancel failed", http.StatusInternalServerError)
		return
	}
	s.Scheduler.Cancel(orderID)
	w.WriteHeader(http.StatusNoContent)
}

type driverActionRequest struct {
	DriverID string `json:"driver_id"`
}

func (s *Server) handleAcceptOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["order_id"]
	var req driverActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DriverID == "" {
		http.Error(w, "driver_id required", http.StatusBadRequest)
		return
	}
	err := s.Accept.AttemptAccept(r.Context(), req.DriverID, orderID)
	if errors.Is(err, accept.ErrOrderTaken) {
		writeJSON(w, http.StatusConflict, map[string]any{"accepted": false, "reason": "order no longer available"})
		return
	}
	if err != nil {
		s.logger.Error("accept attempt failed", "order_id", orderID, "driver_id", req.DriverID, "error", err)
		http.Error(w, "accept failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true, "order_id": orderID, "driver_id": req.DriverID})
}

func (s *Server) handleDriverArrived(w http.ResponseWriter, r *http.Request) {
	s.driverTransition(w, r, s.Orders.DriverArrived)
}

func (s *Server) handleUpdateCart(w http.ResponseWriter, r *http.Request) {
	s.driverTransition(w, r, s.Orders.UpdateCart)
}

func (s *Server) handleStartService(w http.ResponseWriter, r *http.Request) {
	s.driverTransition(w, r, s.Orders.StartService)
}

func (s *Server) driverTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, orderID, driverID string) error) {
	orderID := mux.Vars(r)["order_id"]
	var req driverActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DriverID == "" {
		http.Error(w, "driver_id required", http.StatusBadRequest)
		return
	}
	if err := fn(r.Context(), orderID, req.DriverID); err != nil {
		transitionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type endServiceRequest struct {
	DriverID     string  `json:"driver_id"`
	RealDistance float64 `json:"real_distance"`
	RealAmount   float64 `json:"real_amount"`
}

func (s *Server) handleEndService(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["order_id"]
	var req endServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DriverID == "" {
		http.Error(w, "driver_id required", http.StatusBadRequest)
		return
	}
	if err := s.Orders.EndService(r.Context(), orderID, req.DriverID, req.RealDistance, req.RealAmount); err != nil {
		transitionError(w, err)
		return
	}
	// billing follows service end immediately
	if err := s.Orders.SendBill(r.Context(), orderID, req.DriverID); err != nil {
		transitionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePayOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["order_id"]
	o, err := s.Orders.Get(r.Context(), orderID)
	if errors.Is(err, orders.ErrNotFound) {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	// a retried or premature pay must never reach the payment
	// collaborator; only an unpaid order is chargeable
	if o.Status != models.StatusUnpaid {
		http.Error(w, "order is not payable", http.StatusConflict)
		return
	}
	if s.Payments == nil {
		if err := s.Orders.MarkPaid(r.Context(), orderID); err != nil {
			transitionError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	amount := o.RealAmount
	if amount == 0 {
		amount = o.ExpectAmount
	}
	pi, err := s.Payments.Hold(r.Context(), int64(amount*100), "cny", o.CustomerID)
	if err != nil {
		s.logger.Error("payment hold failed", "order_id", orderID, "error", err)
		http.Error(w, "payment failed", http.StatusBadGateway)
		return
	}
	// settle the order before capturing so a lost race releases the
	// hold instead of stranding captured funds
	if err := s.Orders.MarkPaid(r.Context(), orderID); err != nil {
		if cErr := s.Payments.Cancel(r.Context(), pi); cErr != nil {
			s.logger.Error("payment hold release failed", "order_id", orderID, "payment_intent", pi, "error", cErr)
		}
		transitionError(w, err)
		return
	}
	if err := s.Payments.Capture(r.Context(), pi); err != nil {
		// the hold stays capturable; settlement needs operator follow-up
		s.logger.Error("payment capture failed", "order_id", orderID, "payment_intent", pi, "error", err)
		http.Error(w, "payment failed", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDrainInbox(w http.ResponseWriter, r *http.Request) {
	driverID := mux.Vars(r)["driver_id"]
	notices, err := s.Inbox.DrainAll(r.Context(), driverID)
	if err != nil {
		s.logger.Error("inbox drain failed", "driver_id", driverID, "error", err)
		http.Error(w, "inbox unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, notices)
}

func (s *Server) handleClearInbox(w http.ResponseWriter, r *http.Request) {
	driverID := mux.Vars(r)["driver_id"]
	if err := s.Inbox.Clear(r.Context(), driverID); err != nil {
		s.logger.Error("inbox clear failed", "driver_id", driverID, "error", err)
		http.Error(w, "inbox unavailable", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	var loc models.DriverLocation
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if loc.DriverID == "" {
		http.Error(w, "driver_id required", http.StatusBadRequest)
		return
	}
	if !geo.ValidCoord(loc.Lon, loc.Lat) {
		http.Error(w, "invalid coordinates", http.StatusBadRequest)
		return
	}
	if err := s.Geo.Upsert(r.Context(), loc.DriverID, loc.Lon, loc.Lat); err != nil {
		s.logger.Error("geo upsert failed", "driver_id", loc.DriverID, "error", err)
		http.Error(w, "location update failed", http.StatusInternalServerError)
		return
	}
	// publish to the location stream if configured; the consumer keeps
	// replica indexes in sync
	if s.Kafka != nil {
		if err := s.Kafka.PublishLocation(loc); err != nil {
			s.logger.Warn("location publish failed", "driver_id", loc.DriverID, "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveLocation(w http.ResponseWriter, r *http.Request) {
	driverID := mux.Vars(r)["driver_id"]
	if err := s.Geo.Remove(r.Context(), driverID); err != nil {
		s.logger.Error("geo remove failed", "driver_id", driverID, "error", err)
		http.Error(w, "location remove failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	driverID := mux.Vars(r)["driver_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	s.WSReg.Add(driverID, conn)
}

func transitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orders.ErrNotFound):
		http.Error(w, "order not found", http.StatusNotFound)
	case errors.Is(err, orders.ErrInvalidTransition), errors.Is(err, orders.ErrConflict):
		http.Error(w, "illegal status transition", http.StatusConflict)
	default:
		http.Error(w, "update failed", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
