package models

import "time"

type Coord struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// OrderStatus follows the forward-only lifecycle path. Values are
// ordered so that a legal transition never decreases the code, except
// for the terminal cancel branch.
type OrderStatus int

const (
	StatusNullOrder     OrderStatus = -2
	StatusCanceled      OrderStatus = -1
	StatusWaitingAccept OrderStatus = 1
	StatusAccepted      OrderStatus = 2
	StatusDriverArrived OrderStatus = 3
	StatusCartUpdated   OrderStatus = 4
	StatusStartService  OrderStatus = 5
	StatusEndService    OrderStatus = 6
	StatusUnpaid        OrderStatus = 7
	StatusPaid          OrderStatus = 8
)

func (s OrderStatus) String() string {
	switch s {
	case StatusNullOrder:
		return "null_order"
	case StatusCanceled:
		return "canceled"
	case StatusWaitingAccept:
		return "waiting_accept"
	case StatusAccepted:
		return "accepted"
	case StatusDriverArrived:
		return "driver_arrived"
	case StatusCartUpdated:
		return "cart_updated"
	case StatusStartService:
		return "start_service"
	case StatusEndService:
		return "end_service"
	case StatusUnpaid:
		return "unpaid"
	case StatusPaid:
		return "paid"
	}
	return "unknown"
}

// allowedTransitions encodes the single forward path plus the
// cancel branch, which is only legal while still waiting.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	StatusWaitingAccept: {StatusAccepted, StatusCanceled},
	StatusAccepted:      {StatusDriverArrived},
	StatusDriverArrived: {StatusCartUpdated, StatusStartService},
	StatusCartUpdated:   {StatusStartService},
	StatusStartService:  {StatusEndService},
	StatusEndService:    {StatusUnpaid},
	StatusUnpaid:        {StatusPaid},
}

func CanTransition(from, to OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Order is the authoritative record owned by the lifecycle store.
// DriverID stays empty until exactly one driver wins acceptance.
type Order struct {
	ID             string      `json:"id"`
	CustomerID     string      `json:"customer_id"`
	Status         OrderStatus `json:"status"`
	DriverID       string      `json:"driver_id,omitempty"`
	StartLocation  string      `json:"start_location"`
	StartPoint     Coord       `json:"start_point"`
	EndLocation    string      `json:"end_location"`
	EndPoint       Coord       `json:"end_point"`
	ExpectDistance float64     `json:"expect_distance"` // km
	ExpectAmount   float64     `json:"expect_amount"`
	ExpectTime     float64     `json:"expect_time"` // seconds
	FavourFee      float64     `json:"favour_fee"`
	RealDistance   float64     `json:"real_distance,omitempty"`
	RealAmount     float64     `json:"real_amount,omitempty"`
	CreateTime     time.Time   `json:"create_time"`
	AcceptTime     time.Time   `json:"accept_time,omitempty"`
}

// OrderSnapshot carries the geo and price parameters a dispatch task
// needs for its whole lifetime. It is taken once at submission; ticks
// never re-read the live order.
type OrderSnapshot struct {
	OrderID        string    `json:"order_id"`
	StartLocation  string    `json:"start_location"`
	StartPoint     Coord     `json:"start_point"`
	EndLocation    string    `json:"end_location"`
	EndPoint       Coord     `json:"end_point"`
	ExpectDistance float64   `json:"expect_distance"`
	ExpectAmount   float64   `json:"expect_amount"`
	ExpectTime     float64   `json:"expect_time"`
	FavourFee      float64   `json:"favour_fee"`
	CreateTime     time.Time `json:"create_time"`
}

// OrderNotice is the payload fanned out to driver inboxes.
type OrderNotice struct {
	OrderID        string    `json:"order_id"`
	StartLocation  string    `json:"start_location"`
	EndLocation    string    `json:"end_location"`
	ExpectAmount   float64   `json:"expect_amount"`
	ExpectDistance float64   `json:"expect_distance"`
	ExpectTime     float64   `json:"expect_time"`
	FavourFee      float64   `json:"favour_fee"`
	Distance       float64   `json:"distance"` // km from driver to pickup
	CreateTime     time.Time `json:"create_time"`
}

// NearbyDriver is one geo radius query hit, distance in km.
type NearbyDriver struct {
	DriverID string  `json:"driver_id"`
	Distance float64 `json:"distance"`
}

// DriverPreferences bound which orders a driver is willing to see.
// Zero means unlimited.
type DriverPreferences struct {
	AcceptDistance float64 `json:"accept_distance"` // km, max pickup distance
	OrderDistance  float64 `json:"order_distance"`  // km, max order length
}

// DriverLocation is the location-stream event published to kafka and
// applied to the geo index by the consumer.
type DriverLocation struct {
	DriverID string  `json:"driver_id"`
	Lon      float64 `json:"lon"`
	Lat      float64 `json:"lat"`
}
