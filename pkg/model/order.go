package model

import (
	"time"

	"github.com/peter-kozarec/terminus/pkg/utility/fixed"
)

// Enumerations carry the wire tokens the terminal uses, so the conversion
// between command text and typed fields is a plain cast.

type OrderType string

const (
	OrderTypeMarket       OrderType = "MKT"
	OrderTypeLimit        OrderType = "LIMIT"
	OrderTypeStop         OrderType = "STOPMKT"
	OrderTypeStopLimit    OrderType = "STOPLMT"
	OrderTypeStopTrailing OrderType = "STOPTRAILING"
	OrderTypeStopRange    OrderType = "STOPRANGE"
	OrderTypePegMid       OrderType = "PEG MID"
	OrderTypeHidden       OrderType = "HIDDEN"
)

type OrderSide string

const (
	OrderSideBuy   OrderSide = "B"
	OrderSideSell  OrderSide = "S"
	OrderSideShort OrderSide = "SS"
)

type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusHold            OrderStatus = "Hold"
	OrderStatusSending         OrderStatus = "Sending"
	OrderStatusAccepted        OrderStatus = "Accepted"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "Executed"
	OrderStatusCancelled       OrderStatus = "Canceled"
	OrderStatusRejected        OrderStatus = "Rejected"
	OrderStatusExpired         OrderStatus = "EXPIRED"
	OrderStatusReplaced        OrderStatus = "REPLACED"
	OrderStatusTriggered       OrderStatus = "Triggered"
	OrderStatusClosed          OrderStatus = "Closed"
)

// IsTerminal reports whether no further transitions can follow this status.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusExpired:
		return true
	}
	return false
}

type TimeInForce string

const (
	TimeInForceDay = "DAY"
	TimeInForceGTC = "GTC"
	TimeInForceIOC = "IOC"
	TimeInForceFOK = "FOK"
	TimeInForceMOO = "MOO"
	TimeInForceMOC = "MOC"
)

type Route string

const (
	RouteAuto   Route = "AUTO"
	RouteNyse   Route = "NYSE"
	RouteNasdaq Route = "NASDAQ"
	RouteArca   Route = "ARCA"
	RouteBats   Route = "BATS"
	RouteIex    Route = "IEX"
	RouteEdgx   Route = "EDGX"
)

// Order is the ledger record for one terminal order. Every field after
// Token is owned by inbound order events; the client never infers fills.
type Order struct {
	Id           string      `json:"id"`
	Token        string      `json:"token,omitempty"`
	Symbol       string      `json:"symbol"`
	Side         OrderSide   `json:"side"`
	Quantity     int64       `json:"quantity"`
	Price        fixed.Point `json:"price"`
	Type         OrderType   `json:"type"`
	Status       OrderStatus `json:"status"`
	FilledQty    int64       `json:"filled_qty"`
	AvgPrice     fixed.Point `json:"avg_price"`
	RemainingQty int64       `json:"remaining_qty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// OrderRequest is the caller-facing shape of a NEWORDER command.
type OrderRequest struct {
	Symbol      string
	Side        OrderSide
	Quantity    int64
	Type        OrderType
	Price       fixed.Point
	StopPrice   fixed.Point
	Route       Route
	TimeInForce TimeInForce
}
