package model

import (
	"time"

	"github.com/peter-kozarec/terminus/pkg/utility/fixed"
)

// ShortInfo answers GET SHORTINFO: whether a symbol may be shorted and at
// what indicative rate.
type ShortInfo struct {
	Symbol          string      `json:"symbol"`
	Shortable       bool        `json:"shortable"`
	Rate            fixed.Point `json:"rate"`
	AvailableShares int64       `json:"available_shares"`
}

// LocateInfo answers GETLOCATEINFO: shares already located for the account.
type LocateInfo struct {
	Symbol   string      `json:"symbol"`
	Located  bool        `json:"located"`
	Quantity int64       `json:"quantity"`
	Rate     fixed.Point `json:"rate"`
	LocateId string      `json:"locate_id,omitempty"`
}

// LocateQuote answers SLPRICEINQUIRE: a per-share borrow rate offer.
type LocateQuote struct {
	Symbol    string      `json:"symbol"`
	Quantity  int64       `json:"quantity"`
	Rate      fixed.Point `json:"rate"`
	Available bool        `json:"available"`
	Route     string      `json:"route,omitempty"`
	TimeStamp time.Time   `json:"ts"`
}

// LocateOrder tracks an SLNEWORDER purchase through the terminal.
type LocateOrder struct {
	LocateId string `json:"locate_id"`
	Symbol   string `json:"symbol"`
	Status   string `json:"status"`
	Details  string `json:"details,omitempty"`
	Located  bool   `json:"located"`
}

// LocateAvailability answers SLAvailQuery: shares currently borrowable.
type LocateAvailability struct {
	Account         string      `json:"account"`
	Symbol          string      `json:"symbol"`
	AvailableShares int64       `json:"available_shares"`
	Rate            fixed.Point `json:"rate"`
}

// WatchTrade is an execution print observed in watch mode.
type WatchTrade struct {
	TradeId   string      `json:"trade_id"`
	Symbol    string      `json:"symbol"`
	Side      OrderSide   `json:"side"`
	Quantity  int64       `json:"quantity"`
	Price     fixed.Point `json:"price"`
	Route     string      `json:"route,omitempty"`
	OrderId   string      `json:"order_id,omitempty"`
	TimeStamp time.Time   `json:"ts"`
}
