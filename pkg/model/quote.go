package model

import (
	"time"

	"github.com/peter-kozarec/terminus/pkg/utility/fixed"
)

type DataLevel string

const (
	DataLevel1    DataLevel = "Lv1"
	DataLevel2    DataLevel = "Lv2"
	DataLevelTape DataLevel = "T&S"
)

type ChartType string

const (
	ChartDay    ChartType = "DAY"
	ChartMinute ChartType = "MINUTE"
	ChartTick   ChartType = "TICK"
)

// Quote is a level 1 snapshot. The bid<=ask invariant is not guaranteed by
// the terminal; consumers must tolerate crossed values.
type Quote struct {
	Symbol    string      `json:"symbol"`
	Bid       fixed.Point `json:"bid"`
	Ask       fixed.Point `json:"ask"`
	Last      fixed.Point `json:"last"`
	Volume    int64       `json:"volume"`
	BidSize   int64       `json:"bid_size"`
	AskSize   int64       `json:"ask_size"`
	TimeStamp time.Time   `json:"ts"`
}

func (q Quote) Spread() fixed.Point {
	return q.Ask.Sub(q.Bid)
}

func (q Quote) Mid() fixed.Point {
	return q.Bid.Add(q.Ask).DivInt(2)
}

type BookSide string

const (
	BookBid BookSide = "BID"
	BookAsk BookSide = "ASK"
)

// BookEntry is one market maker's standing quote on one side of the book.
type BookEntry struct {
	Price     fixed.Point `json:"price"`
	Size      int64       `json:"size"`
	MakerId   string      `json:"mmid"`
	TimeStamp time.Time   `json:"ts"`
}

// Book is a presentation-ordered depth view: bids descending, asks ascending.
type Book struct {
	Symbol string      `json:"symbol"`
	Bids   []BookEntry `json:"bids"`
	Asks   []BookEntry `json:"asks"`
}

type TimeSale struct {
	Symbol    string      `json:"symbol"`
	Price     fixed.Point `json:"price"`
	Size      int64       `json:"size"`
	Condition string      `json:"condition,omitempty"`
	TimeStamp time.Time   `json:"ts"`
}

type Bar struct {
	Symbol    string      `json:"symbol"`
	Type      ChartType   `json:"type"`
	Open      fixed.Point `json:"open"`
	High      fixed.Point `json:"high"`
	Low       fixed.Point `json:"low"`
	Close     fixed.Point `json:"close"`
	Volume    int64       `json:"volume"`
	TimeStamp time.Time   `json:"ts"`
}

// LimitDownUp carries LULD price bands for a symbol.
type LimitDownUp struct {
	Symbol    string      `json:"symbol"`
	LimitDown fixed.Point `json:"limit_down"`
	LimitUp   fixed.Point `json:"limit_up"`
}
