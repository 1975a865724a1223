package terminal

import (
	"time"

	"github.com/peter-kozarec/terminus/pkg/model"
)

// OrderAction reports the outcome of an order-control command (cancel,
// replace) for an order already known to the terminal.
type OrderAction struct {
	OrderId string
	Action  string
	Status  string
	Details string
}

// DepthUpdate is a single market-maker entry change on one side of a
// symbol's book. Size zero removes the maker's entry.
type DepthUpdate struct {
	Symbol string
	Side   model.BookSide
	Entry  model.BookEntry
}

// Message is the tagged union produced by Parse. Exactly one payload
// pointer matching Kind is set; ParseErr carries any field-level parse
// fault without invalidating the record.
type Message struct {
	Kind      Kind
	Raw       []string
	ParseErr  string
	TimeStamp time.Time

	Order        *model.Order
	OrderAction  *OrderAction
	Position     *model.Position
	Quote        *model.Quote
	Depth        *DepthUpdate
	TimeSale     *model.TimeSale
	Bar          *model.Bar
	BuyingPower  *model.BuyingPower
	ShortInfo    *model.ShortInfo
	LocateInfo   *model.LocateInfo
	LocateQuote  *model.LocateQuote
	LocateOrder  *model.LocateOrder
	LocateAvail  *model.LocateAvailability
	LimitDownUp  *model.LimitDownUp
	WatchTrade   *model.WatchTrade
	Text         string
}

// Symbol returns the symbol the message refers to, or "" when the kind has
// no symbol field. Used for best-effort correlation of pending requests.
func (m *Message) Symbol() string {
	switch {
	case m.Order != nil:
		return m.Order.Symbol
	case m.Position != nil:
		return m.Position.Symbol
	case m.Quote != nil:
		return m.Quote.Symbol
	case m.Depth != nil:
		return m.Depth.Symbol
	case m.TimeSale != nil:
		return m.TimeSale.Symbol
	case m.Bar != nil:
		return m.Bar.Symbol
	case m.ShortInfo != nil:
		return m.ShortInfo.Symbol
	case m.LocateInfo != nil:
		return m.LocateInfo.Symbol
	case m.LocateQuote != nil:
		return m.LocateQuote.Symbol
	case m.LocateOrder != nil:
		return m.LocateOrder.Symbol
	case m.LocateAvail != nil:
		return m.LocateAvail.Symbol
	case m.LimitDownUp != nil:
		return m.LimitDownUp.Symbol
	case m.WatchTrade != nil:
		return m.WatchTrade.Symbol
	}
	return ""
}
