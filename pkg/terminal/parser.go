package terminal

import (
	"strconv"
	"strings"
	"time"

	"github.com/peter-kozarec/terminus/pkg/model"
	"github.com/peter-kozarec/terminus/pkg/utility/fixed"
)

// Parse classifies one raw protocol line into a Message. It never panics
// and never discards a line: malformed fields degrade to defaults with
// ParseErr set, unknown prefixes come back as KindUnknown with the raw
// tokens preserved.
func Parse(line string) Message {
	line = strings.TrimRight(line, "\r\n")
	tokens := strings.Fields(line)

	msg := Message{Kind: KindUnknown, Raw: tokens, TimeStamp: time.Now()}
	if len(tokens) == 0 {
		return msg
	}

	extract, ok := extractors[tokens[0]]
	if !ok {
		switch {
		case strings.HasPrefix(line, prefixError):
			msg.Kind = KindError
			msg.Text = strings.TrimSpace(strings.TrimPrefix(line, prefixError))
		case strings.HasPrefix(line, prefixWarning):
			msg.Kind = KindWarning
			msg.Text = strings.TrimSpace(strings.TrimPrefix(line, prefixWarning))
		case strings.HasPrefix(line, prefixInfo):
			msg.Kind = KindInfo
			msg.Text = strings.TrimSpace(strings.TrimPrefix(line, prefixInfo))
		}
		return msg
	}

	extract(tokens[1:], &msg)
	return msg
}

type extractor func(parts []string, msg *Message)

var extractors = map[string]extractor{
	prefixOrder:        extractOrder,
	prefixOrderAction:  extractOrderAction,
	prefixPosition:     extractPosition,
	prefixBuyingPower:  extractBuyingPower,
	prefixShortInfo:    extractShortInfo,
	prefixLocateInfo:   extractLocateInfo,
	prefixLocateReturn: extractLocateReturn,
	prefixLocateOrder:  extractLocateOrder,
	prefixWatchOrder:   extractWatchOrder,
	prefixWatchPos:     extractWatchPosition,
	prefixWatchTrade:   extractWatchTrade,
	prefixQuote:        extractQuote,
	prefixLevel2:       extractLevel2,
	prefixTimeSales:    extractTimeSales,
	prefixChart:        extractChart,
	prefixBar:          extractChart,
	prefixLimitDownUp:  extractLimitDownUp,
	prefixLocateAvail:  extractLocateAvail,
}

// fieldReader walks positional whitespace-split fields. Missing trailing
// fields default silently; a token that fails numeric conversion defaults
// too but records the first such fault.
type fieldReader struct {
	parts []string
	fault string
}

func (f *fieldReader) has(idx int) bool {
	return idx < len(f.parts)
}

func (f *fieldReader) str(idx int) string {
	if !f.has(idx) {
		return ""
	}
	return f.parts[idx]
}

func (f *fieldReader) upper(idx int) string {
	return strings.ToUpper(f.str(idx))
}

func (f *fieldReader) rest(idx int) string {
	if !f.has(idx) {
		return ""
	}
	return strings.Join(f.parts[idx:], " ")
}

func (f *fieldReader) int64At(idx int) int64 {
	if !f.has(idx) {
		return 0
	}
	v, err := strconv.ParseInt(f.parts[idx], 10, 64)
	if err != nil {
		f.recordFault("bad integer field " + strconv.Itoa(idx) + ": " + f.parts[idx])
		return 0
	}
	return v
}

func (f *fieldReader) pointAt(idx int) fixed.Point {
	if !f.has(idx) {
		return fixed.Zero
	}
	v, ok := fixed.Parse(f.parts[idx])
	if !ok {
		f.recordFault("bad decimal field " + strconv.Itoa(idx) + ": " + f.parts[idx])
		return fixed.Zero
	}
	return v
}

func (f *fieldReader) yesAt(idx int) bool {
	return f.upper(idx) == "YES"
}

// timeAt joins up to n tokens starting at idx and tries the terminal's
// known timestamp layouts.
func (f *fieldReader) timeAt(idx, n int) time.Time {
	if !f.has(idx) {
		return time.Time{}
	}
	end := idx + n
	if end > len(f.parts) {
		end = len(f.parts)
	}
	return parseTimestamp(strings.Join(f.parts[idx:end], " "))
}

func (f *fieldReader) recordFault(fault string) {
	if f.fault == "" {
		f.fault = fault
	}
}

// require records a fault when the line is shorter than the given minimum
// field count. Optional trailing fields stay silent.
func (f *fieldReader) require(n int) {
	if len(f.parts) < n {
		f.recordFault("truncated line: want at least " + strconv.Itoa(n) + " fields, have " + strconv.Itoa(len(f.parts)))
	}
}

var timestampLayouts = []string{
	"20060102 15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006 15:04:05",
	"20060102150405",
	"15:04:05",
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// %ORDER id symbol side qty price type status filled avgprice remaining date time
func extractOrder(parts []string, msg *Message) {
	f := fieldReader{parts: parts}
	f.require(7)

	order := &model.Order{
		Id:           f.str(0),
		Symbol:       f.upper(1),
		Side:         model.OrderSide(f.str(2)),
		Quantity:     f.int64At(3),
		Price:        f.pointAt(4),
		Type:         model.OrderType(f.str(5)),
		Status:       model.OrderStatus(f.str(6)),
		FilledQty:    f.int64At(7),
		AvgPrice:     f.pointAt(8),
		RemainingQty: f.int64At(9),
		UpdatedAt:    f.timeAt(10, 2),
	}

	msg.Kind = KindOrder
	msg.Order = order
	msg.ParseErr = f.fault
}

// %OrderAct id action status details...
func extractOrderAction(parts []string, msg *Message) {
	f := fieldReader{parts: parts}
	f.require(2)

	msg.Kind = KindOrderAction
	msg.OrderAction = &OrderAction{
		OrderId: f.str(0),
		Action:  f.str(1),
		Status:  f.str(2),
		Details: f.rest(3),
	}
	msg.ParseErr = f.fault
}

// %POS symbol qty avgcost currentprice pnl pnlpercent
func extractPosition(parts []string, msg *Message) {
	f := fieldReader{parts: parts}
	f.require(3)

	pos := &model.Position{
		Symbol:        f.upper(0),
		Quantity:      f.int64At(1),
		AvgCost:       f.pointAt(2),
		CurrentPrice:  f.pointAt(3),
		UnrealizedPnL: f.pointAt(4),
		PnLPercent:    f.pointAt(5),
	}
	pos.MarketValue = pos.CurrentPrice.MulInt64(pos.Quantity)

	msg.Kind = KindPosition
	msg.Position = pos
	msg.ParseErr = f.fault
}

// $Quote symbol bid ask last volume bidsize asksize date time
func extractQuote(parts []string, msg *Message) {
	f := fieldReader{parts: parts}
	f.require(4)

	quote := &model.Quote{
		Symbol:    f.upper(0),
		Bid:       f.pointAt(1),
		Ask:       f.pointAt(2),
		Last:      f.pointAt(3),
		Volume:    f.int64At(4),
		BidSize:   f.int64At(5),
		AskSize:   f.int64At(6),
		TimeStamp: f.timeAt(7, 2),
	}
	if quote.TimeStamp.IsZero() {
		quote.TimeStamp = msg.TimeStamp
	}

	msg.Kind = KindQuote
	msg.Quote = quote
	msg.ParseErr = f.fault
}

// $Lv2 symbol side price size mmid date time
func extractLevel2(parts []string, msg *Message) {
	f := fieldReader{parts: parts}
	f.require(5)

	side := model.BookSide(f.upper(1))
	if side != model.BookBid && side != model.BookAsk {
		f.recordFault("unknown book side: " + f.str(1))
	}

	ts := f.timeAt(5, 2)
	if ts.IsZero() {
		ts = msg.TimeStamp
	}

	msg.Kind = KindLevel2
	msg.Depth = &DepthUpdate{
		Symbol: f.upper(0),
		Side:   side,
		Entry: model.BookEntry{
			Price:     f.pointAt(2),
			Size:      f.int64At(3),
			MakerId:   f.str(4),
			TimeStamp: ts,
		},
	}
	msg.ParseErr = f.fault
}

// $T&S symbol price size time condition
func extractTimeSales(parts []string, msg *Message) {
	f := fieldReader{parts: parts}
	f.require(3)

	ts := f.timeAt(3, 1)
	if ts.IsZero() {
		ts = msg.TimeStamp
	}

	msg.Kind = KindTimeSales
	msg.TimeSale = &model.TimeSale{
		Symbol:    f.upper(0),
		Price:     f.pointAt(1),
		Size:      f.int64At(2),
		TimeStamp: ts,
		Condition: f.str(4),
	}
	msg.ParseErr = f.fault
}

// $Chart symbol type open high low close volume time
func extractChart(parts []string, msg *Message) {
	f := fieldReader{parts: parts}
	f.require(7)

	msg.Kind = KindChart
	msg.Bar = &model.Bar{
		Symbol:    f.upper(0),
		Type:      model.ChartType(f.upper(1)),
		Open:      f.pointAt(2),
		High:      f.pointAt(3),
		Low:       f.pointAt(4),
		Close:     f.pointAt(5),
		Volume:    f.int64At(6),
		TimeStamp: f.timeAt(7, 2),
	}
	msg.ParseErr = f.fault
}

// %BP buyingpower daytradingbp overnightbp cash
func extractBuyingPower(parts []string, msg *Message) {
	f := fieldReader{parts: parts}
	f.require(1)

	msg.Kind = KindBuyingPower
	msg.BuyingPower = &model.BuyingPower{
		BuyingPower: f.pointAt(0),
		DayTrading:  f.pointAt(1),
		Overnight:   f.pointAt(2),
		Cash:        f.pointAt(3),
		TimeStamp:   msg.TimeStamp,
	}
	msg.ParseErr = f.fault
}

// %SHORTINFO symbol shortable rate availableshares
func extractShortInfo(parts []string, msg *Message) {
	f := fieldReader{parts: parts}
	f.require(2)

	msg.Kind = KindShortInfo
	msg.ShortInfo = &model.ShortInfo{
		Symbol:          f.upper(0),
		Shortable:       f.yesAt(1),
		Rate:            f.pointAt(2),
		AvailableShares: f.int64At(3),
	}
	msg.ParseErr = f.fault
}

// %LOCATEINFO symbol located qty rate locateid
func extractLocateInfo(parts []string, msg *Message) {
	f := fieldReader{parts: parts}
	f.require(2)

	msg.Kind = KindLocateInfo
	msg.LocateInfo = &model.LocateInfo{
		Symbol:   f.upper(0),
		Located:  f.yesAt(1),
		Quantity: f.int64At(2),
		Rate:     f.pointAt(3),
		LocateId: f.str(4),
	}
	msg.ParseErr = f.fault
}

// %SLRET symbol qty rate available route
func extractLocateReturn(parts []string, msg *Message) {
	f := fieldReader{parts: parts}
	f.require(3)

	msg.Kind = KindLocateReturn
	msg.LocateQuote = &model.LocateQuote{
		Symbol:    f.upper(0),
		Quantity:  f.int64At(1),
		Rate:      f.pointAt(2),
		Available: f.yesAt(3),
		Route:     f.str(4),
		TimeStamp: msg.TimeStamp,
	}
	msg.ParseErr = f.fault
}

// %SLOrder locateid symbol status details...
func extractLocateOrder(parts []string, msg *Message) {
	f := fieldReader{parts: parts}
	f.require(3)

	status := f.str(2)
	msg.Kind = KindLocateOrder
	msg.LocateOrder = &model.LocateOrder{
		LocateId: f.str(0),
		Symbol:   f.upper(1),
		Status:   status,
		Details:  f.rest(3),
		Located:  strings.EqualFold(status, "ACCEPTED"),
	}
	msg.ParseErr = f.fault
}

// $SLAvailQueryRet account symbol availableshares rate
func extractLocateAvail(parts []string, msg *Message) {
	f := fieldReader{parts: parts}
	f.require(3)

	msg.Kind = KindLocateAvail
	msg.LocateAvail = &model.LocateAvailability{
		Account:         f.str(0),
		Symbol:          f.upper(1),
		AvailableShares: f.int64At(2),
		Rate:            f.pointAt(3),
	}
	msg.ParseErr = f.fault
}

// $LDLU symbol limitdown limitup
func extractLimitDownUp(parts []string, msg *Message) {
	f := fieldReader{parts: parts}
	f.require(3)

	msg.Kind = KindLimitDownUp
	msg.LimitDownUp = &model.LimitDownUp{
		Symbol:    f.upper(0),
		LimitDown: f.pointAt(1),
		LimitUp:   f.pointAt(2),
	}
	msg.ParseErr = f.fault
}

// Watch-mode variants share the regular layouts.

func extractWatchOrder(parts []string, msg *Message) {
	extractOrder(parts, msg)
	msg.Kind = KindWatchOrder
}

func extractWatchPosition(parts []string, msg *Message) {
	extractPosition(parts, msg)
	msg.Kind = KindWatchPosition
}

// %ITRADE id symbol side qty price route time orderid
func extractWatchTrade(parts []string, msg *Message) {
	f := fieldReader{parts: parts}
	f.require(5)

	ts := f.timeAt(6, 1)
	if ts.IsZero() {
		ts = msg.TimeStamp
	}

	msg.Kind = KindWatchTrade
	msg.WatchTrade = &model.WatchTrade{
		TradeId:   f.str(0),
		Symbol:    f.upper(1),
		Side:      model.OrderSide(f.str(2)),
		Quantity:  f.int64At(3),
		Price:     f.pointAt(4),
		Route:     f.str(5),
		TimeStamp: ts,
		OrderId:   f.str(7),
	}
	msg.ParseErr = f.fault
}
