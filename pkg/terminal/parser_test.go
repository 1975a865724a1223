package terminal

import (
	"strings"
	"testing"

	"github.com/peter-kozarec/terminus/pkg/model"
)

func TestParse_Order(t *testing.T) {
	msg := Parse("%ORDER 1001 AAPL B 100 150.2500 LIMIT Accepted 0 0 100 20240102 09:31:05\r\n")

	if msg.Kind != KindOrder {
		t.Fatalf("kind = %s; want ORDER", msg.Kind)
	}
	if msg.ParseErr != "" {
		t.Fatalf("unexpected parse fault: %s", msg.ParseErr)
	}

	order := msg.Order
	if order.Id != "1001" || order.Symbol != "AAPL" || order.Side != model.OrderSideBuy {
		t.Errorf("unexpected header fields: %+v", order)
	}
	if order.Quantity != 100 || order.Price.String() != "150.2500" {
		t.Errorf("unexpected qty/price: %+v", order)
	}
	if order.Status != model.OrderStatusAccepted || order.RemainingQty != 100 {
		t.Errorf("unexpected status fields: %+v", order)
	}
	if order.UpdatedAt.IsZero() {
		t.Error("timestamp not parsed")
	}
}

func TestParse_Quote(t *testing.T) {
	msg := Parse("$Quote MSFT 420.10 420.15 420.12 1250000 300 500")

	if msg.Kind != KindQuote {
		t.Fatalf("kind = %s; want QUOTE", msg.Kind)
	}
	q := msg.Quote
	if q.Symbol != "MSFT" || q.Bid.String() != "420.10" || q.Ask.String() != "420.15" {
		t.Errorf("unexpected quote: %+v", q)
	}
	if q.Volume != 1250000 || q.BidSize != 300 || q.AskSize != 500 {
		t.Errorf("unexpected sizes: %+v", q)
	}
	if q.TimeStamp.IsZero() {
		t.Error("missing wire timestamp should fall back to parse time")
	}
}

func TestParse_Level2(t *testing.T) {
	msg := Parse("$Lv2 TSLA BID 242.50 800 ARCA")

	if msg.Kind != KindLevel2 {
		t.Fatalf("kind = %s; want LEVEL2", msg.Kind)
	}
	d := msg.Depth
	if d.Symbol != "TSLA" || d.Side != model.BookBid {
		t.Errorf("unexpected depth header: %+v", d)
	}
	if d.Entry.MakerId != "ARCA" || d.Entry.Size != 800 || d.Entry.Price.String() != "242.50" {
		t.Errorf("unexpected entry: %+v", d.Entry)
	}
}

func TestParse_Position(t *testing.T) {
	msg := Parse("%POS NVDA 200 150.00 151.00 200.00 0.67")

	if msg.Kind != KindPosition {
		t.Fatalf("kind = %s; want POSITION", msg.Kind)
	}
	p := msg.Position
	if p.Symbol != "NVDA" || p.Quantity != 200 || p.AvgCost.String() != "150.00" {
		t.Errorf("unexpected position: %+v", p)
	}
	if p.MarketValue.String() != "30200.00" {
		t.Errorf("market value = %s; want 30200.00", p.MarketValue.String())
	}
}

func TestParse_BuyingPower(t *testing.T) {
	msg := Parse("%BP 25000.00 100000.00 50000.00 25000.00")

	if msg.Kind != KindBuyingPower {
		t.Fatalf("kind = %s; want BUYING_POWER", msg.Kind)
	}
	if msg.BuyingPower.DayTrading.String() != "100000.00" {
		t.Errorf("unexpected snapshot: %+v", msg.BuyingPower)
	}
}

func TestParse_LocateMessages(t *testing.T) {
	ret := Parse("%SLRET XYZ 400 0.0060 YES ALLROUTE")
	if ret.Kind != KindLocateReturn {
		t.Fatalf("kind = %s; want LOCATE_RETURN", ret.Kind)
	}
	if ret.LocateQuote.Rate.String() != "0.0060" || !ret.LocateQuote.Available {
		t.Errorf("unexpected locate quote: %+v", ret.LocateQuote)
	}

	order := Parse("%SLOrder L-77 XYZ Accepted filled at 0.006")
	if order.Kind != KindLocateOrder || !order.LocateOrder.Located {
		t.Errorf("unexpected locate order: %+v", order.LocateOrder)
	}
	if order.LocateOrder.Details != "filled at 0.006" {
		t.Errorf("details = %q", order.LocateOrder.Details)
	}

	avail := Parse("$SLAvailQueryRet ACCT1 XYZ 1200 0.0050")
	if avail.Kind != KindLocateAvail || avail.LocateAvail.AvailableShares != 1200 {
		t.Errorf("unexpected availability: %+v", avail.LocateAvail)
	}
}

func TestParse_Diagnostics(t *testing.T) {
	tests := []struct {
		line string
		kind Kind
		text string
	}{
		{"ERROR invalid command", KindError, "invalid command"},
		{"WARNING connection unstable", KindWarning, "connection unstable"},
		{"INFO login successful", KindInfo, "login successful"},
	}

	for _, tt := range tests {
		msg := Parse(tt.line)
		if msg.Kind != tt.kind || msg.Text != tt.text {
			t.Errorf("Parse(%q) = %s %q; want %s %q", tt.line, msg.Kind, msg.Text, tt.kind, tt.text)
		}
	}
}

func TestParse_UnknownPrefix(t *testing.T) {
	msg := Parse("$NEWTHING a b c")

	if msg.Kind != KindUnknown {
		t.Fatalf("kind = %s; want UNKNOWN", msg.Kind)
	}
	if len(msg.Raw) != 4 || msg.Raw[0] != "$NEWTHING" {
		t.Errorf("raw tokens not preserved: %v", msg.Raw)
	}
}

func TestParse_MalformedNeverPanics(t *testing.T) {
	lines := []string{
		"",
		"%ORDER",
		"%ORDER 1001",
		"%POS",
		"$Quote",
		"$Quote AAPL notaprice 150 151",
		"$Lv2 TSLA SIDEWAYS 1 2 MM",
		"%BP abc",
		"$T&S",
		"%SLRET XYZ notanumber",
	}

	for _, line := range lines {
		msg := Parse(line)
		if msg.Kind == KindUnknown {
			continue
		}
		if msg.ParseErr == "" {
			t.Errorf("Parse(%q): expected parse fault marker", line)
		}
	}
}

func TestParse_BadNumericFieldKeepsRecord(t *testing.T) {
	msg := Parse("$Quote AAPL 150.00 bogus 150.05 12000")

	if msg.Kind != KindQuote {
		t.Fatalf("kind = %s; want QUOTE", msg.Kind)
	}
	if msg.ParseErr == "" {
		t.Fatal("expected parse fault for bad ask field")
	}
	if !strings.Contains(msg.ParseErr, "bogus") {
		t.Errorf("fault should name the offending token: %s", msg.ParseErr)
	}
	// Good fields survive, bad field defaults.
	if msg.Quote.Bid.String() != "150.00" || !msg.Quote.Ask.IsZero() {
		t.Errorf("unexpected quote after degraded parse: %+v", msg.Quote)
	}
	if msg.Quote.Volume != 12000 {
		t.Errorf("trailing fields should still parse: %+v", msg.Quote)
	}
}

func TestParse_WatchVariants(t *testing.T) {
	order := Parse("%IORDER 2001 AAPL B 50 149.9900 LIMIT NEW 0 0 50")
	if order.Kind != KindWatchOrder || order.Order.Symbol != "AAPL" {
		t.Errorf("watch order not classified: %+v", order)
	}

	pos := Parse("%IPOS AAPL 50 149.99 150.01")
	if pos.Kind != KindWatchPosition || pos.Position.Quantity != 50 {
		t.Errorf("watch position not classified: %+v", pos)
	}

	trade := Parse("%ITRADE T1 AAPL B 50 150.0000 ARCA 09:31:02 2001")
	if trade.Kind != KindWatchTrade || trade.WatchTrade.OrderId != "2001" {
		t.Errorf("watch trade not classified: %+v", trade)
	}
}

func TestParse_ChartBarAlias(t *testing.T) {
	for _, prefix := range []string{"$Chart", "$Bar"} {
		msg := Parse(prefix + " SPY MINUTE 500.10 500.50 499.90 500.25 80000 20240102150405")
		if msg.Kind != KindChart {
			t.Fatalf("Parse(%s ...) kind = %s; want CHART", prefix, msg.Kind)
		}
		if msg.Bar.Close.String() != "500.25" || msg.Bar.Volume != 80000 {
			t.Errorf("unexpected bar: %+v", msg.Bar)
		}
	}
}
