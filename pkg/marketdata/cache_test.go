package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/terminus/pkg/model"
	"github.com/peter-kozarec/terminus/pkg/terminal"
	"github.com/peter-kozarec/terminus/pkg/utility/fixed"
)

// fakeConn records subscription traffic and exposes the registered handlers
// so tests can push events straight into the cache.
type fakeConn struct {
	handlers   map[terminal.Kind]terminal.Handler
	subscribed []string
	quoteErr   error
	quote      model.Quote
	quoteCalls int
}

func newFakeConn() *fakeConn {
	return &fakeConn{handlers: make(map[terminal.Kind]terminal.Handler)}
}

func (f *fakeConn) GetQuote(context.Context, string) (model.Quote, error) {
	f.quoteCalls++
	return f.quote, f.quoteErr
}

func (f *fakeConn) GetChart(context.Context, string, model.ChartType, int) error {
	return nil
}

func (f *fakeConn) Subscribe(_ context.Context, symbol string, level model.DataLevel) error {
	f.subscribed = append(f.subscribed, symbol+"/"+string(level))
	return nil
}

func (f *fakeConn) Unsubscribe(context.Context, string, model.DataLevel) error {
	return nil
}

func (f *fakeConn) RegisterHandler(kind terminal.Kind, cb terminal.Handler) func() {
	f.handlers[kind] = cb
	return func() { delete(f.handlers, kind) }
}

func (f *fakeConn) push(t *testing.T, line string) {
	t.Helper()
	msg := terminal.Parse(line)
	cb, ok := f.handlers[msg.Kind]
	if !ok {
		t.Fatalf("no handler registered for %s", msg.Kind)
	}
	cb(msg)
}

func newTestCache(t *testing.T) (*Cache, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	cache := NewCache(conn, zap.NewNop(), 4)
	t.Cleanup(cache.Close)
	return cache, conn
}

func TestQuote_CacheHitSkipsWire(t *testing.T) {
	cache, conn := newTestCache(t)

	conn.push(t, "$Quote AAPL 150.00 150.05 150.02 12000 3 5")

	quote, err := cache.Quote(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if quote.Bid.String() != "150.00" {
		t.Errorf("unexpected quote: %+v", quote)
	}
	if conn.quoteCalls != 0 {
		t.Errorf("cache hit issued %d wire queries", conn.quoteCalls)
	}
}

func TestQuote_CacheMissQueriesAndStores(t *testing.T) {
	cache, conn := newTestCache(t)
	conn.quote = model.Quote{Symbol: "MSFT", Bid: fixed.MustParse("420.10"), Ask: fixed.MustParse("420.15")}

	quote, err := cache.Quote(context.Background(), "MSFT")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if quote.Symbol != "MSFT" {
		t.Errorf("unexpected quote: %+v", quote)
	}
	if conn.quoteCalls != 1 {
		t.Fatalf("wire queries = %d; want 1", conn.quoteCalls)
	}

	// Second read must come out of the cache.
	if _, err := cache.Quote(context.Background(), "MSFT"); err != nil {
		t.Fatalf("cached Quote: %v", err)
	}
	if conn.quoteCalls != 1 {
		t.Errorf("cached read issued another wire query")
	}
}

func TestQuote_WireFailure(t *testing.T) {
	cache, conn := newTestCache(t)
	conn.quoteErr = errors.New("no quote")

	if _, err := cache.Quote(context.Background(), "XYZ"); err == nil {
		t.Fatal("expected error on wire failure with empty cache")
	}
	if _, ok := cache.LastQuote("XYZ"); ok {
		t.Error("failed query must not populate the cache")
	}
}

func TestBook_MakerReplaceAndRemove(t *testing.T) {
	cache, conn := newTestCache(t)

	conn.push(t, "$Lv2 TSLA BID 242.50 800 ARCA")
	conn.push(t, "$Lv2 TSLA BID 242.45 500 NSDQ")
	conn.push(t, "$Lv2 TSLA ASK 242.60 300 ARCA")

	book := cache.Book("TSLA")
	if len(book.Bids) != 2 || len(book.Asks) != 1 {
		t.Fatalf("book shape = %d/%d; want 2/1", len(book.Bids), len(book.Asks))
	}
	if book.Bids[0].MakerId != "ARCA" || book.Bids[1].MakerId != "NSDQ" {
		t.Errorf("bids not descending by price: %+v", book.Bids)
	}

	// Same maker on the same side replaces in place.
	conn.push(t, "$Lv2 TSLA BID 242.55 900 ARCA")
	book = cache.Book("TSLA")
	if len(book.Bids) != 2 {
		t.Fatalf("replace grew the side: %+v", book.Bids)
	}
	if book.Bids[0].Price.String() != "242.55" || book.Bids[0].Size != 900 {
		t.Errorf("replace did not take: %+v", book.Bids[0])
	}

	// Size zero removes the maker from that side only.
	conn.push(t, "$Lv2 TSLA BID 242.55 0 ARCA")
	book = cache.Book("TSLA")
	if len(book.Bids) != 1 || book.Bids[0].MakerId != "NSDQ" {
		t.Errorf("size-zero removal failed: %+v", book.Bids)
	}
	if len(book.Asks) != 1 {
		t.Errorf("removal leaked to the ask side: %+v", book.Asks)
	}
}

func TestTimeSales_DepthEviction(t *testing.T) {
	cache, conn := newTestCache(t)

	conn.push(t, "$T&S AAPL 150.00 100 09:31:02")
	conn.push(t, "$T&S AAPL 150.01 200 09:31:03")
	conn.push(t, "$T&S AAPL 150.02 300 09:31:04")
	conn.push(t, "$T&S AAPL 150.03 400 09:31:05")
	conn.push(t, "$T&S AAPL 150.04 500 09:31:06")

	// Depth is 4: the oldest print is gone, order is oldest first.
	tape := cache.TimeSales("AAPL", 0)
	if len(tape) != 4 {
		t.Fatalf("tape length = %d; want 4", len(tape))
	}
	if tape[0].Size != 200 || tape[3].Size != 500 {
		t.Errorf("unexpected tape window: %+v", tape)
	}

	tail := cache.TimeSales("AAPL", 2)
	if len(tail) != 2 || tail[0].Size != 400 {
		t.Errorf("limited read = %+v; want last two", tail)
	}
}

func TestUnsubscribe_EvictsTransientKeepsQuote(t *testing.T) {
	cache, conn := newTestCache(t)
	ctx := context.Background()

	if err := cache.Subscribe(ctx, "NVDA", model.DataLevel2); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	conn.push(t, "$Quote NVDA 150.00 150.05 150.02 1000 1 1")
	conn.push(t, "$Lv2 NVDA BID 150.00 100 ARCA")
	conn.push(t, "$T&S NVDA 150.01 50 09:31:02")

	if err := cache.Unsubscribe(ctx, "NVDA", model.DataLevel2); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if book := cache.Book("NVDA"); len(book.Bids) != 0 {
		t.Errorf("depth not evicted: %+v", book.Bids)
	}
	if _, ok := cache.LastQuote("NVDA"); !ok {
		t.Error("last quote must survive unsubscribe")
	}
	if tape := cache.TimeSales("NVDA", 0); len(tape) == 0 {
		t.Error("tape evicted by a depth-level unsubscribe")
	}

	if err := cache.Unsubscribe(ctx, "NVDA", model.DataLevelTape); err != nil {
		t.Fatalf("tape Unsubscribe: %v", err)
	}
	if tape := cache.TimeSales("NVDA", 0); tape != nil {
		t.Errorf("tape not evicted: %+v", tape)
	}

	// Idempotent: repeating the unsubscribe is not an error.
	if err := cache.Unsubscribe(ctx, "NVDA", model.DataLevel2); err != nil {
		t.Errorf("repeated Unsubscribe: %v", err)
	}
}

func TestCallbacks(t *testing.T) {
	cache, conn := newTestCache(t)

	var quotes []model.Quote
	var books []model.Book
	var prints []model.TimeSale
	cache.OnQuote(func(q model.Quote) { quotes = append(quotes, q) })
	cache.OnBook(func(b model.Book) { books = append(books, b) })
	cache.OnTimeSale(func(ts model.TimeSale) { prints = append(prints, ts) })

	conn.push(t, "$Quote AAPL 150.00 150.05 150.02 1000 1 1")
	conn.push(t, "$Lv2 AAPL ASK 150.05 200 ARCA")
	conn.push(t, "$T&S AAPL 150.02 100 09:31:02")

	if len(quotes) != 1 || quotes[0].Symbol != "AAPL" {
		t.Errorf("quote callback: %+v", quotes)
	}
	if len(books) != 1 || len(books[0].Asks) != 1 {
		t.Errorf("book callback: %+v", books)
	}
	if len(prints) != 1 || prints[0].Size != 100 {
		t.Errorf("time sale callback: %+v", prints)
	}
}

func TestChart_CollectsBurst(t *testing.T) {
	cache, conn := newTestCache(t)

	conn.push(t, "$Chart SPY MINUTE 500.10 500.50 499.90 500.25 80000 20240102150405")
	conn.push(t, "$Chart SPY MINUTE 500.25 500.60 500.20 500.55 60000 20240102150505")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	bars, err := cache.Chart(ctx, "SPY", model.ChartMinute, 2)
	if err != nil {
		t.Fatalf("Chart: %v", err)
	}
	if len(bars) != 2 || bars[1].Close.String() != "500.55" {
		t.Errorf("unexpected bars: %+v", bars)
	}
}
