package marketdata

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/terminus/pkg/model"
	"github.com/peter-kozarec/terminus/pkg/terminal"
	"github.com/peter-kozarec/terminus/pkg/utility/circular"
)

const (
	DefaultTapeDepth = 1000
	defaultChartWait = time.Second
)

// Conn is the slice of the dispatch core the cache needs. *terminal.Client
// satisfies it.
type Conn interface {
	GetQuote(ctx context.Context, symbol string) (model.Quote, error)
	GetChart(ctx context.Context, symbol string, chartType model.ChartType, bars int) error
	Subscribe(ctx context.Context, symbol string, level model.DataLevel) error
	Unsubscribe(ctx context.Context, symbol string, level model.DataLevel) error
	RegisterHandler(kind terminal.Kind, cb terminal.Handler) func()
}

type bookState struct {
	bids map[string]model.BookEntry
	asks map[string]model.BookEntry
}

// Cache holds per-symbol market state. Mutation happens only on the
// dispatch core's delivery path; readers get copies, never references.
type Cache struct {
	conn   Conn
	logger *zap.Logger

	tapeDepth uint

	mu     sync.RWMutex
	quotes map[string]model.Quote
	books  map[string]*bookState
	tapes  map[string]*circular.Buffer[model.TimeSale]
	charts map[string]map[model.ChartType][]model.Bar
	subs   map[model.DataLevel]map[string]struct{}

	cbMu     sync.RWMutex
	quoteCbs []func(model.Quote)
	bookCbs  []func(model.Book)
	tapeCbs  []func(model.TimeSale)
	barCbs   []func(model.Bar)

	unsubs []func()
}

func NewCache(conn Conn, logger *zap.Logger, tapeDepth uint) *Cache {
	if tapeDepth == 0 {
		tapeDepth = DefaultTapeDepth
	}

	c := &Cache{
		conn:      conn,
		logger:    logger,
		tapeDepth: tapeDepth,
		quotes:    make(map[string]model.Quote),
		books:     make(map[string]*bookState),
		tapes:     make(map[string]*circular.Buffer[model.TimeSale]),
		charts:    make(map[string]map[model.ChartType][]model.Bar),
		subs: map[model.DataLevel]map[string]struct{}{
			model.DataLevel1:    {},
			model.DataLevel2:    {},
			model.DataLevelTape: {},
		},
	}

	c.unsubs = append(c.unsubs,
		conn.RegisterHandler(terminal.KindQuote, c.handleQuote),
		conn.RegisterHandler(terminal.KindLevel2, c.handleLevel2),
		conn.RegisterHandler(terminal.KindTimeSales, c.handleTimeSale),
		conn.RegisterHandler(terminal.KindChart, c.handleChart),
	)
	return c
}

// Close detaches the cache from the dispatch core. Cached state stays
// readable.
func (c *Cache) Close() {
	for _, unsub := range c.unsubs {
		unsub()
	}
	c.unsubs = nil
}

func (c *Cache) Subscribe(ctx context.Context, symbol string, level model.DataLevel) error {
	symbol = normalize(symbol)

	if err := c.conn.Subscribe(ctx, symbol, level); err != nil {
		return err
	}

	c.mu.Lock()
	c.subs[level][symbol] = struct{}{}
	c.mu.Unlock()

	c.logger.Info("subscribed", zap.String("symbol", symbol), zap.String("level", string(level)))
	return nil
}

// Unsubscribe is idempotent. It evicts the symbol's transient depth and
// tape state but keeps the last known quote for last-price reads.
func (c *Cache) Unsubscribe(ctx context.Context, symbol string, level model.DataLevel) error {
	symbol = normalize(symbol)

	if err := c.conn.Unsubscribe(ctx, symbol, level); err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.subs[level], symbol)
	switch level {
	case model.DataLevel2:
		delete(c.books, symbol)
	case model.DataLevelTape:
		delete(c.tapes, symbol)
	}
	c.mu.Unlock()

	c.logger.Info("unsubscribed", zap.String("symbol", symbol), zap.String("level", string(level)))
	return nil
}

// Quote serves from cache when possible and falls back to a correlated
// one-shot query, caching the result.
func (c *Cache) Quote(ctx context.Context, symbol string) (model.Quote, error) {
	symbol = normalize(symbol)

	c.mu.RLock()
	quote, ok := c.quotes[symbol]
	c.mu.RUnlock()
	if ok {
		return quote, nil
	}

	quote, err := c.conn.GetQuote(ctx, symbol)
	if err != nil {
		return model.Quote{}, err
	}

	c.mu.Lock()
	c.quotes[symbol] = quote
	c.mu.Unlock()
	return quote, nil
}

// LastQuote reads the cache only.
func (c *Cache) LastQuote(symbol string) (model.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	quote, ok := c.quotes[normalize(symbol)]
	return quote, ok
}

// Book returns the presentation-ordered depth view: bids descending by
// price, asks ascending. The result is a copy.
func (c *Cache) Book(symbol string) model.Book {
	symbol = normalize(symbol)
	book := model.Book{Symbol: symbol}

	c.mu.RLock()
	state, ok := c.books[symbol]
	if ok {
		book.Bids = make([]model.BookEntry, 0, len(state.bids))
		for _, e := range state.bids {
			book.Bids = append(book.Bids, e)
		}
		book.Asks = make([]model.BookEntry, 0, len(state.asks))
		for _, e := range state.asks {
			book.Asks = append(book.Asks, e)
		}
	}
	c.mu.RUnlock()

	sort.SliceStable(book.Bids, func(i, j int) bool {
		return book.Bids[i].Price.Gt(book.Bids[j].Price)
	})
	sort.SliceStable(book.Asks, func(i, j int) bool {
		return book.Asks[i].Price.Lt(book.Asks[j].Price)
	})
	return book
}

// TimeSales returns up to limit recent prints, oldest first.
func (c *Cache) TimeSales(symbol string, limit uint) []model.TimeSale {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tape, ok := c.tapes[normalize(symbol)]
	if !ok {
		return nil
	}
	if limit == 0 {
		limit = c.tapeDepth
	}
	return tape.Tail(limit)
}

// Chart requests historical bars and returns what accumulated. The
// terminal streams $Chart lines with no end marker, so the wait is a
// bounded settle, not a correlated reply.
func (c *Cache) Chart(ctx context.Context, symbol string, chartType model.ChartType, bars int) ([]model.Bar, error) {
	symbol = normalize(symbol)

	if err := c.conn.GetChart(ctx, symbol, chartType, bars); err != nil {
		return nil, err
	}

	timer := time.NewTimer(defaultChartWait)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	cached := c.charts[symbol][chartType]
	out := make([]model.Bar, len(cached))
	copy(out, cached)
	return out, nil
}

func (c *Cache) Subscriptions() map[model.DataLevel][]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[model.DataLevel][]string, len(c.subs))
	for level, set := range c.subs {
		symbols := make([]string, 0, len(set))
		for s := range set {
			symbols = append(symbols, s)
		}
		sort.Strings(symbols)
		out[level] = symbols
	}
	return out
}

func (c *Cache) OnQuote(cb func(model.Quote)) {
	c.cbMu.Lock()
	c.quoteCbs = append(c.quoteCbs, cb)
	c.cbMu.Unlock()
}

func (c *Cache) OnBook(cb func(model.Book)) {
	c.cbMu.Lock()
	c.bookCbs = append(c.bookCbs, cb)
	c.cbMu.Unlock()
}

func (c *Cache) OnTimeSale(cb func(model.TimeSale)) {
	c.cbMu.Lock()
	c.tapeCbs = append(c.tapeCbs, cb)
	c.cbMu.Unlock()
}

func (c *Cache) OnBar(cb func(model.Bar)) {
	c.cbMu.Lock()
	c.barCbs = append(c.barCbs, cb)
	c.cbMu.Unlock()
}

func (c *Cache) handleQuote(msg terminal.Message) {
	quote := msg.Quote
	if quote == nil || quote.Symbol == "" {
		return
	}

	c.mu.Lock()
	c.quotes[quote.Symbol] = *quote
	c.mu.Unlock()

	c.cbMu.RLock()
	for _, cb := range c.quoteCbs {
		cb(*quote)
	}
	c.cbMu.RUnlock()
}

func (c *Cache) handleLevel2(msg terminal.Message) {
	depth := msg.Depth
	if depth == nil || depth.Symbol == "" {
		return
	}
	if depth.Side != model.BookBid && depth.Side != model.BookAsk {
		return
	}

	c.mu.Lock()
	state, ok := c.books[depth.Symbol]
	if !ok {
		state = &bookState{
			bids: make(map[string]model.BookEntry),
			asks: make(map[string]model.BookEntry),
		}
		c.books[depth.Symbol] = state
	}

	side := state.bids
	if depth.Side == model.BookAsk {
		side = state.asks
	}

	// One entry per maker per side: size zero removes, positive replaces.
	if depth.Entry.Size <= 0 {
		delete(side, depth.Entry.MakerId)
	} else {
		side[depth.Entry.MakerId] = depth.Entry
	}
	c.mu.Unlock()

	c.cbMu.RLock()
	hasBookCbs := len(c.bookCbs) > 0
	c.cbMu.RUnlock()
	if !hasBookCbs {
		return
	}

	book := c.Book(depth.Symbol)
	c.cbMu.RLock()
	for _, cb := range c.bookCbs {
		cb(book)
	}
	c.cbMu.RUnlock()
}

func (c *Cache) handleTimeSale(msg terminal.Message) {
	ts := msg.TimeSale
	if ts == nil || ts.Symbol == "" {
		return
	}

	c.mu.Lock()
	tape, ok := c.tapes[ts.Symbol]
	if !ok {
		tape = circular.NewBuffer[model.TimeSale](c.tapeDepth)
		c.tapes[ts.Symbol] = tape
	}
	tape.Push(*ts)
	c.mu.Unlock()

	c.cbMu.RLock()
	for _, cb := range c.tapeCbs {
		cb(*ts)
	}
	c.cbMu.RUnlock()
}

func (c *Cache) handleChart(msg terminal.Message) {
	bar := msg.Bar
	if bar == nil || bar.Symbol == "" {
		return
	}

	c.mu.Lock()
	byType, ok := c.charts[bar.Symbol]
	if !ok {
		byType = make(map[model.ChartType][]model.Bar)
		c.charts[bar.Symbol] = byType
	}
	byType[bar.Type] = append(byType[bar.Type], *bar)
	c.mu.Unlock()

	c.cbMu.RLock()
	for _, cb := range c.barCbs {
		cb(*bar)
	}
	c.cbMu.RUnlock()
}

func normalize(symbol string) string {
	out := make([]byte, len(symbol))
	for i := 0; i < len(symbol); i++ {
		ch := symbol[i]
		if ch >= 'a' && ch <= 'z' {
			ch -= 'a' - 'A'
		}
		out[i] = ch
	}
	return string(out)
}
