package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/terminus/pkg/model"
	"github.com/peter-kozarec/terminus/pkg/terminal"
)

// Conn is the slice of the dispatch core the ledger needs. *terminal.Client
// satisfies it.
type Conn interface {
	RefreshPositions(ctx context.Context) error
	GetBuyingPower(ctx context.Context) (model.BuyingPower, error)
	RegisterHandler(kind terminal.Kind, cb terminal.Handler) func()
}

// Ledger mirrors the terminal's view of the account: orders, positions and
// the last buying power snapshot. All state is event-driven; the ledger
// never infers a fill or a position change on its own.
type Ledger struct {
	conn   Conn
	logger *zap.Logger

	mu          sync.RWMutex
	orders      map[string]model.Order
	positions   map[string]model.Position
	submissions []submission
	power       model.BuyingPower
	powerSet    bool

	cbMu        sync.RWMutex
	orderCbs    []func(model.Order)
	positionCbs []func(model.Position)

	unsubs []func()
}

// submission links a client-generated token to an order the terminal has
// not yet echoed back. The wire does not carry the token, so the first
// order event matching symbol, side and quantity adopts it.
type submission struct {
	token string
	req   model.OrderRequest
	at    time.Time
}

func NewLedger(conn Conn, logger *zap.Logger) *Ledger {
	l := &Ledger{
		conn:      conn,
		logger:    logger,
		orders:    make(map[string]model.Order),
		positions: make(map[string]model.Position),
	}

	l.unsubs = append(l.unsubs,
		conn.RegisterHandler(terminal.KindOrder, l.handleOrder),
		conn.RegisterHandler(terminal.KindOrderAction, l.handleOrderAction),
		conn.RegisterHandler(terminal.KindPosition, l.handlePosition),
		conn.RegisterHandler(terminal.KindBuyingPower, l.handleBuyingPower),
		conn.RegisterHandler(terminal.KindQuote, l.handleQuote),
	)
	return l
}

// Close detaches the ledger from the dispatch core.
func (l *Ledger) Close() {
	for _, unsub := range l.unsubs {
		unsub()
	}
	l.unsubs = nil
}

// Refresh drops the position book and asks the terminal to resend it. The
// book repopulates as the position burst arrives.
func (l *Ledger) Refresh(ctx context.Context) error {
	l.mu.Lock()
	l.positions = make(map[string]model.Position)
	l.mu.Unlock()

	return l.conn.RefreshPositions(ctx)
}

// BuyingPower queries the terminal and caches the snapshot.
func (l *Ledger) BuyingPower(ctx context.Context) (model.BuyingPower, error) {
	power, err := l.conn.GetBuyingPower(ctx)
	if err != nil {
		return model.BuyingPower{}, err
	}

	l.mu.Lock()
	l.power = power
	l.powerSet = true
	l.mu.Unlock()
	return power, nil
}

// LastBuyingPower reads the cached snapshot only.
func (l *Ledger) LastBuyingPower() (model.BuyingPower, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.power, l.powerSet
}

// Submissions older than this are unmatchable; the terminal answers a
// NEWORDER within its response timeout or not at all.
const submissionMaxAge = time.Minute

// TrackSubmission records the client token for an order just sent, so the
// order event the terminal produces for it carries the token.
func (l *Ledger) TrackSubmission(token string, req model.OrderRequest) {
	if token == "" {
		return
	}
	l.mu.Lock()
	l.pruneSubmissionsLocked(time.Now())
	l.submissions = append(l.submissions, submission{token: token, req: req, at: time.Now()})
	l.mu.Unlock()
}

func (l *Ledger) pruneSubmissionsLocked(now time.Time) {
	kept := l.submissions[:0]
	for _, sub := range l.submissions {
		if now.Sub(sub.at) < submissionMaxAge {
			kept = append(kept, sub)
		}
	}
	l.submissions = kept
}

// adoptTokenLocked matches an incoming order against tracked submissions,
// oldest first.
func (l *Ledger) adoptTokenLocked(order *model.Order) {
	for i, sub := range l.submissions {
		if sub.req.Symbol == order.Symbol && sub.req.Side == order.Side && sub.req.Quantity == order.Quantity {
			order.Token = sub.token
			l.submissions = append(l.submissions[:i], l.submissions[i+1:]...)
			return
		}
	}
}

// OrderByToken finds an order by its client token.
func (l *Ledger) OrderByToken(token string) (model.Order, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, order := range l.orders {
		if order.Token == token {
			return order, true
		}
	}
	return model.Order{}, false
}

func (l *Ledger) Order(id string) (model.Order, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	order, ok := l.orders[id]
	return order, ok
}

// Orders returns every known order, oldest update first.
func (l *Ledger) Orders() []model.Order {
	l.mu.RLock()
	out := make([]model.Order, 0, len(l.orders))
	for _, order := range l.orders {
		out = append(out, order)
	}
	l.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	return out
}

// OpenOrders returns orders that can still transition.
func (l *Ledger) OpenOrders() []model.Order {
	all := l.Orders()
	out := all[:0]
	for _, order := range all {
		if !order.Status.IsTerminal() {
			out = append(out, order)
		}
	}
	return out
}

func (l *Ledger) Position(symbol string) (model.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.positions[symbol]
	return pos, ok
}

func (l *Ledger) Positions() []model.Position {
	l.mu.RLock()
	out := make([]model.Position, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, pos)
	}
	l.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

func (l *Ledger) OnOrder(cb func(model.Order)) {
	l.cbMu.Lock()
	l.orderCbs = append(l.orderCbs, cb)
	l.cbMu.Unlock()
}

func (l *Ledger) OnPosition(cb func(model.Position)) {
	l.cbMu.Lock()
	l.positionCbs = append(l.positionCbs, cb)
	l.cbMu.Unlock()
}

func (l *Ledger) handleOrder(msg terminal.Message) {
	update := msg.Order
	if update == nil || update.Id == "" {
		return
	}

	l.mu.Lock()
	current, known := l.orders[update.Id]
	if known && current.Status.IsTerminal() && !update.Status.IsTerminal() {
		// Stale event after a terminal transition. Keep the terminal state.
		l.mu.Unlock()
		l.logger.Warn("dropping stale order event",
			zap.String("order_id", update.Id),
			zap.String("current", string(current.Status)),
			zap.String("stale", string(update.Status)))
		return
	}

	next := *update
	if known {
		if next.Token == "" {
			next.Token = current.Token
		}
		next.CreatedAt = current.CreatedAt
	} else {
		if next.CreatedAt.IsZero() {
			next.CreatedAt = time.Now()
		}
		if next.Token == "" {
			l.adoptTokenLocked(&next)
		}
	}
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = time.Now()
	}
	l.orders[update.Id] = next
	l.mu.Unlock()

	l.cbMu.RLock()
	for _, cb := range l.orderCbs {
		cb(next)
	}
	l.cbMu.RUnlock()
}

func (l *Ledger) handleOrderAction(msg terminal.Message) {
	action := msg.OrderAction
	if action == nil || action.OrderId == "" {
		return
	}

	status := model.OrderStatus(action.Status)
	switch status {
	case model.OrderStatusCancelled, model.OrderStatusRejected,
		model.OrderStatusReplaced, model.OrderStatusExpired:
	default:
		// Acknowledgements without a status transition carry no ledger state.
		return
	}

	l.mu.Lock()
	order, ok := l.orders[action.OrderId]
	if !ok || order.Status.IsTerminal() {
		l.mu.Unlock()
		return
	}
	order.Status = status
	order.UpdatedAt = time.Now()
	l.orders[action.OrderId] = order
	l.mu.Unlock()

	l.cbMu.RLock()
	for _, cb := range l.orderCbs {
		cb(order)
	}
	l.cbMu.RUnlock()
}

func (l *Ledger) handlePosition(msg terminal.Message) {
	update := msg.Position
	if update == nil || update.Symbol == "" {
		return
	}

	next := *update
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = time.Now()
	}

	l.mu.Lock()
	if !next.CurrentPrice.IsZero() {
		next.RecalcPnL(next.CurrentPrice)
	}
	l.positions[next.Symbol] = next
	l.mu.Unlock()

	l.cbMu.RLock()
	for _, cb := range l.positionCbs {
		cb(next)
	}
	l.cbMu.RUnlock()
}

func (l *Ledger) handleBuyingPower(msg terminal.Message) {
	if msg.BuyingPower == nil {
		return
	}
	l.mu.Lock()
	l.power = *msg.BuyingPower
	l.powerSet = true
	l.mu.Unlock()
}

// handleQuote remarks any open position in the quoted symbol.
func (l *Ledger) handleQuote(msg terminal.Message) {
	quote := msg.Quote
	if quote == nil || quote.Symbol == "" || quote.Last.IsZero() {
		return
	}

	l.mu.Lock()
	pos, ok := l.positions[quote.Symbol]
	if !ok {
		l.mu.Unlock()
		return
	}
	pos.RecalcPnL(quote.Last)
	pos.UpdatedAt = time.Now()
	l.positions[quote.Symbol] = pos
	l.mu.Unlock()

	l.cbMu.RLock()
	for _, cb := range l.positionCbs {
		cb(pos)
	}
	l.cbMu.RUnlock()
}
