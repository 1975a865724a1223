package terminal

import (
	"bufio"
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ConnState is the protocol-level connection state.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateAuthenticating
	StateReady
	StateClosing
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	default:
		return "disconnected"
	}
}

// Handler receives every message of a subscribed kind that was not consumed
// by a pending correlated request.
type Handler func(Message)

type pendingRequest struct {
	kind      Kind
	symbol    string
	respChan  chan Message
	createdAt time.Time
}

type subscriber struct {
	ch      chan Message
	dropped atomic.Uint64
}

// connection owns the socket. One goroutine reads and dispatches lines in
// wire order, one drains writeChan. All other components reach the terminal
// through sendLine/awaitPending/addSubscriber only.
type connection struct {
	conn   net.Conn
	logger *zap.Logger

	ctx       context.Context
	ctxCancel context.CancelFunc

	writeChan chan string

	state atomic.Int32

	pendingMu sync.Mutex
	pending   map[Kind][]*pendingRequest

	subscribersMu sync.RWMutex
	subscribers   map[Kind][]*subscriber

	closeOnce sync.Once
}

func newConnection(conn net.Conn, logger *zap.Logger) *connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &connection{
		conn:        conn,
		logger:      logger,
		ctx:         ctx,
		ctxCancel:   cancel,
		writeChan:   make(chan string, 100),
		pending:     make(map[Kind][]*pendingRequest),
		subscribers: make(map[Kind][]*subscriber),
	}
}

func (c *connection) start() {
	go c.read()
	go c.write()
}

// stop is the orderly path: Closing, then teardown.
func (c *connection) stop() {
	c.setState(StateClosing)
	c.teardown()
}

// fail is the abrupt path taken on I/O errors: straight to Disconnected.
func (c *connection) fail(err error) {
	c.logger.Warn("connection failed", zap.Error(err))
	c.teardown()
}

func (c *connection) teardown() {
	c.closeOnce.Do(func() {
		c.ctxCancel()
		_ = c.conn.Close()
		c.failAllPending()
		c.setState(StateDisconnected)
	})
}

func (c *connection) setState(s ConnState) {
	old := ConnState(c.state.Swap(int32(s)))
	if old != s {
		c.logger.Debug("state change", zap.Stringer("from", old), zap.Stringer("to", s))
	}
}

func (c *connection) getState() ConnState {
	return ConnState(c.state.Load())
}

func (c *connection) read() {
	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 4096), 64*1024)

	for scanner.Scan() {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		line := scanner.Text()
		if line == "" {
			continue
		}

		msg := Parse(line)
		if msg.ParseErr != "" {
			c.logger.Warn("degraded parse",
				zap.Stringer("kind", msg.Kind),
				zap.String("fault", msg.ParseErr),
				zap.Strings("raw", msg.Raw))
		}

		c.dispatch(msg)
	}

	select {
	case <-c.ctx.Done():
	default:
		err := scanner.Err()
		if err == nil {
			err = ErrConnectionClosed
		}
		c.fail(err)
	}
}

// dispatch hands the message to exactly one consumer: the matching pending
// request when one exists, otherwise every subscriber of the kind.
func (c *connection) dispatch(msg Message) {
	if c.resolvePending(&msg) {
		return
	}

	c.subscribersMu.RLock()
	for _, sub := range c.subscribers[msg.Kind] {
		select {
		case sub.ch <- msg:
		default:
			sub.dropped.Add(1)
			c.logger.Warn("subscriber backlogged, dropping message",
				zap.Stringer("kind", msg.Kind),
				zap.Uint64("dropped", sub.dropped.Load()))
		}
	}
	c.subscribersMu.RUnlock()
}

// resolvePending completes the oldest pending request of the message's
// kind. When the message carries a symbol and an older-to-newer scan finds
// a pending entry with that exact symbol hint, that entry wins; otherwise
// resolution falls back to strict FIFO, since commands of one kind are
// answered in issue order.
func (c *connection) resolvePending(msg *Message) bool {
	c.pendingMu.Lock()

	queue := c.pending[msg.Kind]
	if len(queue) == 0 {
		c.pendingMu.Unlock()
		return false
	}

	idx := 0
	if sym := msg.Symbol(); sym != "" {
		for i, p := range queue {
			if p.symbol == sym {
				idx = i
				break
			}
		}
	}

	p := queue[idx]
	c.pending[msg.Kind] = append(queue[:idx], queue[idx+1:]...)
	c.pendingMu.Unlock()

	if p.symbol != "" {
		if sym := msg.Symbol(); sym != "" && sym != p.symbol {
			c.logger.Warn("reply symbol differs from pending request",
				zap.Stringer("kind", msg.Kind),
				zap.String("want", p.symbol),
				zap.String("got", sym),
				zap.Error(ErrProtocolViolation))
		}
	}

	p.respChan <- *msg
	return true
}

func (c *connection) registerPending(kind Kind, symbol string) *pendingRequest {
	p := &pendingRequest{
		kind:      kind,
		symbol:    symbol,
		respChan:  make(chan Message, 1),
		createdAt: time.Now(),
	}

	c.pendingMu.Lock()
	c.pending[kind] = append(c.pending[kind], p)
	c.pendingMu.Unlock()
	return p
}

// removePending purges a pending entry. It reports false when the entry was
// already resolved, in which case the reply sits in its respChan.
func (c *connection) removePending(p *pendingRequest) bool {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	queue := c.pending[p.kind]
	for i, candidate := range queue {
		if candidate == p {
			c.pending[p.kind] = append(queue[:i], queue[i+1:]...)
			return true
		}
	}
	return false
}

func (c *connection) failAllPending() {
	c.pendingMu.Lock()
	orphaned := c.pending
	c.pending = make(map[Kind][]*pendingRequest)
	c.pendingMu.Unlock()

	for _, queue := range orphaned {
		for _, p := range queue {
			close(p.respChan)
		}
	}
}

func (c *connection) write() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case line, ok := <-c.writeChan:
			if !ok {
				return
			}

			c.logger.Debug("write", zap.String("line", line))

			if _, err := c.conn.Write([]byte(line + "\r\n")); err != nil {
				c.fail(err)
				return
			}
		}
	}
}

func (c *connection) sendLine(ctx context.Context, line string) error {
	select {
	case c.writeChan <- line:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// addSubscriber registers a handler for a kind. Handlers of one kind run in
// registration order on their own goroutines; a panicking handler is logged
// and does not stop later deliveries.
func (c *connection) addSubscriber(kind Kind, cb Handler) func() {
	sub := &subscriber{ch: make(chan Message, 256)}

	c.subscribersMu.Lock()
	c.subscribers[kind] = append(c.subscribers[kind], sub)
	c.subscribersMu.Unlock()

	ctx, cancel := context.WithCancel(c.ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.ch:
				if !ok {
					return
				}
				c.invoke(kind, cb, msg)
			}
		}
	}()

	unsub := func() {
		cancel()
		c.subscribersMu.Lock()
		defer c.subscribersMu.Unlock()
		subs := c.subscribers[kind]
		for i := range subs {
			if subs[i] == sub {
				c.subscribers[kind] = append(subs[:i], subs[i+1:]...)
				close(sub.ch)
				break
			}
		}
	}

	return unsub
}

func (c *connection) invoke(kind Kind, cb Handler, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("handler panic",
				zap.Stringer("kind", kind),
				zap.Any("panic", r))
		}
	}()
	cb(msg)
}
