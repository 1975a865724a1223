// Package stream republishes the market data feed to websocket consumers.
// One hub per process; clients get JSON envelopes and are pruned when they
// cannot keep up.
package stream

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/peter-kozarec/terminus/pkg/model"
)

// Envelope is the wire shape pushed to websocket clients.
type Envelope struct {
	Type      string    `json:"type"`
	Symbol    string    `json:"symbol"`
	Data      any       `json:"data"`
	TimeStamp time.Time `json:"ts"`
}

// Feed is the callback surface of the market data cache.
type Feed interface {
	OnQuote(func(model.Quote))
	OnBook(func(model.Book))
	OnTimeSale(func(model.TimeSale))
	OnBar(func(model.Bar))
}

type Hub struct {
	logger *zap.Logger

	register   chan *client
	unregister chan *client
	broadcast  chan Envelope
	clients    map[*client]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:     logger,
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan Envelope, 1024),
		clients:    make(map[*client]struct{}),
	}
}

// Attach wires the hub behind the feed's update callbacks.
func (h *Hub) Attach(feed Feed) {
	feed.OnQuote(func(q model.Quote) {
		h.Publish(Envelope{Type: "quote", Symbol: q.Symbol, Data: q, TimeStamp: time.Now()})
	})
	feed.OnBook(func(b model.Book) {
		h.Publish(Envelope{Type: "book", Symbol: b.Symbol, Data: b, TimeStamp: time.Now()})
	})
	feed.OnTimeSale(func(ts model.TimeSale) {
		h.Publish(Envelope{Type: "time_sale", Symbol: ts.Symbol, Data: ts, TimeStamp: time.Now()})
	})
	feed.OnBar(func(bar model.Bar) {
		h.Publish(Envelope{Type: "bar", Symbol: bar.Symbol, Data: bar, TimeStamp: time.Now()})
	})
}

// Publish queues an envelope for broadcast. When the queue is full the
// envelope is dropped; stale market data has no value.
func (h *Hub) Publish(env Envelope) {
	select {
	case h.broadcast <- env:
	default:
		h.logger.Warn("broadcast queue full, dropping update",
			zap.String("type", env.Type), zap.String("symbol", env.Symbol))
	}
}

// Run owns the client registry until the context ends. All registry
// mutation happens on this goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.logger.Info("stream client connected", zap.Int("clients", len(h.clients)))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

		case env := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- env:
				default:
					// Slow consumer. Disconnect it so the hub never blocks.
					delete(h.clients, c)
					close(c.send)
					h.logger.Warn("pruned slow stream client")
				}
			}

		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades the request and hands the connection to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan Envelope, 256),
	}
	h.register <- c

	go c.writePump()
	go c.readPump()
}
