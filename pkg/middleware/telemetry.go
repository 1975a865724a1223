package middleware

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/terminus/pkg/terminal"
)

// Telemetry accumulates per-kind message counts and handler latency. One
// instance may decorate several handlers.
type Telemetry struct {
	logger *zap.Logger

	mu       sync.Mutex
	counts   map[terminal.Kind]uint64
	faults   uint64
	total    time.Duration
	maxDelay time.Duration
	handled  uint64
}

func NewTelemetry(logger *zap.Logger) *Telemetry {
	return &Telemetry{
		logger: logger,
		counts: make(map[terminal.Kind]uint64),
	}
}

func (t *Telemetry) WithMessage(next terminal.Handler) terminal.Handler {
	return func(msg terminal.Message) {
		start := time.Now()
		next(msg)
		elapsed := time.Since(start)

		t.mu.Lock()
		t.counts[msg.Kind]++
		t.handled++
		t.total += elapsed
		if elapsed > t.maxDelay {
			t.maxDelay = elapsed
		}
		if msg.ParseErr != "" {
			t.faults++
		}
		t.mu.Unlock()
	}
}

func (t *Telemetry) PrintStatistics() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.handled == 0 {
		t.logger.Info("telemetry: no messages handled")
		return
	}

	fields := []zap.Field{
		zap.Uint64("handled", t.handled),
		zap.Uint64("parse_faults", t.faults),
		zap.Duration("avg_handler_latency", t.total/time.Duration(t.handled)),
		zap.Duration("max_handler_latency", t.maxDelay),
	}
	for kind, count := range t.counts {
		fields = append(fields, zap.Uint64(kind.String(), count))
	}
	t.logger.Info("telemetry", fields...)
}
