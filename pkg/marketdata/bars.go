package marketdata

import (
	"sync"
	"time"

	"github.com/peter-kozarec/terminus/pkg/model"
)

// BarBuilder aggregates tape prints into fixed-period bars. A bar is
// emitted when the first print of the next period arrives; call Flush to
// force out whatever is under construction.
type BarBuilder struct {
	period time.Duration
	emit   func(model.Bar)

	mu      sync.Mutex
	working map[string]*model.Bar
}

// NewBarBuilder emits bars of the given period, which must divide an hour
// evenly (1m, 5m, 15m, 30m, 1h). The emit callback runs on the delivery
// goroutine of the print that closed the bar.
func NewBarBuilder(period time.Duration, emit func(model.Bar)) *BarBuilder {
	if period <= 0 || time.Hour%period != 0 {
		period = time.Minute
	}
	return &BarBuilder{
		period:  period,
		emit:    emit,
		working: make(map[string]*model.Bar),
	}
}

// OnTimeSale folds one print into the symbol's working bar. Matches the
// cache's OnTimeSale callback signature.
func (b *BarBuilder) OnTimeSale(ts model.TimeSale) {
	if ts.Symbol == "" || ts.TimeStamp.IsZero() {
		return
	}

	var closed *model.Bar

	b.mu.Lock()
	bar, ok := b.working[ts.Symbol]
	if ok && !ts.TimeStamp.Before(bar.TimeStamp.Add(b.period)) {
		closed = bar
		ok = false
	}
	if !ok {
		b.working[ts.Symbol] = &model.Bar{
			Symbol:    ts.Symbol,
			Type:      model.ChartMinute,
			Open:      ts.Price,
			High:      ts.Price,
			Low:       ts.Price,
			Close:     ts.Price,
			Volume:    ts.Size,
			TimeStamp: ts.TimeStamp.Truncate(b.period),
		}
	} else {
		if ts.Price.Gt(bar.High) {
			bar.High = ts.Price
		}
		if ts.Price.Lt(bar.Low) {
			bar.Low = ts.Price
		}
		bar.Close = ts.Price
		bar.Volume += ts.Size
	}
	b.mu.Unlock()

	if closed != nil {
		b.emit(*closed)
	}
}

// Flush emits every bar still under construction and resets the builder.
func (b *BarBuilder) Flush() {
	b.mu.Lock()
	pending := make([]model.Bar, 0, len(b.working))
	for _, bar := range b.working {
		pending = append(pending, *bar)
	}
	b.working = make(map[string]*model.Bar)
	b.mu.Unlock()

	for _, bar := range pending {
		b.emit(bar)
	}
}
