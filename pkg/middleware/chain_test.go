package middleware

import (
	"testing"

	"go.uber.org/zap"

	"github.com/peter-kozarec/terminus/pkg/terminal"
)

func TestWrap_Order(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next terminal.Handler) terminal.Handler {
			return func(msg terminal.Message) {
				order = append(order, name)
				next(msg)
			}
		}
	}

	h := Wrap(func(terminal.Message) {
		order = append(order, "handler")
	}, tag("outer"), tag("inner"))

	h(terminal.Message{Kind: terminal.KindQuote})

	want := []string{"outer", "inner", "handler"}
	if len(order) != len(want) {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order = %v; want %v", order, want)
			break
		}
	}
}

func TestWithMonitor_PassesThrough(t *testing.T) {
	var seen int
	h := Wrap(func(terminal.Message) { seen++ },
		WithMonitor(zap.NewNop(), MonitorAll|MonitorFaults))

	h(terminal.Parse("$Quote AAPL 150.00 150.05 150.02 1000 1 1"))
	h(terminal.Parse("$Quote AAPL bogus"))

	if seen != 2 {
		t.Errorf("handler saw %d messages; want 2", seen)
	}
}

func TestTelemetry_Counts(t *testing.T) {
	tele := NewTelemetry(zap.NewNop())
	h := Wrap(func(terminal.Message) {}, tele.WithMessage)

	h(terminal.Parse("$Quote AAPL 150.00 150.05 150.02 1000 1 1"))
	h(terminal.Parse("$Quote AAPL 150.01 150.06 150.03 1100 1 1"))
	h(terminal.Parse("%BP abc"))

	tele.mu.Lock()
	defer tele.mu.Unlock()
	if tele.handled != 3 {
		t.Errorf("handled = %d; want 3", tele.handled)
	}
	if tele.counts[terminal.KindQuote] != 2 {
		t.Errorf("quote count = %d; want 2", tele.counts[terminal.KindQuote])
	}
	if tele.faults != 1 {
		t.Errorf("faults = %d; want 1", tele.faults)
	}
}
