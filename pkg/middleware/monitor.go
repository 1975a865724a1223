package middleware

import (
	"go.uber.org/zap"

	"github.com/peter-kozarec/terminus/pkg/terminal"
)

type MonitorFlags uint16

const (
	MonitorNone MonitorFlags = 1 << iota
	MonitorAll
	MonitorQuotes
	MonitorDepth
	MonitorTape
	MonitorOrders
	MonitorPositions
	MonitorLocates
	MonitorDiagnostics
	MonitorFaults
)

var kindFlags = map[terminal.Kind]MonitorFlags{
	terminal.KindQuote:         MonitorQuotes,
	terminal.KindLevel2:        MonitorDepth,
	terminal.KindTimeSales:     MonitorTape,
	terminal.KindOrder:         MonitorOrders,
	terminal.KindOrderAction:   MonitorOrders,
	terminal.KindWatchOrder:    MonitorOrders,
	terminal.KindWatchTrade:    MonitorOrders,
	terminal.KindPosition:      MonitorPositions,
	terminal.KindWatchPosition: MonitorPositions,
	terminal.KindLocateReturn:  MonitorLocates,
	terminal.KindLocateOrder:   MonitorLocates,
	terminal.KindLocateAvail:   MonitorLocates,
	terminal.KindError:         MonitorDiagnostics,
	terminal.KindWarning:       MonitorDiagnostics,
	terminal.KindInfo:          MonitorDiagnostics,
}

// WithMonitor logs messages whose kind matches the flags before passing
// them on. Degraded parses log under MonitorFaults regardless of kind.
func WithMonitor(logger *zap.Logger, flags MonitorFlags) Middleware {
	return func(next terminal.Handler) terminal.Handler {
		return func(msg terminal.Message) {
			if flags&MonitorFaults != 0 && msg.ParseErr != "" {
				logger.Warn("degraded message",
					zap.Stringer("kind", msg.Kind),
					zap.String("fault", msg.ParseErr),
					zap.Strings("raw", msg.Raw))
			}
			if flags&MonitorAll != 0 || flags&kindFlags[msg.Kind] != 0 {
				logger.Info("event",
					zap.Stringer("kind", msg.Kind),
					zap.String("symbol", msg.Symbol()),
					zap.Strings("raw", msg.Raw))
			}
			next(msg)
		}
	}
}
