package terminal

import "errors"

var (
	// ErrTimeout reports a correlated wait that exceeded its deadline. The
	// pending entry is purged before the error is returned.
	ErrTimeout = errors.New("terminal: response timeout")

	// ErrConnectionClosed reports a send or wait interrupted by socket loss.
	ErrConnectionClosed = errors.New("terminal: connection closed")

	// ErrInvalidSymbol reports a caller-supplied symbol rejected before any
	// network I/O.
	ErrInvalidSymbol = errors.New("terminal: invalid symbol")

	// ErrNotReady reports a command issued outside the Ready state.
	ErrNotReady = errors.New("terminal: connection not ready")

	// ErrProtocolViolation reports a reply inconsistent with its pending
	// request. Logged as a warning-level anomaly, never fatal.
	ErrProtocolViolation = errors.New("terminal: protocol violation")
)
