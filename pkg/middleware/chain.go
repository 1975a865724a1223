// Package middleware decorates message handlers registered on the dispatch
// core. Decorators compose right to left: the first one listed sees the
// message first.
package middleware

import (
	"github.com/peter-kozarec/terminus/pkg/terminal"
)

type Middleware func(terminal.Handler) terminal.Handler

// Wrap applies the decorators around the handler.
func Wrap(handler terminal.Handler, decorators ...Middleware) terminal.Handler {
	for i := len(decorators) - 1; i >= 0; i-- {
		handler = decorators[i](handler)
	}
	return handler
}
