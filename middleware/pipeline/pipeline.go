package pipeline

import "net/http"

// Handler is an HTTP handler that reports failure instead of writing it.
// Returned errors bubble out through the stages to the exception boundary,
// which owns the wire format of failures.
type Handler func(w http.ResponseWriter, r *http.Request) error

// Stage decorates a Handler. Stages stay ignorant of each other; ordering is
// decided once, by Chain.
type Stage func(next Handler) Handler

// Chain composes stages around a handler. The first listed stage is
// outermost: Chain(h, a, b) runs a, then b, then h.
func Chain(h Handler, stages ...Stage) Handler {
	for i := len(stages) - 1; i >= 0; i-- {
		h = stages[i](h)
	}
	return h
}
