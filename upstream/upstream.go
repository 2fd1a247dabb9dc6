// Package upstream is the gateway's view of the model-serving backends:
// a single opaque remote-call capability. Model loading, GPU sizing and
// result semantics all live on the other side of this interface.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnavailable marks transport-level failures: the backend could not be
// reached or answered with a server error. Callers surface these as 502.
var ErrUnavailable = errors.New("upstream unavailable")

// Invoker dispatches one method call to a named backend service.
type Invoker interface {
	Invoke(ctx context.Context, service, method string, payload any) (json.RawMessage, error)
}

// Error describes a failed invocation.
type Error struct {
	Service string
	Method  string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("invoke %s.%s: %v", e.Service, e.Method, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
