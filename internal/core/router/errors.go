package router

import (
	"errors"
	"fmt"
)

var (
	// ErrRouteNotFound: no handler registered for (type, version).
	ErrRouteNotFound = errors.New("no route for event")
	// ErrMiddlewareRegistration: duplicate or unresolved middleware name.
	// Fatal at configuration time.
	ErrMiddlewareRegistration = errors.New("middleware registration error")
	// ErrMiddlewareExecution: a middleware failed or returned a falsy value.
	ErrMiddlewareExecution = errors.New("middleware execution error")
	// ErrContextCorruption: the correlation guard observed a mismatch between
	// the snapshot taken before the handler and the live correlation id.
	// Treated as fatal by the dispatch loop; it indicates a bug.
	ErrContextCorruption = errors.New("correlation context corruption")
)

// MiddlewareError reports which middleware aborted a dispatch and in which
// phase ("before" or "after").
type MiddlewareError struct {
	Name  string
	Phase string
	Err   error
}

func (e *MiddlewareError) Error() string {
	return fmt.Sprintf("middleware %q failed during %s phase: %v", e.Name, e.Phase, e.Err)
}

func (e *MiddlewareError) Unwrap() error { return e.Err }
