package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally wrapped)
// so services and middleware can translate them into domain errors.
//
//   - ErrNotFound: record does not exist in the store
//   - ErrUnavailable: backing store or broker is unreachable
//   - ErrQueueFull: an asynchronous writer rejected work because its buffer is full
//   - ErrClosed: the component has been shut down
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
	ErrQueueFull   = errors.New("queue full")
	ErrClosed      = errors.New("closed")
)
