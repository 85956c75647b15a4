package station

import (
	"errors"
	"fmt"
)

var (
	// ErrFetchFailed wraps every failed state poll. Polls are retried on the
	// next tick.
	ErrFetchFailed = errors.New("state fetch failed")
	// ErrCommandFailed wraps every failed control request. Commands are not
	// retried; the store keeps its previous state.
	ErrCommandFailed = errors.New("command failed")

	ErrUnknownCell  = errors.New("unknown matrix cell")
	ErrCellDisabled = errors.New("matrix cell is disabled")
	ErrStopped      = errors.New("dispatcher stopped")
)

// StatusError is returned when the control service answers with a non-2xx
// status.
type StatusError struct {
	Op     string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: non-2xx status %d", e.Op, e.Status)
}
