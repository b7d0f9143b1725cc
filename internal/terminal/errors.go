package terminal

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds surfaced by the manager. Callers match them with errors.Is.
var (
	ErrNotFound = errors.New("session not found")
	ErrPty      = errors.New("pty error")
	ErrIO       = errors.New("pty i/o error")
	ErrTimedOut = errors.New("command timed out")
	ErrWait     = errors.New("wait failed")
)

// TimeoutError reports an execute call that outlived its deadline. The child
// has already been killed when this error is returned.
type TimeoutError struct {
	Limit   time.Duration
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command timed out after %s (limit %s)",
		e.Elapsed.Round(time.Millisecond), e.Limit)
}

// Unwrap lets errors.Is(err, ErrTimedOut) match.
func (e *TimeoutError) Unwrap() error {
	return ErrTimedOut
}

func notFound(sessionID string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
}
