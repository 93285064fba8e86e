package optz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInputTooLarge is wrapped by the *Error returned when the input exceeds
// the pipeline's size budget.
var ErrInputTooLarge = errors.New("input exceeds size budget")

// Error provides context about a run that did not produce a result.
// It wraps the underlying error with the path of names leading to the
// failure, the size of the input, and whether the run timed out or was
// canceled.
//
// Passes themselves never fail, so an Error always comes from the
// orchestrator: a size budget violation, an exhausted time budget, or the
// caller canceling the context.
type Error struct {
	Timestamp  time.Time
	Err        error
	Path       []Name
	InputBytes int
	Duration   time.Duration
	Timeout    bool
	Canceled   bool
}

// Error implements the error interface, providing a detailed error message.
func (e *Error) Error() string {
	path := strings.Join(e.Path, " -> ")

	if e.Timeout {
		return fmt.Sprintf("%s timed out after %v: %v", path, e.Duration, e.Err)
	}
	if e.Canceled {
		return fmt.Sprintf("%s canceled after %v: %v", path, e.Duration, e.Err)
	}
	return fmt.Sprintf("%s failed after %v: %v", path, e.Duration, e.Err)
}

// Unwrap returns the underlying error, supporting error wrapping patterns.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsTimeout returns true if the error was caused by a timeout.
func (e *Error) IsTimeout() bool {
	return e.Timeout || errors.Is(e.Err, context.DeadlineExceeded)
}

// IsCanceled returns true if the error was caused by cancellation.
func (e *Error) IsCanceled() bool {
	return e.Canceled || errors.Is(e.Err, context.Canceled)
}
