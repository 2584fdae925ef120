// File: api/schemas/errors.go
package schemas

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the failure modes callers are expected to branch on.
// Components wrap these with context via fmt.Errorf("...: %w", ...), so use
// errors.Is to classify.
var (
	// ErrElementNotFound means a wait deadline passed without a match.
	// Recoverable; the scenario decides whether to retry, skip or abort.
	ErrElementNotFound = errors.New("element not found")

	// ErrActionFailed means the executor exhausted its retry budget.
	// Non-fatal to a running session by default.
	ErrActionFailed = errors.New("action failed")

	// ErrSafetyViolation means a destructive action was blocked by safety
	// checks. The action is skipped and logged; never fatal.
	ErrSafetyViolation = errors.New("safety violation")
)

// DetectionSourceError reports a failure in a detection collaborator (frame
// source or detector). These are fatal to the current session and propagate
// after capture/injector resources are released.
type DetectionSourceError struct {
	Op  string // "capture" or "detect"
	Err error
}

func (e *DetectionSourceError) Error() string {
	return fmt.Sprintf("detection source failed during %s: %v", e.Op, e.Err)
}

func (e *DetectionSourceError) Unwrap() error { return e.Err }

// ActionError carries the retry history of a failed action.
type ActionError struct {
	Kind     ActionKind
	Attempts int
	Last     error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Kind, e.Attempts, e.Last)
}

// Unwrap makes errors.Is(err, ErrActionFailed) hold for every ActionError.
func (e *ActionError) Unwrap() []error { return []error{ErrActionFailed, e.Last} }

// NotFoundError is the concrete error returned by element waits, wrapping
// ErrElementNotFound with the query and how long the locator waited.
type NotFoundError struct {
	Label  string
	Waited time.Duration
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("element %q not found after %s", e.Label, e.Waited)
}

func (e *NotFoundError) Unwrap() error { return ErrElementNotFound }

// IsRecoverable reports whether a scenario task error should be absorbed
// (logged, task rescheduled) rather than failing the whole session.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrElementNotFound) ||
		errors.Is(err, ErrActionFailed) ||
		errors.Is(err, ErrSafetyViolation)
}
