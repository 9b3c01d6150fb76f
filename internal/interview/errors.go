package interview

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned for an unknown session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrVersionConflict is returned when a commit raced with another step
	// for the same session. The caller must reload and resubmit; the losing
	// step is never applied.
	ErrVersionConflict = errors.New("session version conflict: stale request, retry with latest state")
)

// InvalidTransitionError reports a client event that is inconsistent with the
// session's current stage. The session is left untouched.
type InvalidTransitionError struct {
	Stage Stage
	Event string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: event %q is not accepted in stage %q", e.Event, e.Stage)
}

// IsInvalidTransition reports whether err is an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var ite *InvalidTransitionError
	return errors.As(err, &ite)
}
