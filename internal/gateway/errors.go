package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies a gateway failure after all retries are exhausted.
type Kind string

const (
	// KindContractViolation means the model answered but the output never
	// matched the declared schema, even after stricter re-prompts.
	KindContractViolation Kind = "contract_violation"
	// KindTransient means the model call kept timing out or being rate
	// limited; a later attempt may succeed.
	KindTransient Kind = "transient"
	// KindFatal means the call failed in a way retrying cannot fix, such as
	// an auth or configuration problem.
	KindFatal Kind = "fatal"
)

// Error is the closed set of outcomes a gateway call can fail with. Callers
// branch on Kind to pick their fallback: a safe default, fail-open, or
// propagation.
type Error struct {
	Kind     Kind
	Schema   string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("generation %s (schema %s, attempts %d): %v", e.Kind, e.Schema, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from err, or "" when err is not a gateway
// error.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

// IsContractViolation reports whether err is a schema-contract failure.
func IsContractViolation(err error) bool { return KindOf(err) == KindContractViolation }

// IsTransient reports whether err is a retryable gateway failure.
func IsTransient(err error) bool { return KindOf(err) == KindTransient }

// IsFatal reports whether err is a non-retryable gateway failure.
func IsFatal(err error) bool { return KindOf(err) == KindFatal }
