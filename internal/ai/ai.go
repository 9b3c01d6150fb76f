// Package ai defines the raw model-call primitive consumed by the generation
// gateway. Providers live in subpackages; the rest of the system never talks
// to a model SDK directly.
package ai

import (
	"context"
	"errors"
	"fmt"
)

// Invoker is the single low-level model call. It sends one prompt under the
// given system instruction and returns the raw text of the response. The call
// honors ctx cancellation and deadlines; retry policy belongs to the caller.
type Invoker interface {
	Invoke(ctx context.Context, system, prompt string) (string, error)
	Model() string
}

// CallError wraps a provider failure with a retryability classification.
type CallError struct {
	Err       error
	Transient bool
}

func (e *CallError) Error() string {
	return fmt.Sprintf("model call: %v", e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Temporary reports whether the call may succeed if retried.
func (e *CallError) Temporary() bool { return e.Transient }

// IsTemporary reports whether err carries a temporary classification, either
// as a *CallError or anything else exposing Temporary() bool.
func IsTemporary(err error) bool {
	var t interface{ Temporary() bool }
	return errors.As(err, &t) && t.Temporary()
}
