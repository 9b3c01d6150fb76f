// Package session owns the authoritative state object per interview session.
// The store is the serialization point for the single-writer rule: every
// mutation loads a copy, computes the new state, and commits conditionally on
// the version it started from. A losing racer observes a version conflict and
// is never applied.
package session

import (
	"context"

	"github.com/spigell/interviewd/internal/interview"
)

// Store is the session persistence contract.
type Store interface {
	// Create stores a new session and stamps it with version 1.
	// interview.ErrVersionConflict is returned when the id already exists.
	Create(ctx context.Context, sess *interview.Session) error

	// Load returns a private copy of the session, or
	// interview.ErrSessionNotFound.
	Load(ctx context.Context, id string) (*interview.Session, error)

	// Commit publishes the mutated session if and only if the stored
	// version still equals expectedVersion, then advances the version.
	// interview.ErrVersionConflict is returned when another step committed
	// first.
	Commit(ctx context.Context, sess *interview.Session, expectedVersion int64) error

	// Delete removes the session. Deleting an unknown id is not an error;
	// eviction is an external retention policy and may race with itself.
	Delete(ctx context.Context, id string) error
}

// Lister is implemented by stores that can enumerate their sessions. The
// idle-timeout sweep needs it; stores without enumeration simply opt out of
// sweeping.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}
