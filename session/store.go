// Package session defines the server-side store that tracks the single
// currently-valid refresh token per identity, keyed by the identity's
// session key.
package session

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// KeyPrefix namespaces session records when the backing store is shared with
// other subsystems. It is part of the persisted-state contract.
const KeyPrefix = "refresh_token:"

var (
	// ErrNotFound is returned by Get when no live record exists for the key.
	ErrNotFound = errors.New("session record not found")
	// ErrUnavailable is returned when the backing store cannot be reached.
	// Callers must never conflate it with ErrNotFound.
	ErrUnavailable = errors.New("session store unavailable")
)

// Store manages refresh-token session records. Semantics required of every
// implementation:
//   - Put overwrites any existing record for key unconditionally
//     (last-write-wins); it is not a compare-and-set.
//   - TTL is authoritative: once it elapses, Get behaves as if Delete had
//     been called.
//   - Delete is idempotent and reports whether a record existed.
type Store interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) (bool, error)
}
