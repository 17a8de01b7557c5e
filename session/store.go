package session

import (
	"context"
	"time"
)

const (
	// DefaultPendingTTL bounds how long an authorization attempt stays
	// redeemable after the browser is redirected to the provider.
	DefaultPendingTTL = 10 * time.Minute

	// DefaultSessionTTL bounds how long an idle session survives before
	// eviction.
	DefaultSessionTTL = 8 * time.Hour

	// DefaultCleanupInterval is how often the memory store sweeps
	// expired records.
	DefaultCleanupInterval = 1 * time.Minute
)

// Store maps session ids to server-side Session records. Implementations
// serialize writes per id while letting distinct ids proceed
// concurrently, and make ConsumePending atomic so two callbacks racing
// for the same attempt cannot both succeed.
type Store interface {
	// Get returns a copy of the session for id. It returns ErrNotFound
	// when the session is absent or expired.
	Get(ctx context.Context, id string) (*Session, error)

	// Put stores a copy of s under s.ID, overwriting any prior record
	// and refreshing its expiry.
	Put(ctx context.Context, s *Session) error

	// ConsumePending atomically removes and returns the provider's
	// pending attempt. It returns ErrNotFound when the session is
	// absent and ErrNoPending when the attempt is absent or was already
	// consumed.
	ConsumePending(ctx context.Context, id string, p Provider) (*Pending, error)

	// Delete removes the session. Deleting an absent session is not an
	// error.
	Delete(ctx context.Context, id string) error
}
