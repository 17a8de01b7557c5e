package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// MemoryStore is a process-local Store. It is suitable for a single
// replica only; use RedisStore when running more than one.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memEntry

	sessionTTL time.Duration
	logger     hclog.Logger

	stopCleanup chan struct{}
	cleanupDone chan struct{}
	closeOnce   sync.Once
}

// ensure the MemoryStore implements the Store interface.
var _ Store = (*MemoryStore)(nil)

type memEntry struct {
	session  *Session
	expireAt time.Time
}

// NewMemoryStore creates a MemoryStore and starts its background sweep
// of expired records. Call Close to stop the sweep.
//
// Supported options: WithSessionTTL, WithCleanupInterval, WithLogger
func NewMemoryStore(opt ...Option) *MemoryStore {
	opts := getStoreOpts(opt...)
	s := &MemoryStore{
		entries:     map[string]*memEntry{},
		sessionTTL:  opts.withSessionTTL,
		logger:      opts.withLogger,
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
	go s.cleanup(opts.withCleanupInterval)
	return s
}

// Close stops the background sweep. The store remains usable; records
// simply stop being evicted in the background.
func (s *MemoryStore) Close() {
	s.closeOnce.Do(func() {
		close(s.stopCleanup)
		<-s.cleanupDone
	})
}

// Get returns a copy of the session for id, or ErrNotFound when the
// session is absent or expired. Expiry is also checked here so a record
// the sweep has not reached yet still reads as gone.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	const op = "session.(MemoryStore).Get"
	if id == "" {
		return nil, fmt.Errorf("%s: missing id: %w", op, ErrInvalidParameter)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok || time.Now().After(e.expireAt) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return e.session.Clone(), nil
}

// Put stores a copy of sess under sess.ID and refreshes its expiry.
func (s *MemoryStore) Put(ctx context.Context, sess *Session) error {
	const op = "session.(MemoryStore).Put"
	switch {
	case sess == nil:
		return fmt.Errorf("%s: missing session: %w", op, ErrNilParameter)
	case sess.ID == "":
		return fmt.Errorf("%s: missing session id: %w", op, ErrInvalidParameter)
	}
	cp := sess.Clone()
	cp.UpdatedAt = time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[cp.ID] = &memEntry{
		session:  cp,
		expireAt: cp.UpdatedAt.Add(s.sessionTTL),
	}
	return nil
}

// ConsumePending atomically removes and returns the provider's pending
// attempt under the store's write lock, so of two callbacks racing for
// the same attempt exactly one wins.
func (s *MemoryStore) ConsumePending(ctx context.Context, id string, p Provider) (*Pending, error) {
	const op = "session.(MemoryStore).ConsumePending"
	if id == "" {
		return nil, fmt.Errorf("%s: missing id: %w", op, ErrInvalidParameter)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || time.Now().After(e.expireAt) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	pending := e.session.Pendings[p]
	if pending == nil {
		return nil, fmt.Errorf("%s: provider %q: %w", op, p, ErrNoPending)
	}
	delete(e.session.Pendings, p)
	e.session.UpdatedAt = time.Now()
	cp := *pending
	return &cp, nil
}

// Delete removes the session for id. Deleting an absent session is not
// an error.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	const op = "session.(MemoryStore).Delete"
	if id == "" {
		return fmt.Errorf("%s: missing id: %w", op, ErrInvalidParameter)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

func (s *MemoryStore) cleanup(interval time.Duration) {
	defer close(s.cleanupDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep collects expired ids under the read lock, then deletes them
// under the write lock, re-checking expiry in case a Put refreshed the
// record in between.
func (s *MemoryStore) sweep() {
	now := time.Now()
	s.mu.RLock()
	var expired []string
	for id, e := range s.entries {
		if now.After(e.expireAt) {
			expired = append(expired, id)
		}
	}
	s.mu.RUnlock()
	if len(expired) == 0 {
		return
	}
	removed := 0
	s.mu.Lock()
	for _, id := range expired {
		if e, ok := s.entries[id]; ok && now.After(e.expireAt) {
			delete(s.entries, id)
			removed++
		}
	}
	s.mu.Unlock()
	if removed > 0 {
		s.logger.Debug("swept expired sessions", "count", removed)
	}
}
