package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/jupyterhealth/smartflow/sdk/id"
)

// Manager ties the Store to browsers: it resolves each request to an
// Identity, reads and writes the signed cookie, and gives handlers a
// single surface for loading and persisting sessions.
type Manager struct {
	store       Store
	cookies     *CookieManager
	pendingTTL  time.Duration
	allowShared bool
	logger      hclog.Logger
}

// NewManager creates a Manager on top of a Store and a CookieManager.
//
// Supported options: WithPendingTTL, WithSharedEmbedded, WithLogger
func NewManager(store Store, cookies *CookieManager, opt ...Option) (*Manager, error) {
	const op = "session.NewManager"
	switch {
	case store == nil:
		return nil, fmt.Errorf("%s: missing store: %w", op, ErrNilParameter)
	case cookies == nil:
		return nil, fmt.Errorf("%s: missing cookie manager: %w", op, ErrNilParameter)
	}
	opts := getManagerOpts(opt...)
	return &Manager{
		store:       store,
		cookies:     cookies,
		pendingTTL:  opts.withPendingTTL,
		allowShared: opts.withSharedEmbedded,
		logger:      opts.withLogger,
	}, nil
}

// PendingTTL is the window within which a pending authorization attempt
// stays redeemable.
func (m *Manager) PendingTTL() time.Duration {
	return m.pendingTTL
}

// Identify resolves the request to its session identity without
// touching the store. A zero Identity means the request carries no
// usable identity.
func (m *Manager) Identify(r *http.Request) Identity {
	if m.allowShared && EmbeddedRequest(r) {
		return SharedEmbedded()
	}
	if key, ok := m.cookies.Read(r); ok {
		return PerVisitor(key)
	}
	return Identity{}
}

// Get resolves the request to its session. With makeNew false it
// returns the existing session, or (nil, nil) when the request does not
// carry a usable one. With makeNew true it starts a fresh record: for
// per-visitor identities any prior record is deleted and a new cookie
// issued, so credentials never carry over between logins; the shared
// embedded identity keeps its fixed key and its record is overwritten.
func (m *Manager) Get(ctx context.Context, w http.ResponseWriter, r *http.Request, makeNew bool) (*Session, error) {
	const op = "session.(Manager).Get"
	switch {
	case w == nil:
		return nil, fmt.Errorf("%s: missing response writer: %w", op, ErrNilParameter)
	case r == nil:
		return nil, fmt.Errorf("%s: missing request: %w", op, ErrNilParameter)
	}
	ident := m.Identify(r)
	if !makeNew {
		if ident.Key == "" {
			return nil, nil
		}
		sess, err := m.store.Get(ctx, ident.Key)
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, nil
		case err != nil:
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return sess, nil
	}

	if ident.Shared {
		sess := New(ident.Key)
		if err := m.store.Put(ctx, sess); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		m.logger.Debug("started shared embedded session")
		return sess, nil
	}

	newID, err := id.New("s")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sess := New(newID)
	if err := m.store.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if ident.Key != "" {
		// the prior record becomes unreachable once the cookie is
		// rewritten; drop it instead of leaving credentials behind
		if err := m.store.Delete(ctx, ident.Key); err != nil {
			m.logger.Warn("could not delete replaced session", "error", err)
		}
	}
	m.cookies.Write(w, newID)
	m.logger.Debug("started session", "session_id", newID)
	return sess, nil
}

// Save persists sess to the store.
func (m *Manager) Save(ctx context.Context, sess *Session) error {
	return m.store.Put(ctx, sess)
}

// ConsumePending atomically claims the provider's pending attempt for
// the session. See Store.ConsumePending.
func (m *Manager) ConsumePending(ctx context.Context, id string, p Provider) (*Pending, error) {
	return m.store.ConsumePending(ctx, id, p)
}

// Logout deletes the request's session and clears its cookie. Logging
// out without a session succeeds.
func (m *Manager) Logout(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	const op = "session.(Manager).Logout"
	switch {
	case w == nil:
		return fmt.Errorf("%s: missing response writer: %w", op, ErrNilParameter)
	case r == nil:
		return fmt.Errorf("%s: missing request: %w", op, ErrNilParameter)
	}
	ident := m.Identify(r)
	if ident.Key != "" {
		if err := m.store.Delete(ctx, ident.Key); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		m.logger.Debug("ended session", "shared", ident.Shared)
	}
	if !ident.Shared {
		m.cookies.Clear(w)
	}
	return nil
}
