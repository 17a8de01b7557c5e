package session

import (
	"time"
)

// Provider identifies which provider a pending attempt or credential
// belongs to within a session.
type Provider string

const (
	// ProviderFHIR is the EHR-side provider discovered from the launch
	// request.
	ProviderFHIR Provider = "fhir"

	// ProviderJHE is the data platform credentials are exchanged toward
	// after the first login completes.
	ProviderJHE Provider = "jhe"
)

// Pending is one in-flight authorization attempt: the anti-CSRF state
// and the PKCE verifier that must survive the provider redirect. It is
// single-use; a Store removes it atomically on the first callback that
// presents its state.
type Pending struct {
	State        string    `json:"state"`
	CodeVerifier string    `json:"code_verifier"`
	CreatedAt    time.Time `json:"created_at"`
}

// Token is one provider's issued credential as stored server-side,
// together with the response fields needed later. The raw token strings
// are persisted deliberately (the server-side record is the credential
// store); log session ids, never Tokens.
type Token struct {
	AccessToken string    `json:"access_token"`
	IDToken     string    `json:"id_token,omitempty"`
	TokenType   string    `json:"token_type,omitempty"`
	Scope       string    `json:"scope,omitempty"`
	Expiry      time.Time `json:"expiry,omitempty"`
}

// Valid reports whether the token exists, carries an access token and
// has not passed its expiry. A token without an expiry is treated as
// valid here; the issuing provider stays the authority either way.
func (t *Token) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return t.Expiry.IsZero() || time.Now().Before(t.Expiry)
}

// Session is the server-side record for one visitor (or for the shared
// embedded identity). It carries at most one pending attempt and one
// credential per provider, plus the launch context resolved from the
// EHR login.
type Session struct {
	ID string `json:"id"`

	// IssuerBase is the FHIR issuer base URI from the launch request.
	// Untrusted input: only ever used as a discovery lookup key, never
	// rendered or executed.
	IssuerBase string `json:"issuer_base,omitempty"`

	Pendings map[Provider]*Pending `json:"pendings,omitempty"`
	Tokens   map[Provider]*Token   `json:"tokens,omitempty"`

	Patient      string `json:"patient,omitempty"`
	Practitioner string `json:"practitioner,omitempty"`
	Encounter    string `json:"encounter,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates an empty session record for id.
func New(id string) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetPending replaces the provider's pending attempt. A new launch
// starting over deliberately invalidates the prior attempt.
func (s *Session) SetPending(p Provider, pending *Pending) {
	if s.Pendings == nil {
		s.Pendings = map[Provider]*Pending{}
	}
	s.Pendings[p] = pending
}

// Pending returns the provider's pending attempt, or nil. This is a
// peek; consuming an attempt goes through the Store so it stays
// single-use under concurrent callbacks.
func (s *Session) Pending(p Provider) *Pending {
	return s.Pendings[p]
}

// ClearPending drops the provider's pending attempt, if any. A caller
// that consumed the attempt through the Store must clear its own copy
// too, or saving that copy would write the attempt back.
func (s *Session) ClearPending(p Provider) {
	delete(s.Pendings, p)
}

// SetToken replaces the provider's stored credential.
func (s *Session) SetToken(p Provider, t *Token) {
	if s.Tokens == nil {
		s.Tokens = map[Provider]*Token{}
	}
	s.Tokens[p] = t
}

// Token returns the provider's stored credential, or nil.
func (s *Session) Token(p Provider) *Token {
	return s.Tokens[p]
}

// Authenticated reports whether the session holds a valid credential
// for the provider.
func (s *Session) Authenticated(p Provider) bool {
	if s == nil {
		return false
	}
	return s.Token(p).Valid()
}

// Clone returns a deep copy. Stores hand out and accept copies so
// callers cannot mutate stored state behind the store's back.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Pendings != nil {
		out.Pendings = make(map[Provider]*Pending, len(s.Pendings))
		for k, v := range s.Pendings {
			cp := *v
			out.Pendings[k] = &cp
		}
	}
	if s.Tokens != nil {
		out.Tokens = make(map[Provider]*Token, len(s.Tokens))
		for k, v := range s.Tokens {
			cp := *v
			out.Tokens[k] = &cp
		}
	}
	return &out
}
