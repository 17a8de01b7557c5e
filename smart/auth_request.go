package smart

import (
	"fmt"
	"net/url"
	"time"
)

// AuthRequest represents one authorization attempt for a user. It
// contains the data needed to uniquely represent that one-time flow
// across the multiple interactions needed to complete it: the anti-CSRF
// state round-tripped through the provider redirect and the PKCE
// verifier presented at the token endpoint. State() is passed throughout
// the flow to uniquely identify the attempt.
type AuthRequest interface {
	// State is a unique identifier and an opaque value used to maintain
	// state between the authorization request and the callback. It is
	// single-use: the pending attempt it identifies must be consumed on
	// the first callback that presents it.
	State() string

	// Verifier is the attempt's PKCE code verifier.
	Verifier() *CodeVerifier

	// IsExpired returns true if the authorization attempt has expired.
	// Implementations should support a WithExpirySkew option and use
	// DefaultAuthRequestExpirySkew if none is provided.
	IsExpired(opt ...Option) bool

	// Scopes are the scopes requested for this attempt. When empty, the
	// client's configured scopes apply.
	Scopes() []string

	// AuthParams are additional parameters for the authorization
	// redirect URL. They are merged after the standard parameters, so a
	// caller-supplied value wins (used to inject the SMART launch and
	// aud parameters).
	AuthParams() url.Values

	// TokenParams are additional parameters for the token endpoint
	// request.
	TokenParams() url.Values
}

// DefaultAuthRequestExpiry is how long a pending authorization attempt
// stays redeemable. It needs to cover a user logging in at the provider,
// while still bounding the replay window of an abandoned attempt.
const DefaultAuthRequestExpiry = 10 * time.Minute

// Req represents an authorization attempt and implements AuthRequest.
type Req struct {
	// state is a unique identifier and an opaque value used to maintain
	// state between the authorization request and the callback
	state string

	// verifier is the attempt's PKCE code verifier
	verifier *CodeVerifier

	// expiration is the expiration time for the attempt
	expiration time.Time

	// scopes for this attempt; empty means the client's configured scopes
	scopes []string

	// authParams are extra authorization redirect parameters
	authParams url.Values

	// tokenParams are extra token endpoint parameters
	tokenParams url.Values
}

// ensure that Req implements the AuthRequest interface
var _ AuthRequest = (*Req)(nil)

// NewAuthRequest creates a new authorization attempt (*Req) with a fresh
// state and PKCE verifier.
//
// Supported options: WithScopes, WithAuthParam, WithTokenParam
func NewAuthRequest(expireIn time.Duration, opt ...Option) (*Req, error) {
	const op = "smart.NewAuthRequest"
	if expireIn <= 0 {
		return nil, fmt.Errorf("%s: expireIn not greater than zero: %w", op, ErrInvalidParameter)
	}
	state, err := NewID("st")
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate an attempt's state: %w", op, err)
	}
	verifier, err := NewCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate an attempt's code verifier: %w", op, err)
	}
	opts := getReqOpts(opt...)
	return &Req{
		state:       state,
		verifier:    verifier,
		expiration:  time.Now().Add(expireIn),
		scopes:      opts.withScopes,
		authParams:  opts.withAuthParams,
		tokenParams: opts.withTokenParams,
	}, nil
}

// RestoreAuthRequest rebuilds an authorization attempt from the state and
// verifier persisted when the attempt was started, typically loaded back
// from session storage during callback handling. The expiration must be
// the one computed when the attempt was created.
func RestoreAuthRequest(state, verifier string, expiration time.Time, opt ...Option) (*Req, error) {
	const op = "smart.RestoreAuthRequest"
	if state == "" {
		return nil, fmt.Errorf("%s: state is empty: %w", op, ErrInvalidParameter)
	}
	v, err := restoreCodeVerifier(verifier)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to restore code verifier: %w", op, err)
	}
	opts := getReqOpts(opt...)
	return &Req{
		state:       state,
		verifier:    v,
		expiration:  expiration,
		scopes:      opts.withScopes,
		authParams:  opts.withAuthParams,
		tokenParams: opts.withTokenParams,
	}, nil
}

func (r *Req) State() string           { return r.state }
func (r *Req) Verifier() *CodeVerifier { return r.verifier }
func (r *Req) Scopes() []string        { return r.scopes }
func (r *Req) AuthParams() url.Values  { return r.authParams }
func (r *Req) TokenParams() url.Values { return r.tokenParams }

// DefaultAuthRequestExpirySkew defines a default time skew when checking
// an AuthRequest's expiration.
const DefaultAuthRequestExpirySkew = 1 * time.Second

// IsExpired returns true if the authorization attempt has expired.
// Supports the WithExpirySkew option and if none is provided it will use
// the DefaultAuthRequestExpirySkew.
func (r *Req) IsExpired(opt ...Option) bool {
	opts := getReqOpts(opt...)
	return r.expiration.Before(time.Now().Add(opts.withExpirySkew))
}

// reqOptions is the set of available options for Req functions
type reqOptions struct {
	withExpirySkew  time.Duration
	withScopes      []string
	withAuthParams  url.Values
	withTokenParams url.Values
}

// reqDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func reqDefaults() reqOptions {
	return reqOptions{
		withExpirySkew: DefaultAuthRequestExpirySkew,
	}
}

// getReqOpts gets the request defaults and applies the opt overrides
// passed in.
func getReqOpts(opt ...Option) reqOptions {
	opts := reqDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithAuthParam provides an optional authorization redirect parameter for
// the attempt. Parameters are merged after the standard ones, so they may
// override defaults.
func WithAuthParam(name, value string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			if o.withAuthParams == nil {
				o.withAuthParams = url.Values{}
			}
			o.withAuthParams.Set(name, value)
		}
	}
}

// WithTokenParam provides an optional token endpoint parameter for the
// attempt.
func WithTokenParam(name, value string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			if o.withTokenParams == nil {
				o.withTokenParams = url.Values{}
			}
			o.withTokenParams.Set(name, value)
		}
	}
}
