package smart

import (
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// DefaultTokenExpirySkew defines a default time skew when checking a
// token's expiration.
const DefaultTokenExpirySkew = 10 * time.Second

// Token is the result of a successful authorization-code exchange.
// Beyond the bearer credential it carries every provider-specific extra
// response field (for SMART providers that includes the launch context:
// patient, encounter, profile).
type Token interface {
	// AccessToken is the bearer token issued by the provider.
	AccessToken() AccessToken

	// IdToken is the oidc id_token, when the provider issued one.
	IdToken() IdToken

	// Expiry is when the access token expires; zero when the provider
	// did not say.
	Expiry() time.Time

	// IsExpired returns true if the token is expired. Implementations
	// should support a WithExpirySkew option and use
	// DefaultTokenExpirySkew if none is provided.
	IsExpired(opt ...Option) bool

	// Extra returns the named field from the raw token response, or nil
	// when absent. The response is treated as an opaque mapping;
	// downstream consumers interpret specific fields.
	Extra(field string) interface{}
}

// Tk implements the Token interface.
type Tk struct {
	accessToken AccessToken
	idToken     IdToken
	expiry      time.Time

	// underlying keeps the provider's full response reachable via
	// Extra without re-parsing
	underlying *oauth2.Token
}

// ensure that Tk implements the Token interface
var _ Token = (*Tk)(nil)

// NewToken creates a Tk from a token endpoint response.
func NewToken(t *oauth2.Token) (*Tk, error) {
	const op = "smart.NewToken"
	if t == nil {
		return nil, fmt.Errorf("%s: token is nil: %w", op, ErrNilParameter)
	}
	if t.AccessToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingAccessToken)
	}
	tk := &Tk{
		accessToken: AccessToken(t.AccessToken),
		expiry:      t.Expiry,
		underlying:  t,
	}
	if id, ok := t.Extra("id_token").(string); ok {
		tk.idToken = IdToken(id)
	}
	return tk, nil
}

func (t *Tk) AccessToken() AccessToken { return t.accessToken }
func (t *Tk) IdToken() IdToken         { return t.idToken }
func (t *Tk) Expiry() time.Time        { return t.expiry }

// Extra returns the named field from the raw token response, or nil when
// absent.
func (t *Tk) Extra(field string) interface{} {
	if t.underlying == nil {
		return nil
	}
	return t.underlying.Extra(field)
}

// StringExtra returns the named extra response field when it is a
// string, or "" otherwise.
func (t *Tk) StringExtra(field string) string {
	s, _ := t.Extra(field).(string)
	return s
}

// IsExpired returns true if the token is expired. A token without an
// expiry never expires. Supports the WithExpirySkew option and if none
// is provided it will use the DefaultTokenExpirySkew.
func (t *Tk) IsExpired(opt ...Option) bool {
	if t.expiry.IsZero() {
		return false
	}
	opts := getTokenOpts(opt...)
	return t.expiry.Round(0).Before(time.Now().Add(opts.withExpirySkew))
}

// Valid reports whether the token exists, carries an access token and is
// not expired.
func (t *Tk) Valid() bool {
	if t == nil {
		return false
	}
	if t.accessToken == "" {
		return false
	}
	return !t.IsExpired()
}

// tokenOptions is the set of available options for Tk functions
type tokenOptions struct {
	withExpirySkew time.Duration
}

// tokenDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func tokenDefaults() tokenOptions {
	return tokenOptions{
		withExpirySkew: DefaultTokenExpirySkew,
	}
}

// getTokenOpts gets the token defaults and applies the opt overrides
// passed in.
func getTokenOpts(opt ...Option) tokenOptions {
	opts := tokenDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
