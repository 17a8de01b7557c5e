package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

const (
	// secureCookieName carries the __Host- prefix, which browsers only
	// accept over TLS with Path=/ and no Domain attribute.
	secureCookieName = "__Host-smartflow-session"

	// insecureCookieName is the plain-HTTP fallback for local
	// development.
	insecureCookieName = "smartflow-session"

	// minSecretLen is the smallest accepted signing secret. HMAC-SHA256
	// keys below the hash size weaken the construction.
	minSecretLen = 32
)

// CookieManager binds session ids to browsers with an HMAC-SHA256
// signed cookie. The cookie carries only the id and its signature,
// never token material; everything sensitive stays server-side in the
// Store.
type CookieManager struct {
	secret []byte
	secure bool
	name   string
}

// NewCookieManager creates a CookieManager with the given signing
// secret, which must be at least 32 bytes. Rotating the secret
// invalidates every outstanding cookie.
//
// Supported options: WithSecureCookies
func NewCookieManager(secret []byte, opt ...Option) (*CookieManager, error) {
	const op = "session.NewCookieManager"
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("%s: secret must be at least %d bytes: %w", op, minSecretLen, ErrInvalidParameter)
	}
	opts := getCookieOpts(opt...)
	name := insecureCookieName
	if opts.withSecure {
		name = secureCookieName
	}
	cp := make([]byte, len(secret))
	copy(cp, secret)
	return &CookieManager{
		secret: cp,
		secure: opts.withSecure,
		name:   name,
	}, nil
}

// Name returns the cookie name in use.
func (c *CookieManager) Name() string {
	return c.name
}

// Write sets the session cookie for id on the response. SameSite=Lax
// keeps the cookie on the top-level redirect back from the provider
// while blocking cross-site subresource requests.
func (c *CookieManager) Write(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    c.encode(id),
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Read returns the session id carried by the request's cookie. The
// second return is false when the cookie is absent, malformed, or its
// signature does not verify.
func (c *CookieManager) Read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(c.name)
	if err != nil {
		return "", false
	}
	id, sig, found := strings.Cut(cookie.Value, ".")
	if !found || id == "" {
		return "", false
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", false
	}
	if !hmac.Equal(got, c.sign(id)) {
		return "", false
	}
	return id, true
}

// Clear expires the session cookie on the response.
func (c *CookieManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c *CookieManager) encode(id string) string {
	return id + "." + base64.RawURLEncoding.EncodeToString(c.sign(id))
}

func (c *CookieManager) sign(id string) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(id))
	return mac.Sum(nil)
}
