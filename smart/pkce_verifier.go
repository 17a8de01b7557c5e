package smart

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// ChallengeMethod represents a PKCE code challenge method (see RFC 7636).
type ChallengeMethod string

// S256 is the only challenge method this package supports: the SHA-256
// transformation of the verifier. The "plain" method is deliberately not
// implemented.
const S256 ChallengeMethod = "S256"

// verifierLen is the encoded length of a generated code verifier:
// 32 bytes of entropy, base64url encoded without padding.
const verifierLen = 43

// CodeVerifier represents an authorization code verifier and its
// challenge. The verifier is secret: it is only ever sent to the token
// endpoint, while the challenge travels in the authorization redirect.
type CodeVerifier struct {
	verifier  string
	method    ChallengeMethod
	challenge string
}

// NewCodeVerifier creates a verifier from a cryptographically secure
// random source and derives its S256 challenge.
func NewCodeVerifier() (*CodeVerifier, error) {
	const op = "smart.NewCodeVerifier"
	data := make([]byte, 32)
	if _, err := rand.Read(data); err != nil {
		return nil, fmt.Errorf("%s: unable to read random bytes: %w", op, err)
	}
	v := &CodeVerifier{
		verifier: base64.RawURLEncoding.EncodeToString(data),
		method:   S256,
	}
	var err error
	if v.challenge, err = CreateCodeChallenge(v.method, v); err != nil {
		return nil, fmt.Errorf("%s: unable to create code challenge: %w", op, err)
	}
	return v, nil
}

// restoreCodeVerifier rebuilds a CodeVerifier from a previously generated
// verifier string, recomputing its challenge. Used when a pending
// authorization attempt is loaded back from session storage.
func restoreCodeVerifier(verifier string) (*CodeVerifier, error) {
	const op = "smart.restoreCodeVerifier"
	if verifier == "" {
		return nil, fmt.Errorf("%s: verifier is empty: %w", op, ErrInvalidParameter)
	}
	v := &CodeVerifier{
		verifier: verifier,
		method:   S256,
	}
	var err error
	if v.challenge, err = CreateCodeChallenge(v.method, v); err != nil {
		return nil, fmt.Errorf("%s: unable to create code challenge: %w", op, err)
	}
	return v, nil
}

func (v *CodeVerifier) Verifier() string        { return v.verifier }
func (v *CodeVerifier) Challenge() string       { return v.challenge }
func (v *CodeVerifier) Method() ChallengeMethod { return v.method }

// CreateCodeChallenge creates a code challenge for the verifier using the
// given method. Only the S256 method is supported.
func CreateCodeChallenge(method ChallengeMethod, v *CodeVerifier) (string, error) {
	const op = "smart.CreateCodeChallenge"
	if v == nil {
		return "", fmt.Errorf("%s: code verifier is nil: %w", op, ErrNilParameter)
	}
	switch method {
	case S256:
		sum := sha256.Sum256([]byte(v.verifier))
		return base64.RawURLEncoding.EncodeToString(sum[:]), nil
	default:
		return "", fmt.Errorf("%s: %q: %w", op, method, ErrUnsupportedChallengeMethod)
	}
}
