package web

import "errors"

var (
	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNilParameter indicates a nil parameter was provided.
	ErrNilParameter = errors.New("nil parameter")

	// ErrMissingIssuer indicates a launch request without an iss
	// parameter when no default issuer is configured.
	ErrMissingIssuer = errors.New("iss parameter is missing")

	// ErrMissingCode indicates a callback without an authorization code.
	ErrMissingCode = errors.New("authorization code is missing")

	// ErrMissingState indicates a callback without a state parameter.
	ErrMissingState = errors.New("state parameter is missing")

	// ErrNoSession indicates a callback with no session, or no pending
	// authorization attempt to validate the callback against. A replayed
	// callback sees this: the attempt was consumed the first time.
	ErrNoSession = errors.New("no pending authorization for this session")

	// ErrProvider indicates the provider redirected back with an OAuth
	// error response instead of an authorization code.
	ErrProvider = errors.New("provider returned an authorization error")
)

// AuthenErrorResponse represents Oauth2 error responses.  See:
// https://openid.net/specs/openid-connect-core-1_0.html#AuthError
type AuthenErrorResponse struct {
	Error       string
	Description string
	Uri         string
}
