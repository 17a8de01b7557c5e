package exchange

import "errors"

var (
	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvalidCACert indicates an invalid CA certificate was provided.
	ErrInvalidCACert = errors.New("invalid CA certificate")

	// ErrTokenExchange indicates the token-exchange endpoint refused or
	// failed the exchange.
	ErrTokenExchange = errors.New("token exchange failed")

	// ErrMissingAccessToken indicates the endpoint answered success but
	// without an access_token.
	ErrMissingAccessToken = errors.New("access_token is missing")
)
