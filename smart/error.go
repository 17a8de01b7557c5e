package smart

import (
	"errors"
)

var (
	ErrInvalidParameter           = errors.New("invalid parameter")
	ErrNilParameter               = errors.New("nil parameter")
	ErrInvalidCACert              = errors.New("invalid CA certificate")
	ErrInvalidIssuer              = errors.New("invalid issuer")
	ErrIDGeneratorFailed          = errors.New("id generation failed")
	ErrUnsupportedChallengeMethod = errors.New("unsupported challenge method")
	ErrDiscovery                  = errors.New("provider discovery failed")
	ErrExpiredAuthRequest         = errors.New("authorization request is expired")
	ErrStateMismatch              = errors.New("authorization state mismatch")
	ErrTokenExchange              = errors.New("token exchange failed")
	ErrMissingAccessToken         = errors.New("access_token is missing")
)
