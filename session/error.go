package session

import "errors"

var (
	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNilParameter indicates a nil parameter was provided.
	ErrNilParameter = errors.New("nil parameter")

	// ErrNotFound indicates no session exists for the identifier.
	ErrNotFound = errors.New("session not found")

	// ErrNoPending indicates the session has no pending authorization
	// attempt for the provider. A callback racing another callback for
	// the same attempt sees this: the attempt is single-use.
	ErrNoPending = errors.New("no pending authorization attempt")
)
