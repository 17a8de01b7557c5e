// Package id generates the opaque identifiers used for sessions and
// authorization state. Values are URL-safe and carry enough entropy to be
// unguessable (192 bits), which covers both the session-identifier and
// anti-CSRF state requirements.
package id

import (
	"encoding/base64"
	"fmt"

	"github.com/hashicorp/go-uuid"
)

// entropyBytes is the number of random bytes per generated id.
const entropyBytes = 24

// New generates an id with an optional prefix.
func New(optionalPrefix string) (string, error) {
	data, err := uuid.GenerateRandomBytes(entropyBytes)
	if err != nil {
		return "", fmt.Errorf("unable to generate id: %w", err)
	}
	id := base64.RawURLEncoding.EncodeToString(data)
	switch {
	case optionalPrefix != "":
		return fmt.Sprintf("%s_%s", optionalPrefix, id), nil
	default:
		return id, nil
	}
}
