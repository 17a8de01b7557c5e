package smart

import (
	"fmt"

	"github.com/jupyterhealth/smartflow/sdk/id"
)

// NewID generates an ID with an optional prefix. The ID generated is
// suitable for an AuthRequest state or a session identifier.
func NewID(optionalPrefix string) (string, error) {
	const op = "smart.NewID"
	id, err := id.New(optionalPrefix)
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate id: %w: %w", op, ErrIDGeneratorFailed, err)
	}
	return id, nil
}
