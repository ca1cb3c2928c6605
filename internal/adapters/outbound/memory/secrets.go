package memory

import (
	"context"

	"github.com/archon-research/stl/pyth-keeper/internal/ports/outbound"
)

var _ outbound.SecretStore = Secrets(nil)

// Secrets is a fixed map of secrets.
type Secrets map[string]string

// Get returns the secret for key.
func (s Secrets) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s[key]
	return v, ok, nil
}
