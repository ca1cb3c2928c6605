// Package secrets reads deployment secrets from the process environment.
package secrets

import (
	"context"
	"os"

	"github.com/archon-research/stl/pyth-keeper/internal/ports/outbound"
)

var _ outbound.SecretStore = (*Env)(nil)

// Env resolves secret key K from the environment variable Prefix+K.
// An empty variable counts as unset.
type Env struct {
	Prefix string

	lookup func(string) (string, bool)
}

// NewEnv creates an Env store reading variables named prefix+key.
func NewEnv(prefix string) *Env {
	return &Env{Prefix: prefix, lookup: os.LookupEnv}
}

// Get returns the secret for key.
func (e *Env) Get(_ context.Context, key string) (string, bool, error) {
	lookup := e.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	value, ok := lookup(e.Prefix + key)
	if !ok || value == "" {
		return "", false, nil
	}
	return value, true, nil
}
