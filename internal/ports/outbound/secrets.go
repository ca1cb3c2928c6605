package outbound

import "context"

// SecretStore provides read-only access to deployment secrets.
type SecretStore interface {
	// Get returns the secret for key. ok is false when the secret is not set.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
}
