package outbound

import "context"

// KVStore is the opaque key-value namespace owned by one oracle deployment.
// It offers single-key get/set only; there are no transactions.
type KVStore interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
