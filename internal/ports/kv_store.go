package ports

import "context"

// KVStore is durable key-value storage. Used for the learned window index
// base map and the last-good-frame cache; every value is independently
// idempotent, so no transactions are required.
type KVStore interface {
	// Get returns the value for key, or (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set persists the value atomically.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
