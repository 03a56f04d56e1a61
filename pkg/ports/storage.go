package ports

import "context"

// Storage is the key/value capability the tour persists itself into.
// Values are opaque strings; encoding is the caller's business.
type Storage interface {
	// Get returns the value stored at key.
	// Returns domain.ErrKeyNotFound if nothing is stored there.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// List returns every stored key, in no particular order.
	List(ctx context.Context) ([]string, error)
}
