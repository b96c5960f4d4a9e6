package kv

import "context"

// Key prefixes used by the registrar client.
const (
	DeclarationPrefix = "declarations/"
	DeclarationIndex  = "declarations/index"
	QueuePrefix       = "queue/"
)

// DeclarationKey returns the key holding one declaration record.
func DeclarationKey(id string) string { return DeclarationPrefix + id }

// QueueKey returns the key holding the queued operation of a declaration.
func QueueKey(id string) string { return QueuePrefix + id }

// Batch is the read/write surface available inside Update.
type Batch interface {
	// Get returns the stored value, or (nil, nil) when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

// Store is a durable key/value store.
type Store interface {
	Batch

	// Keys lists every key with the given prefix in ascending order.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Update runs fn against a batch that is applied atomically: either
	// every write of fn becomes visible or none does.
	Update(ctx context.Context, fn func(ctx context.Context, b Batch) error) error
}
