package domain

import "context"

// DurableStore is the swappable persistence boundary for state that must
// survive a runtime reload. Values are opaque bytes; callers own the encoding.
type DurableStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Take returns and removes the value in one step.
	Take(ctx context.Context, key string) ([]byte, bool, error)
}
