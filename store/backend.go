package store

import (
	"context"
	"errors"
)

// ErrConflict is returned by backends that use optimistic transactions when
// an update kept losing to concurrent writers.
var ErrConflict = errors.New("store: update conflict")

// UpdateFunc receives the current slot value (exists is false when the slot
// is absent) and returns the value to write. Backends may call it more than
// once, so it must not have side effects beyond computing the next value.
type UpdateFunc func(current []byte, exists bool) ([]byte, error)

// Backend is the key-value persistence the store runs on. Each slot holds an
// opaque value. Update must be atomic per key: no concurrent Update on the
// same key can interleave between its read and its write.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}
