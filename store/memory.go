package store

import (
	"context"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
)

// MemoryBackend keeps slots in process memory.
type MemoryBackend struct {
	slots *xsync.MapOf[string, []byte]
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{slots: xsync.NewMapOf[string, []byte]()}
}

func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := b.slots.Load(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set writes a slot directly, bypassing Update. Useful to seed raw payloads.
func (b *MemoryBackend) Set(key string, value []byte) {
	b.slots.Store(key, append([]byte(nil), value...))
}

// Update runs fn under the per-key lock of the underlying map.
func (b *MemoryBackend) Update(_ context.Context, key string, fn UpdateFunc) error {
	var fnErr error
	b.slots.Compute(key, func(old []byte, loaded bool) ([]byte, bool) {
		next, err := fn(append([]byte(nil), old...), loaded)
		if err != nil {
			fnErr = err
			// keep what was there; drop the placeholder when nothing was
			return old, !loaded
		}
		return next, false
	})
	return fnErr
}

func (b *MemoryBackend) Keys(_ context.Context) ([]string, error) {
	keys := make([]string, 0, b.slots.Size())
	b.slots.Range(func(k string, _ []byte) bool {
		keys = append(keys, k)
		return true
	})
	sort.Strings(keys)
	return keys, nil
}

func (b *MemoryBackend) Close() error { return nil }
