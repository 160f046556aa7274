package offline

import (
	"context"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
)

// Partition is one named cache. Each operation is atomic on its own; nothing
// is coordinated across operations.
type Partition interface {
	Name() string
	Match(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, key string, entry Entry) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// PartitionFactory creates the backing partition for a name. Storage
// implementations call it the first time a name is opened, which is where an
// eviction policy gets plugged in.
type PartitionFactory func(name string) (Partition, error)

// memoryPartition is an unbounded in-memory partition. Entries stay until the
// partition itself is removed.
type memoryPartition struct {
	name    string
	entries *xsync.MapOf[string, Entry]
}

// NewMemoryPartition returns an unbounded in-memory partition.
func NewMemoryPartition(name string) Partition {
	return &memoryPartition{
		name:    name,
		entries: xsync.NewMapOf[string, Entry](),
	}
}

func (p *memoryPartition) Name() string { return p.name }

func (p *memoryPartition) Match(_ context.Context, key string) (Entry, bool, error) {
	e, ok := p.entries.Load(key)
	return e, ok, nil
}

func (p *memoryPartition) Put(_ context.Context, key string, entry Entry) error {
	p.entries.Store(key, entry)
	return nil
}

func (p *memoryPartition) Delete(_ context.Context, key string) error {
	p.entries.Delete(key)
	return nil
}

func (p *memoryPartition) Keys(_ context.Context) ([]string, error) {
	keys := make([]string, 0, p.entries.Size())
	p.entries.Range(func(k string, _ Entry) bool {
		keys = append(keys, k)
		return true
	})
	sort.Strings(keys)
	return keys, nil
}
