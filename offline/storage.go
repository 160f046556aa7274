package offline

import (
	"context"
	"sync"
)

// Storage is the set of named partitions available to a controller.
type Storage interface {
	// Open returns the named partition, creating it empty if absent.
	Open(ctx context.Context, name string) (Partition, error)
	// Lookup returns the named partition without creating it.
	Lookup(ctx context.Context, name string) (Partition, bool, error)
	// Names lists partitions in creation order.
	Names(ctx context.Context) ([]string, error)
	// Remove deletes a partition and its entries. It reports whether the
	// partition existed.
	Remove(ctx context.Context, name string) (bool, error)
}

// MemoryStorageOption configures a MemoryStorage.
type MemoryStorageOption func(*MemoryStorage)

// WithPartitionFactory sets the factory used for partitions without a
// dedicated one.
func WithPartitionFactory(factory PartitionFactory) MemoryStorageOption {
	return func(s *MemoryStorage) {
		if factory != nil {
			s.factory = factory
		}
	}
}

// WithNamedPartitionFactory sets the factory used for one partition name.
func WithNamedPartitionFactory(name string, factory PartitionFactory) MemoryStorageOption {
	return func(s *MemoryStorage) {
		if factory != nil {
			s.named[name] = factory
		}
	}
}

// MemoryStorage keeps partitions in process memory.
type MemoryStorage struct {
	mu         sync.Mutex
	factory    PartitionFactory
	named      map[string]PartitionFactory
	partitions map[string]Partition
	order      []string
}

// NewMemoryStorage returns an empty storage. Partitions are unbounded unless a
// factory says otherwise.
func NewMemoryStorage(opts ...MemoryStorageOption) *MemoryStorage {
	s := &MemoryStorage{
		factory: func(name string) (Partition, error) {
			return NewMemoryPartition(name), nil
		},
		named:      map[string]PartitionFactory{},
		partitions: map[string]Partition{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStorage) Open(_ context.Context, name string) (Partition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.partitions[name]; ok {
		return p, nil
	}

	factory := s.factory
	if f, ok := s.named[name]; ok {
		factory = f
	}

	p, err := factory(name)
	if err != nil {
		return nil, err
	}
	s.partitions[name] = p
	s.order = append(s.order, name)
	return p, nil
}

func (s *MemoryStorage) Lookup(_ context.Context, name string) (Partition, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.partitions[name]
	return p, ok, nil
}

func (s *MemoryStorage) Names(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...), nil
}

func (s *MemoryStorage) Remove(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.partitions[name]; !ok {
		return false, nil
	}
	delete(s.partitions, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}
