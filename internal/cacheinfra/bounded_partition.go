package cacheinfra

import (
	"context"
	"sort"
	"time"

	"github.com/viccon/sturdyc"

	"github.com/goliatone/go-offline-store/offline"
)

var _ offline.Partition = (*BoundedPartition)(nil)

// PartitionTTL keeps bounded partition entries for as long as the capacity
// allows. Cached responses are never revalidated; they leave by eviction only.
const PartitionTTL = 365 * 24 * time.Hour

// BoundedPartition is an offline partition with a fixed capacity. When a
// shard fills up, sturdyc evicts a percentage of it, oldest expiry first.
type BoundedPartition struct {
	name   string
	client *sturdyc.Client[offline.Entry]
}

// NewBoundedPartition returns a partition holding at most capacity entries.
func NewBoundedPartition(name string, capacity, numShards, evictionPercentage int) (*BoundedPartition, error) {
	cfg := Config{
		Capacity:           capacity,
		NumShards:          numShards,
		TTL:                PartitionTTL,
		EvictionPercentage: evictionPercentage,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &BoundedPartition{
		name:   name,
		client: sturdyc.New[offline.Entry](cfg.Capacity, cfg.NumShards, cfg.TTL, cfg.EvictionPercentage),
	}, nil
}

// BoundedPartitionFactory returns an offline.PartitionFactory producing
// bounded partitions.
func BoundedPartitionFactory(capacity, numShards, evictionPercentage int) offline.PartitionFactory {
	return func(name string) (offline.Partition, error) {
		return NewBoundedPartition(name, capacity, numShards, evictionPercentage)
	}
}

func (p *BoundedPartition) Name() string { return p.name }

func (p *BoundedPartition) Match(_ context.Context, key string) (offline.Entry, bool, error) {
	e, ok := p.client.Get(key)
	return e, ok, nil
}

func (p *BoundedPartition) Put(_ context.Context, key string, entry offline.Entry) error {
	p.client.Set(key, entry)
	return nil
}

func (p *BoundedPartition) Delete(_ context.Context, key string) error {
	p.client.Delete(key)
	return nil
}

func (p *BoundedPartition) Keys(_ context.Context) ([]string, error) {
	keys := p.client.ScanKeys()
	sort.Strings(keys)
	return keys, nil
}
