package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/goliatone/go-offline-store/offline"
)

func TestBoundedPartition_RoundTrip(t *testing.T) {
	p, err := NewBoundedPartition("naija5fest-dynamic-v1", 16, 1, 10)
	if err != nil {
		t.Fatalf("NewBoundedPartition: %v", err)
	}
	ctx := context.Background()

	entry := offline.Entry{
		URL:    "https://fest.example/api/teams",
		Method: http.MethodGet,
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   []byte(`[]`),
	}
	if err := p.Put(ctx, "k1", entry); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := p.Match(ctx, "k1")
	if err != nil || !ok {
		t.Fatalf("Match: ok=%v err=%v", ok, err)
	}
	if string(got.Body) != "[]" || got.URL != entry.URL {
		t.Errorf("unexpected entry: %+v", got)
	}

	if err := p.Delete(ctx, "k1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := p.Match(ctx, "k1"); ok {
		t.Error("entry should be gone after Delete")
	}
	if p.Name() != "naija5fest-dynamic-v1" {
		t.Errorf("Name = %q", p.Name())
	}
}

func TestBoundedPartition_Evicts(t *testing.T) {
	const capacity = 4
	p, err := NewBoundedPartition("dyn", capacity, 1, 50)
	if err != nil {
		t.Fatalf("NewBoundedPartition: %v", err)
	}
	ctx := context.Background()

	var last string
	for i := 0; i < 20; i++ {
		last = fmt.Sprintf("key-%02d", i)
		if err := p.Put(ctx, last, offline.Entry{URL: last, Status: http.StatusOK}); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	keys, err := p.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) > capacity {
		t.Errorf("partition holds %d entries, capacity is %d", len(keys), capacity)
	}
	if _, ok, _ := p.Match(ctx, last); !ok {
		t.Errorf("most recent entry %s should survive eviction", last)
	}
}

func TestBoundedPartition_InvalidConfig(t *testing.T) {
	_, err := NewBoundedPartition("dyn", 0, 1, 10)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestBoundedPartitionFactory_WithMemoryStorage(t *testing.T) {
	storage := offline.NewMemoryStorage(
		offline.WithNamedPartitionFactory("dyn", BoundedPartitionFactory(8, 1, 25)),
	)
	ctx := context.Background()

	dyn, err := storage.Open(ctx, "dyn")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := dyn.(*BoundedPartition); !ok {
		t.Errorf("dyn partition is %T, want *BoundedPartition", dyn)
	}

	static, err := storage.Open(ctx, "static")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := static.(*BoundedPartition); ok {
		t.Error("static partition should stay unbounded")
	}
}
