// Package bgsync drains pending submission queues into their registration
// collections when a background sync event fires.
package bgsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-offline-store/store"
)

// ErrSourceUnavailable means no pending-queue reader is configured. It is
// distinct from an empty queue.
var ErrSourceUnavailable = errors.New("bgsync: pending source not available")

// ErrAlreadyCompleted means another sync run claimed the item first.
var ErrAlreadyCompleted = errors.New("bgsync: item already completed")

// Source reads pending items and moves them once synced.
type Source interface {
	// Pending returns the items waiting in queue. An empty slice with a nil
	// error means nothing to do.
	Pending(ctx context.Context, queue store.Collection) ([]store.Record, error)
	// Complete moves rec from the pending queue to the completed collection.
	// It returns ErrAlreadyCompleted when rec is no longer pending.
	Complete(ctx context.Context, pending, completed store.Collection, rec store.Record) (store.Record, error)
}

// UnimplementedSource is the source used when no queue reader exists.
type UnimplementedSource struct{}

func (UnimplementedSource) Pending(context.Context, store.Collection) ([]store.Record, error) {
	return nil, ErrSourceUnavailable
}

func (UnimplementedSource) Complete(context.Context, store.Collection, store.Collection, store.Record) (store.Record, error) {
	return nil, ErrSourceUnavailable
}

// queueStore is the part of *store.Repository a StoreSource needs.
type queueStore interface {
	ReadAll(ctx context.Context, c store.Collection) ([]store.Record, error)
	Insert(ctx context.Context, c store.Collection, record store.Record) (store.Record, error)
	Dequeue(ctx context.Context, queue store.Collection, id string) (store.Record, bool, error)
	Requeue(ctx context.Context, queue store.Collection, record store.Record) error
}

var _ queueStore = (*store.Repository)(nil)

// StoreSource keeps pending queues as store collections.
type StoreSource struct {
	store queueStore
}

// NewStoreSource returns a source over repo.
func NewStoreSource(repo *store.Repository) *StoreSource {
	return &StoreSource{store: repo}
}

func (s *StoreSource) Pending(ctx context.Context, queue store.Collection) ([]store.Record, error) {
	if !queue.IsQueue() {
		return nil, fmt.Errorf("%w: %s", store.ErrNotQueue, queue)
	}
	return s.store.ReadAll(ctx, queue)
}

// Complete claims rec by removing it from pending, then appends a copy to
// completed. Only the run whose Dequeue finds the item stores it. A failed
// insert puts the item back; a crash between the two steps drops it.
// The completed copy gets a fresh id and registration date.
func (s *StoreSource) Complete(ctx context.Context, pending, completed store.Collection, rec store.Record) (store.Record, error) {
	id := rec.ID()

	claimed, found, err := s.store.Dequeue(ctx, pending, id)
	if err != nil {
		return nil, fmt.Errorf("bgsync: dequeue %s from %s: %w", id, pending, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyCompleted, id)
	}

	moved := claimed.Clone()
	delete(moved, store.FieldID)
	delete(moved, store.FieldRegistrationDate)
	if completed == store.Fans {
		delete(moved, store.FieldReferralCode)
	}

	stored, err := s.store.Insert(ctx, completed, moved)
	if err != nil {
		if rerr := s.store.Requeue(ctx, pending, claimed); rerr != nil {
			return nil, fmt.Errorf("bgsync: store %s: %w (requeue: %v)", completed, err, rerr)
		}
		return nil, fmt.Errorf("bgsync: store %s: %w", completed, err)
	}
	return stored, nil
}
