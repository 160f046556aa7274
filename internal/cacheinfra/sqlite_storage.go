package cacheinfra

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/goliatone/go-offline-store/internal/kvinfra"
	"github.com/goliatone/go-offline-store/offline"
)

var (
	_ offline.Storage   = (*SQLiteStorage)(nil)
	_ offline.Partition = (*sqlitePartition)(nil)
)

type partitionModel struct {
	bun.BaseModel `bun:"table:cache_partitions,alias:cp"`

	ID        uuid.UUID `bun:"id,pk,type:text"`
	Name      string    `bun:"name,notnull,unique"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

type entryModel struct {
	bun.BaseModel `bun:"table:cache_entries,alias:ce"`

	ID        uuid.UUID `bun:"id,pk,type:text"`
	Partition string    `bun:"partition_name,notnull,unique:partition_entry"`
	Key       string    `bun:"entry_key,notnull,unique:partition_entry"`
	URL       string    `bun:"url"`
	Payload   []byte    `bun:"payload"`
	StoredAt  time.Time `bun:"stored_at,notnull"`
}

func newPartitionRepository(db *bun.DB) repository.Repository[*partitionModel] {
	return repository.NewRepository[*partitionModel](db, repository.ModelHandlers[*partitionModel]{
		NewRecord:     func() *partitionModel { return &partitionModel{} },
		GetID:         func(p *partitionModel) uuid.UUID { return p.ID },
		SetID:         func(p *partitionModel, id uuid.UUID) { p.ID = id },
		GetIdentifier: func() string { return "name" },
	})
}

func newEntryRepository(db *bun.DB) repository.Repository[*entryModel] {
	return repository.NewRepository[*entryModel](db, repository.ModelHandlers[*entryModel]{
		NewRecord:     func() *entryModel { return &entryModel{} },
		GetID:         func(e *entryModel) uuid.UUID { return e.ID },
		SetID:         func(e *entryModel, id uuid.UUID) { e.ID = id },
		GetIdentifier: func() string { return "entry_key" },
	})
}

func partitionNamed(name string) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("name = ?", name)
	}
}

func entriesOf(partition string) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("partition_name = ?", partition)
	}
}

func entryKeyed(key string) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("entry_key = ?", key)
	}
}

func deletePartitionNamed(name string) repository.DeleteCriteria {
	return func(q *bun.DeleteQuery) *bun.DeleteQuery {
		return q.Where("name = ?", name)
	}
}

func deleteEntries(partition string, keys ...string) repository.DeleteCriteria {
	return func(q *bun.DeleteQuery) *bun.DeleteQuery {
		q = q.Where("partition_name = ?", partition)
		if len(keys) > 0 {
			q = q.Where("entry_key IN (?)", bun.In(keys))
		}
		return q
	}
}

// SQLiteStorage persists offline partitions so the cache survives restarts.
// Entries are stored msgpack-encoded.
type SQLiteStorage struct {
	db         *bun.DB
	partitions repository.Repository[*partitionModel]
	entries    repository.Repository[*entryModel]
	now        func() time.Time
}

// OpenSQLiteStorage opens the database at path and creates the tables.
func OpenSQLiteStorage(ctx context.Context, path string) (*SQLiteStorage, error) {
	db, err := kvinfra.OpenBunSQLite(path)
	if err != nil {
		return nil, err
	}

	for _, model := range []any{(*partitionModel)(nil), (*entryModel)(nil)} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("cacheinfra: create table: %w", err)
		}
	}

	return &SQLiteStorage{
		db:         db,
		partitions: newPartitionRepository(db),
		entries:    newEntryRepository(db),
		now:        time.Now,
	}, nil
}

func (s *SQLiteStorage) partition(name string) *sqlitePartition {
	return &sqlitePartition{db: s.db, entries: s.entries, name: name, now: s.now}
}

func (s *SQLiteStorage) Open(ctx context.Context, name string) (offline.Partition, error) {
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		n, err := s.partitions.CountTx(ctx, tx, partitionNamed(name))
		if err != nil || n > 0 {
			return err
		}
		_, err = s.partitions.CreateTx(ctx, tx, &partitionModel{
			ID:        uuid.New(),
			Name:      name,
			CreatedAt: s.now().UTC(),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("cacheinfra: open partition %s: %w", name, err)
	}
	return s.partition(name), nil
}

// Lookup returns the named partition only if it already exists.
func (s *SQLiteStorage) Lookup(ctx context.Context, name string) (offline.Partition, bool, error) {
	n, err := s.partitions.Count(ctx, partitionNamed(name))
	if err != nil {
		return nil, false, fmt.Errorf("cacheinfra: lookup partition %s: %w", name, err)
	}
	if n == 0 {
		return nil, false, nil
	}
	return s.partition(name), true, nil
}

func (s *SQLiteStorage) Names(ctx context.Context) ([]string, error) {
	rows, _, err := s.partitions.List(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Order("created_at ASC", "name ASC")
	})
	if err != nil {
		return nil, fmt.Errorf("cacheinfra: list partitions: %w", err)
	}
	names := make([]string, len(rows))
	for i, row := range rows {
		names[i] = row.Name
	}
	return names, nil
}

func (s *SQLiteStorage) Remove(ctx context.Context, name string) (bool, error) {
	var existed bool
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		n, err := s.partitions.CountTx(ctx, tx, partitionNamed(name))
		if err != nil {
			return err
		}
		existed = n > 0
		if err := s.entries.DeleteWhereTx(ctx, tx, deleteEntries(name)); err != nil {
			return err
		}
		return s.partitions.DeleteWhereTx(ctx, tx, deletePartitionNamed(name))
	})
	if err != nil {
		return false, fmt.Errorf("cacheinfra: remove partition %s: %w", name, err)
	}
	return existed, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type sqlitePartition struct {
	db      *bun.DB
	entries repository.Repository[*entryModel]
	name    string
	now     func() time.Time
}

func (p *sqlitePartition) Name() string { return p.name }

func (p *sqlitePartition) Match(ctx context.Context, key string) (offline.Entry, bool, error) {
	rows, _, err := p.entries.List(ctx, entriesOf(p.name), entryKeyed(key), func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Limit(1)
	})
	if err != nil {
		return offline.Entry{}, false, err
	}
	if len(rows) == 0 {
		return offline.Entry{}, false, nil
	}

	var entry offline.Entry
	if err := msgpack.Unmarshal(rows[0].Payload, &entry); err != nil {
		return offline.Entry{}, false, fmt.Errorf("cacheinfra: decode entry %s: %w", key, err)
	}
	return entry, true, nil
}

// Put replaces any entry stored under key.
func (p *sqlitePartition) Put(ctx context.Context, key string, entry offline.Entry) error {
	payload, err := msgpack.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cacheinfra: encode entry %s: %w", key, err)
	}

	storedAt := entry.StoredAt
	if storedAt.IsZero() {
		storedAt = p.now()
	}

	row := &entryModel{
		ID:        uuid.New(),
		Partition: p.name,
		Key:       key,
		URL:       entry.URL,
		Payload:   payload,
		StoredAt:  storedAt.UTC(),
	}
	return p.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := p.entries.DeleteWhereTx(ctx, tx, deleteEntries(p.name, key)); err != nil {
			return err
		}
		_, err := p.entries.CreateTx(ctx, tx, row)
		return err
	})
}

func (p *sqlitePartition) Delete(ctx context.Context, key string) error {
	return p.entries.DeleteWhere(ctx, deleteEntries(p.name, key))
}

func (p *sqlitePartition) Keys(ctx context.Context) ([]string, error) {
	rows, _, err := p.entries.List(ctx, entriesOf(p.name), func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Order("entry_key ASC")
	})
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(rows))
	for i, row := range rows {
		keys[i] = row.Key
	}
	return keys, nil
}
