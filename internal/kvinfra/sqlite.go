// Package kvinfra provides durable store.Backend implementations.
package kvinfra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-offline-store/store"
)

var _ store.Backend = (*SQLiteBackend)(nil)

type slotModel struct {
	bun.BaseModel `bun:"table:slots,alias:s"`

	Name      string    `bun:"name,pk"`
	Value     []byte    `bun:"value"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// SQLiteBackend keeps slots in a SQLite table.
type SQLiteBackend struct {
	db  *bun.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) a SQLite database at path and
// prepares the slots table. Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteBackend, error) {
	db, err := OpenBunSQLite(path)
	if err != nil {
		return nil, err
	}

	if _, err := db.NewCreateTable().Model((*slotModel)(nil)).IfNotExists().Exec(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("kvinfra: create slots table: %w", err)
	}

	return &SQLiteBackend{db: db, now: time.Now}, nil
}

// OpenBunSQLite opens a bun DB over the sqlite3 driver with a single
// connection, WAL journaling and a busy timeout.
func OpenBunSQLite(path string) (*bun.DB, error) {
	sqldb, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("kvinfra: open sqlite: %w", err)
	}
	// SQLite has one writer; a single connection serialises transactions
	// and keeps ":memory:" databases shared.
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := sqldb.Exec(pragma); err != nil {
			sqldb.Close()
			return nil, fmt.Errorf("kvinfra: %s: %w", pragma, err)
		}
	}

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

func (b *SQLiteBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return getSlot(ctx, b.db, key)
}

func getSlot(ctx context.Context, db bun.IDB, key string) ([]byte, bool, error) {
	var slot slotModel
	err := db.NewSelect().Model(&slot).Where("s.name = ?", key).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kvinfra: get %s: %w", key, err)
	}
	return slot.Value, true, nil
}

// Update reads and writes the slot inside one transaction.
func (b *SQLiteBackend) Update(ctx context.Context, key string, fn store.UpdateFunc) error {
	return b.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		current, exists, err := getSlot(ctx, tx, key)
		if err != nil {
			return err
		}

		next, err := fn(current, exists)
		if err != nil {
			return err
		}

		slot := &slotModel{Name: key, Value: next, UpdatedAt: b.now().UTC()}
		_, err = tx.NewInsert().
			Model(slot).
			On("CONFLICT (name) DO UPDATE").
			Set("value = EXCLUDED.value").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("kvinfra: put %s: %w", key, err)
		}
		return nil
	})
}

func (b *SQLiteBackend) Keys(ctx context.Context) ([]string, error) {
	var names []string
	err := b.db.NewSelect().Model((*slotModel)(nil)).Column("name").Order("name ASC").Scan(ctx, &names)
	if err != nil {
		return nil, fmt.Errorf("kvinfra: list slots: %w", err)
	}
	return names, nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
