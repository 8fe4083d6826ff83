package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ettaverse/etta-keychain-sub002/internal/dbx"
	"github.com/ettaverse/etta-keychain-sub002/internal/storage/migrations"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the local-scope Store: a single keystore table in a sqlite
// database that survives restarts.
type SQLiteStore struct {
	view
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{view: view{h: db}, db: db}
}

// Open opens (creating if necessary) the sqlite database at dsn and brings
// the schema up to date.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// view implements the Store operations over any DBTX handle, so the same
// queries serve the plain store and a transactional view of it.
type view struct {
	h dbx.DBTX
}

func (v view) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := v.h.QueryRowContext(ctx, `SELECT value FROM keystore WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get keystore[%s]: %w", key, err)
	}
	return value, nil
}

func (v view) Set(ctx context.Context, key string, value []byte) error {
	_, err := v.h.ExecContext(ctx, `
		INSERT INTO keystore (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set keystore[%s]: %w", key, err)
	}
	return nil
}

func (v view) Delete(ctx context.Context, key string) error {
	_, err := v.h.ExecContext(ctx, `DELETE FROM keystore WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete keystore[%s]: %w", key, err)
	}
	return nil
}

func (v view) Clear(ctx context.Context) error {
	_, err := v.h.ExecContext(ctx, `DELETE FROM keystore`)
	if err != nil {
		return fmt.Errorf("failed to clear keystore: %w", err)
	}
	return nil
}

// InTx runs fn against a Store whose writes all land in one transaction:
// either every write fn makes is persisted, or none is.
func (r *SQLiteStore) InTx(ctx context.Context, fn func(Store) error) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(view{h: tx})
	})
}

// DeleteMany removes several keys in a single transaction, so a wipe of
// related entries cannot be observed half done.
func (r *SQLiteStore) DeleteMany(ctx context.Context, keys ...string) error {
	return r.InTx(ctx, func(s Store) error {
		for _, key := range keys {
			if err := s.Delete(ctx, key); err != nil {
				return err
			}
		}
		return nil
	})
}
