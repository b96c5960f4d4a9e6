package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Sadman-Ilham/opencrvs-core/internal/common"
	"github.com/Sadman-Ilham/opencrvs-core/internal/dbx"
)

// sqliteOps runs the kv statements against a connection or a transaction.
type sqliteOps struct {
	db dbx.DBTX
}

func (r sqliteOps) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get kv[%s]: %w: %w", key, common.ErrStorageFailure, err)
	}
	return value, nil
}

func (r sqliteOps) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("set kv[%s]: %w: %w", key, common.ErrStorageFailure, err)
	}
	return nil
}

func (r sqliteOps) Remove(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("remove kv[%s]: %w: %w", key, common.ErrStorageFailure, err)
	}
	return nil
}

// SQLiteStore is the durable Store. The schema is created by the goose
// migrations in internal/client/migrations.
type SQLiteStore struct {
	sqliteOps
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{sqliteOps: sqliteOps{db: db}, db: db}
}

func (s *SQLiteStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM kv WHERE substr(key, 1, ?) = ? ORDER BY key`, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("list kv[%s*]: %w: %w", prefix, common.ErrStorageFailure, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan kv key: %w: %w", common.ErrStorageFailure, err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kv keys: %w: %w", common.ErrStorageFailure, err)
	}
	return keys, nil
}

func (s *SQLiteStore) Update(ctx context.Context, fn func(ctx context.Context, b Batch) error) error {
	var fnErr error
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		fnErr = fn(ctx, sqliteOps{db: tx})
		return fnErr
	})
	if err != nil && fnErr == nil {
		// begin or commit failed
		return fmt.Errorf("%w: %w", common.ErrStorageFailure, err)
	}
	return err
}
