package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type queryable interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// PostgresStore keeps blobs in the kv_blob table created by the db
// migrations.
type PostgresStore struct {
	conn queryable
}

func NewPostgresStore(conn queryable) *PostgresStore {
	return &PostgresStore{conn: conn}
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.conn.QueryRow(ctx, `SELECT value FROM kv_blob WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select kv_blob %s: %w", key, err)
	}
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO kv_blob (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, value)
	if err != nil {
		return fmt.Errorf("upsert kv_blob %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.conn.Exec(ctx, `DELETE FROM kv_blob WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete kv_blob %s: %w", key, err)
	}
	return nil
}
