package kvstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the durable Store backend for production deployments. It
// holds one logical row per (namespace, key) cell and drives its
// transaction window through a single checked-out pgx.Tx.
type PostgresStore struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

// NewPostgresStore opens a pool against dsn, pings it, and ensures the
// backing table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	s := &PostgresStore{pool: pool}

	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("postgres not initialized")
	}
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS channel_cells (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (namespace, key)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Begin(ctx context.Context) error {
	if s.tx != nil {
		return ErrTransactionInProgress
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	s.tx = tx
	return nil
}

func (s *PostgresStore) Commit(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) Rollback(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(ctx); err != nil {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, ns Namespace, key string) ([]byte, error) {
	row := s.queryRow(ctx, `SELECT value FROM channel_cells WHERE namespace=$1 AND key=$2`, HashNamespace(ns), key)
	var value []byte
	if err := row.Scan(&value); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", HashNamespace(ns), key, err)
	}
	return value, nil
}

func (s *PostgresStore) Put(ctx context.Context, ns Namespace, key string, value []byte) error {
	if s.tx == nil {
		return ErrNoTransaction
	}
	_, err := s.tx.Exec(ctx, `
		INSERT INTO channel_cells (namespace, key, value, updated_at) VALUES ($1, $2, $3, NOW())
		ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		HashNamespace(ns), key, value)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", HashNamespace(ns), key, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, ns Namespace, key string) error {
	if s.tx == nil {
		return ErrNoTransaction
	}
	tag, err := s.tx.Exec(ctx, `DELETE FROM channel_cells WHERE namespace=$1 AND key=$2`, HashNamespace(ns), key)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", HashNamespace(ns), key, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Contains(ctx context.Context, ns Namespace, key string) (bool, error) {
	var exists bool
	row := s.queryRow(ctx, `SELECT EXISTS(SELECT 1 FROM channel_cells WHERE namespace=$1 AND key=$2)`, HashNamespace(ns), key)
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("contains %s/%s: %w", HashNamespace(ns), key, err)
	}
	return exists, nil
}

func (s *PostgresStore) IterateKeys(ctx context.Context, ns Namespace) ([]string, error) {
	rows, err := s.query(ctx, `SELECT key FROM channel_cells WHERE namespace=$1`, HashNamespace(ns))
	if err != nil {
		return nil, fmt.Errorf("iterate %s: %w", HashNamespace(ns), err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) Count(ctx context.Context, ns Namespace) (int, error) {
	var n int
	row := s.queryRow(ctx, `SELECT COUNT(*) FROM channel_cells WHERE namespace=$1`, HashNamespace(ns))
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", HashNamespace(ns), err)
	}
	return n, nil
}

func (s *PostgresStore) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if s.tx != nil {
		return s.tx.QueryRow(ctx, sql, args...)
	}
	return s.pool.QueryRow(ctx, sql, args...)
}

func (s *PostgresStore) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if s.tx != nil {
		return s.tx.Query(ctx, sql, args...)
	}
	return s.pool.Query(ctx, sql, args...)
}
