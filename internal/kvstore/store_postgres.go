package kvstore

import (
	"database/sql"
	"errors"
	"fmt"
)

// PostgresStore keeps the board state in a single-table Postgres schema. The
// database handle is owned by the caller.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	s := &PostgresStore{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema() error {
	const q = `
CREATE TABLE IF NOT EXISTS teamboard_kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	if _, err := s.db.Exec(q); err != nil {
		return fmt.Errorf("ensure teamboard_kv schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(key string) ([]byte, bool, error) {
	var value string
	const q = `SELECT value FROM teamboard_kv WHERE key = $1`
	if err := s.db.QueryRow(q, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("query value for %q: %w", key, err)
	}
	return []byte(value), true, nil
}

func (s *PostgresStore) Set(key string, value []byte) error {
	const q = `
INSERT INTO teamboard_kv (key, value, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (key) DO UPDATE
SET value = EXCLUDED.value,
	updated_at = NOW()`
	if _, err := s.db.Exec(q, key, string(value)); err != nil {
		return fmt.Errorf("upsert value for %q: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Delete(key string) error {
	const q = `DELETE FROM teamboard_kv WHERE key = $1`
	if _, err := s.db.Exec(q, key); err != nil {
		return fmt.Errorf("delete value for %q: %w", key, err)
	}
	return nil
}
