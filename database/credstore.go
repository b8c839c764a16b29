package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SaveCredentials upserts an opaque credential blob under the given key.
func (s *Store) SaveCredentials(ctx context.Context, key string, blob []byte) error {
	query := `
		INSERT INTO credentials (key, blob, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET blob = EXCLUDED.blob, updated_at = EXCLUDED.updated_at`
	_, err := s.DB.ExecContext(ctx, query, key, string(blob), time.Now().UTC())
	return err
}

// LoadCredentials returns the blob stored under key, or nil when absent.
func (s *Store) LoadCredentials(ctx context.Context, key string) ([]byte, error) {
	var blob string
	err := s.DB.QueryRowContext(ctx, `SELECT blob FROM credentials WHERE key = $1`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(blob), nil
}

// ClearCredentials removes the blob stored under key, if any.
func (s *Store) ClearCredentials(ctx context.Context, key string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM credentials WHERE key = $1`, key)
	return err
}
