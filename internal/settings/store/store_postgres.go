package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"landtrust/internal/settings/models"
	"landtrust/pkg/platform/sentinel"
	txcontext "landtrust/pkg/platform/tx"
)

// PostgresStore persists settings in site_settings.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*models.Setting, error) {
	var (
		setting models.Setting
		value   []byte
	)
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT key, value, updated_at FROM site_settings WHERE key = $1`, key,
	).Scan(&setting.Key, &value, &setting.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find setting: %w", err)
	}
	setting.Value = value
	return &setting, nil
}

// Upsert writes the value; the last writer wins.
func (s *PostgresStore) Upsert(ctx context.Context, setting *models.Setting) error {
	query := `
		INSERT INTO site_settings (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, setting.Key, []byte(setting.Value), setting.UpdatedAt); err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}
