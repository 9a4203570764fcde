package repository

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNoPreference = errors.New("repository: preference not found")

type PreferenceRepo interface {
	EnsureSchema(ctx context.Context) error
	Get(ctx context.Context, key string) (string, error)
	Upsert(ctx context.Context, key, value string) error
}

type PostgresPreferenceRepo struct {
	pool *pgxpool.Pool
}

func NewPreferenceRepo(pool *pgxpool.Pool) *PostgresPreferenceRepo {
	return &PostgresPreferenceRepo{
		pool: pool,
	}
}

func (r *PostgresPreferenceRepo) EnsureSchema(ctx context.Context) error {
	const query = `
		CREATE TABLE IF NOT EXISTS user_preferences (
			pref_key   TEXT PRIMARY KEY,
			pref_value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`

	if _, err := r.pool.Exec(ctx, query); err != nil {
		log.Printf("[REPO ERROR] Failed to create user_preferences: %v", err)
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (r *PostgresPreferenceRepo) Get(ctx context.Context, key string) (string, error) {
	const query = `SELECT pref_value FROM user_preferences WHERE pref_key = $1`

	var value string
	err := r.pool.QueryRow(ctx, query, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNoPreference
	}
	if err != nil {
		log.Printf("[REPO ERROR] Fetch failed for preference %s: %v", key, err)
		return "", err
	}
	return value, nil
}

func (r *PostgresPreferenceRepo) Upsert(ctx context.Context, key, value string) error {
	const query = `
		INSERT INTO user_preferences (pref_key, pref_value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (pref_key) DO UPDATE
		SET pref_value = EXCLUDED.pref_value, updated_at = now()`

	tag, err := r.pool.Exec(ctx, query, key, value)
	if err != nil {
		log.Printf("[REPO ERROR] Failed to save preference %s: %v", key, err)
		return fmt.Errorf("database upsert failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		log.Printf("[REPO INFO] No rows written for preference %s", key)
	}
	return nil
}
