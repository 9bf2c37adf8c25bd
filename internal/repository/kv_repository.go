package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/examsaathi/backend/internal/model"
)

// KVRepository stores string values by key in the kv_entries table.
type KVRepository struct {
	pool *pgxpool.Pool
}

func NewKVRepository(pool *pgxpool.Pool) *KVRepository {
	return &KVRepository{pool: pool}
}

// GetByKey returns pgx.ErrNoRows when the key is absent.
func (r *KVRepository) GetByKey(ctx context.Context, key string) (*model.KVEntry, error) {
	e := &model.KVEntry{}
	err := r.pool.QueryRow(ctx, `SELECT key, value, updated_at FROM kv_entries WHERE key = $1`, key).
		Scan(&e.Key, &e.Value, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *KVRepository) Upsert(ctx context.Context, key, value string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO kv_entries (key, value, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, value)
	return err
}

func (r *KVRepository) Delete(ctx context.Context, key string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, key)
	return err
}
