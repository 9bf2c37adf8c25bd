package kvstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/examsaathi/backend/internal/model"
)

// KVRepository is the row-level access PostgresStore needs.
type KVRepository interface {
	GetByKey(ctx context.Context, key string) (*model.KVEntry, error)
	Upsert(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// PostgresStore adapts the kv_entries repository to Store.
type PostgresStore struct {
	repo KVRepository
}

func NewPostgresStore(repo KVRepository) *PostgresStore {
	return &PostgresStore{repo: repo}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	e, err := s.repo.GetByKey(ctx, key)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return e.Value, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	return s.repo.Upsert(ctx, key, value)
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	return s.repo.Delete(ctx, key)
}
