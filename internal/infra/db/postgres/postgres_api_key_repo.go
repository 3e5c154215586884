package postgres

import (
	"context"
	"errors"
	"fmt"

	"research-orchestrator/internal/domain"
	"research-orchestrator/internal/domain/model"
	"research-orchestrator/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

var _ repository.APIKeyRepository = (*apiKeyRepo)(nil)

type apiKeyRepo struct {
	pool *pgxpool.Pool
}

func NewAPIKeyRepo(pool *pgxpool.Pool) *apiKeyRepo {
	return &apiKeyRepo{pool: pool}
}

const selectAPIKey = `SELECT id, account_id, key, is_active, created_at, updated_at FROM api_keys`

func (r *apiKeyRepo) FindByKey(ctx context.Context, tx repository.Tx, key string) (*model.APIKey, error) {
	return r.findOne(ctx, tx, selectAPIKey+` WHERE key = $1`, key)
}

func (r *apiKeyRepo) FindByAccount(ctx context.Context, tx repository.Tx, accountID string) (*model.APIKey, error) {
	return r.findOne(ctx, tx, selectAPIKey+` WHERE account_id = $1`, accountID)
}

func (r *apiKeyRepo) findOne(ctx context.Context, tx repository.Tx, q, arg string) (*model.APIKey, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	var k model.APIKey
	err = ex.QueryRow(ctx, q, arg).Scan(&k.ID, &k.AccountID, &k.Key, &k.IsActive, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select api key: %w", err)
	}
	return &k, nil
}

func (r *apiKeyRepo) Save(ctx context.Context, tx repository.Tx, k *model.APIKey) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO api_keys (id, account_id, key, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (account_id) DO UPDATE SET
  key = EXCLUDED.key,
  is_active = EXCLUDED.is_active,
  updated_at = EXCLUDED.updated_at;`
	_, err = ex.Exec(ctx, q, k.ID, k.AccountID, k.Key, k.IsActive, k.CreatedAt, k.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("save api key: %w", err)
	}
	return nil
}
