package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"research-orchestrator/internal/domain"
	"research-orchestrator/internal/domain/model"
	"research-orchestrator/internal/domain/ports/repository"
)

var _ repository.APIKeyRepository = (*apiKeyRepo)(nil)

type apiKeyRepo struct {
	db *sql.DB
}

func NewAPIKeyRepo(db *sql.DB) *apiKeyRepo {
	return &apiKeyRepo{db: db}
}

const selectAPIKey = `SELECT id, account_id, key, is_active, created_at, updated_at FROM api_keys`

func (r *apiKeyRepo) FindByKey(ctx context.Context, tx repository.Tx, key string) (*model.APIKey, error) {
	return r.findOne(ctx, tx, selectAPIKey+` WHERE key = ?`, key)
}

func (r *apiKeyRepo) FindByAccount(ctx context.Context, tx repository.Tx, accountID string) (*model.APIKey, error) {
	return r.findOne(ctx, tx, selectAPIKey+` WHERE account_id = ?`, accountID)
}

func (r *apiKeyRepo) findOne(ctx context.Context, tx repository.Tx, q, arg string) (*model.APIKey, error) {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return nil, err
	}
	var (
		k                    model.APIKey
		createdAt, updatedAt int64
	)
	err = ex.QueryRowContext(ctx, q, arg).Scan(&k.ID, &k.AccountID, &k.Key, &k.IsActive, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select api key: %w", err)
	}
	k.CreatedAt = fromMillis(createdAt)
	k.UpdatedAt = fromMillis(updatedAt)
	return &k, nil
}

func (r *apiKeyRepo) Save(ctx context.Context, tx repository.Tx, k *model.APIKey) error {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `
INSERT INTO api_keys (id, account_id, key, is_active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (account_id) DO UPDATE SET
  key = excluded.key,
  is_active = excluded.is_active,
  updated_at = excluded.updated_at`,
		k.ID, k.AccountID, k.Key, k.IsActive, toMillis(k.CreatedAt), toMillis(k.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("save api key: %w", err)
	}
	return nil
}
