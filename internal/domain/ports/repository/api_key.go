package repository

import (
	"context"

	"research-orchestrator/internal/domain/model"
)

type APIKeyRepository interface {
	FindByKey(ctx context.Context, tx Tx, key string) (*model.APIKey, error)
	FindByAccount(ctx context.Context, tx Tx, accountID string) (*model.APIKey, error)
	// Save inserts or replaces the account's key.
	Save(ctx context.Context, tx Tx, k *model.APIKey) error
}
