package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"research-orchestrator/internal/domain"
	"research-orchestrator/internal/domain/model"
	"research-orchestrator/internal/domain/ports/repository"
	"research-orchestrator/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ AccountUseCase = (*accountUC)(nil)

// AccountUseCase provisions ledgers and API keys and resolves keys back to accounts.
type AccountUseCase interface {
	// Provision is idempotent: an existing ledger or active key is returned as is.
	Provision(ctx context.Context, accountID string, plan model.Plan) (*model.Ledger, *model.APIKey, error)
	// Authenticate returns domain.ErrUnauthorized for unknown keys and
	// domain.ErrInactiveAPIKey for revoked ones.
	Authenticate(ctx context.Context, key string) (accountID string, err error)

	// APIKey returns the account's key, active or not.
	APIKey(ctx context.Context, accountID string) (*model.APIKey, error)
	// RegenerateAPIKey swaps in a new secret and re-activates the key.
	RegenerateAPIKey(ctx context.Context, accountID string) (*model.APIKey, error)
	SetAPIKeyActive(ctx context.Context, accountID string, active bool) (*model.APIKey, error)
}

type accountUC struct {
	ledgers   repository.LedgerRepository
	keys      repository.APIKeyRepository
	tm        repository.TransactionManager
	freeDaily int64
	log       *zerolog.Logger
}

func NewAccountUseCase(ledgers repository.LedgerRepository, keys repository.APIKeyRepository, tm repository.TransactionManager, freeDailyCredits int64, logger *zerolog.Logger) *accountUC {
	if freeDailyCredits <= 0 {
		freeDailyCredits = model.DefaultDailyCredits
	}
	l := logger.With().Str("component", "AccountUC").Logger()
	return &accountUC{
		ledgers:   ledgers,
		keys:      keys,
		tm:        tm,
		freeDaily: freeDailyCredits,
		log:       &l,
	}
}

func (u *accountUC) Provision(ctx context.Context, accountID string, plan model.Plan) (*model.Ledger, *model.APIKey, error) {
	defer logging.TraceDuration(u.log, "AccountUC.Provision")()

	if plan == "" {
		plan = model.PlanFree
	}
	total := u.freeDaily
	if plan == model.PlanPremium {
		total = 0
	}
	fresh, err := model.NewLedger(accountID, plan, total)
	if err != nil {
		return nil, nil, err
	}

	var (
		ledger *model.Ledger
		key    *model.APIKey
	)
	err = u.tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		existing, err := u.ledgers.FindByAccount(ctx, tx, accountID)
		switch {
		case err == nil:
			ledger = existing
		case errors.Is(err, domain.ErrNotFound):
			if err := u.ledgers.Insert(ctx, tx, fresh); err != nil {
				return err
			}
			ledger = fresh
		default:
			return err
		}

		k, err := u.keys.FindByAccount(ctx, tx, accountID)
		if err == nil && k.IsActive {
			key = k
			return nil
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		nk, err := model.NewAPIKey(accountID)
		if err != nil {
			return err
		}
		if k != nil {
			nk.ID = k.ID
			nk.CreatedAt = k.CreatedAt
		}
		if err := u.keys.Save(ctx, tx, nk); err != nil {
			return err
		}
		key = nk
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("provision account: %w", err)
	}

	u.log.Info().Str("account_id", accountID).Str("plan", string(ledger.Plan)).Msg("account provisioned")
	return ledger, key, nil
}

func (u *accountUC) Authenticate(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", domain.ErrUnauthorized
	}
	k, err := u.keys.FindByKey(ctx, repository.NoTX, key)
	if errors.Is(err, domain.ErrNotFound) {
		return "", domain.ErrUnauthorized
	}
	if err != nil {
		return "", err
	}
	if !k.IsActive {
		return "", domain.ErrInactiveAPIKey
	}
	return k.AccountID, nil
}

func (u *accountUC) APIKey(ctx context.Context, accountID string) (*model.APIKey, error) {
	if accountID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.keys.FindByAccount(ctx, repository.NoTX, accountID)
}

func (u *accountUC) RegenerateAPIKey(ctx context.Context, accountID string) (*model.APIKey, error) {
	defer logging.TraceDuration(u.log, "AccountUC.RegenerateAPIKey")()

	k, err := u.updateKey(ctx, accountID, func(k *model.APIKey) error {
		secret, err := model.GenerateAPIKey()
		if err != nil {
			return err
		}
		k.Key = secret
		k.IsActive = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	logging.With(ctx, u.log).Info().Str("account_id", accountID).Msg("api key regenerated")
	return k, nil
}

func (u *accountUC) SetAPIKeyActive(ctx context.Context, accountID string, active bool) (*model.APIKey, error) {
	k, err := u.updateKey(ctx, accountID, func(k *model.APIKey) error {
		k.IsActive = active
		return nil
	})
	if err != nil {
		return nil, err
	}
	logging.With(ctx, u.log).Info().Str("account_id", accountID).Bool("active", active).Msg("api key status changed")
	return k, nil
}

// updateKey applies mutate to the account's existing key inside one transaction.
func (u *accountUC) updateKey(ctx context.Context, accountID string, mutate func(k *model.APIKey) error) (*model.APIKey, error) {
	if accountID == "" {
		return nil, domain.ErrInvalidArgument
	}
	var out *model.APIKey
	err := u.tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		k, err := u.keys.FindByAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if err := mutate(k); err != nil {
			return err
		}
		k.UpdatedAt = time.Now().UTC()
		if err := u.keys.Save(ctx, tx, k); err != nil {
			return err
		}
		out = k
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update api key: %w", err)
	}
	return out, nil
}
