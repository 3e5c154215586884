package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"research-orchestrator/internal/domain"
	"research-orchestrator/internal/domain/model"
	"research-orchestrator/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

var _ repository.LedgerRepository = (*ledgerRepo)(nil)

type ledgerRepo struct {
	pool *pgxpool.Pool
}

func NewLedgerRepo(pool *pgxpool.Pool) *ledgerRepo {
	return &ledgerRepo{pool: pool}
}

func (r *ledgerRepo) FindByAccount(ctx context.Context, tx repository.Tx, accountID string) (*model.Ledger, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const q = `
SELECT account_id, plan, credits_used, credits_total, created_at, updated_at
FROM ledgers WHERE account_id = $1`

	var (
		l    model.Ledger
		plan string
	)
	err = ex.QueryRow(ctx, q, accountID).Scan(&l.AccountID, &plan, &l.CreditsUsed, &l.CreditsTotal, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select ledger: %w", err)
	}
	l.Plan = model.Plan(plan)
	return &l, nil
}

func (r *ledgerRepo) Insert(ctx context.Context, tx repository.Tx, l *model.Ledger) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO ledgers (account_id, plan, credits_used, credits_total, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = ex.Exec(ctx, q, l.AccountID, string(l.Plan), l.CreditsUsed, l.CreditsTotal, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert ledger: %w", err)
	}
	return nil
}

// ConditionalIncrement relies on the row lock taken by UPDATE; concurrent callers re-evaluate the predicate.
func (r *ledgerRepo) ConditionalIncrement(ctx context.Context, tx repository.Tx, accountID string, amount int64) (bool, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return false, err
	}
	const q = `
UPDATE ledgers
SET credits_used = credits_used + $2, updated_at = $3
WHERE account_id = $1 AND credits_used + $2 <= credits_total`
	tag, err := ex.Exec(ctx, q, accountID, amount, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("increment ledger: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ledgerRepo) ZeroAllNonZero(ctx context.Context, tx repository.Tx) (int64, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	tag, err := ex.Exec(ctx, `UPDATE ledgers SET credits_used = 0, updated_at = $1 WHERE credits_used > 0`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("reset ledgers: %w", err)
	}
	return tag.RowsAffected(), nil
}
