package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"research-orchestrator/internal/domain"
	"research-orchestrator/internal/domain/model"
	"research-orchestrator/internal/domain/ports/repository"
)

var _ repository.LedgerRepository = (*ledgerRepo)(nil)

type ledgerRepo struct {
	db *sql.DB
}

func NewLedgerRepo(db *sql.DB) *ledgerRepo {
	return &ledgerRepo{db: db}
}

func (r *ledgerRepo) FindByAccount(ctx context.Context, tx repository.Tx, accountID string) (*model.Ledger, error) {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return nil, err
	}
	var (
		l                    model.Ledger
		plan                 string
		createdAt, updatedAt int64
	)
	err = ex.QueryRowContext(ctx, `
SELECT account_id, plan, credits_used, credits_total, created_at, updated_at
FROM ledgers WHERE account_id = ?`, accountID).
		Scan(&l.AccountID, &plan, &l.CreditsUsed, &l.CreditsTotal, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select ledger: %w", err)
	}
	l.Plan = model.Plan(plan)
	l.CreatedAt = fromMillis(createdAt)
	l.UpdatedAt = fromMillis(updatedAt)
	return &l, nil
}

func (r *ledgerRepo) Insert(ctx context.Context, tx repository.Tx, l *model.Ledger) error {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `
INSERT INTO ledgers (account_id, plan, credits_used, credits_total, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		l.AccountID, string(l.Plan), l.CreditsUsed, l.CreditsTotal, toMillis(l.CreatedAt), toMillis(l.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert ledger: %w", err)
	}
	return nil
}

func (r *ledgerRepo) ConditionalIncrement(ctx context.Context, tx repository.Tx, accountID string, amount int64) (bool, error) {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return false, err
	}
	res, err := ex.ExecContext(ctx, `
UPDATE ledgers
SET credits_used = credits_used + ?1, updated_at = ?2
WHERE account_id = ?3 AND credits_used + ?1 <= credits_total`,
		amount, toMillis(time.Now()), accountID)
	if err != nil {
		return false, fmt.Errorf("increment ledger: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("increment ledger: %w", err)
	}
	return n == 1, nil
}

func (r *ledgerRepo) ZeroAllNonZero(ctx context.Context, tx repository.Tx) (int64, error) {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return 0, err
	}
	res, err := ex.ExecContext(ctx, `UPDATE ledgers SET credits_used = 0, updated_at = ? WHERE credits_used > 0`, toMillis(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("reset ledgers: %w", err)
	}
	return res.RowsAffected()
}
