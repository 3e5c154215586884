package repository

import (
	"context"

	"research-orchestrator/internal/domain/model"
)

type LedgerRepository interface {
	FindByAccount(ctx context.Context, tx Tx, accountID string) (*model.Ledger, error)
	Insert(ctx context.Context, tx Tx, l *model.Ledger) error
	// ConditionalIncrement adds amount to credits_used only if the result stays
	// within credits_total. It reports whether the increment was applied.
	ConditionalIncrement(ctx context.Context, tx Tx, accountID string, amount int64) (bool, error)
	// ZeroAllNonZero sets credits_used to 0 wherever it is positive and
	// returns the number of ledgers touched.
	ZeroAllNonZero(ctx context.Context, tx Tx) (int64, error)
}
