package usecase

import (
	"context"
	"errors"
	"fmt"

	"research-orchestrator/internal/domain"
	"research-orchestrator/internal/domain/model"
	"research-orchestrator/internal/domain/ports/repository"
	"research-orchestrator/internal/infra/logging"
	"research-orchestrator/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ CreditUseCase = (*creditUC)(nil)

// CreditUseCase meters chargeable operations against per-account ledgers.
type CreditUseCase interface {
	// Authorize consumes the operation's cost or fails with domain.ErrQuotaExceeded.
	Authorize(ctx context.Context, accountID string, op model.Operation) error
	// ResetAll zeroes consumption on every ledger. Safe to run repeatedly.
	ResetAll(ctx context.Context) (int64, error)
	// OpenLedger persists a FREE ledger with the configured daily allowance, or returns the existing one.
	OpenLedger(ctx context.Context, accountID string) (*model.Ledger, error)
	Ledger(ctx context.Context, accountID string) (*model.Ledger, error)
	Plans() map[model.Plan]model.BillingPlan
}

type creditUC struct {
	ledgers   repository.LedgerRepository
	freeDaily int64
	log       *zerolog.Logger
}

func NewCreditUseCase(ledgers repository.LedgerRepository, freeDailyCredits int64, logger *zerolog.Logger) *creditUC {
	if freeDailyCredits <= 0 {
		freeDailyCredits = model.DefaultDailyCredits
	}
	l := logger.With().Str("component", "CreditUC").Logger()
	return &creditUC{ledgers: ledgers, freeDaily: freeDailyCredits, log: &l}
}

func (uc *creditUC) Authorize(ctx context.Context, accountID string, op model.Operation) error {
	defer logging.TraceDuration(uc.log, "CreditUC.Authorize")()

	cost, err := model.CostOf(op)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidArgument, err)
	}
	if accountID == "" {
		return domain.ErrInvalidArgument
	}

	ledger, err := uc.ledgers.FindByAccount(ctx, repository.NoTX, accountID)
	if err != nil {
		return err
	}

	l := logging.With(ctx, uc.log)
	switch p := model.PolicyFor(ledger.Plan, cost).(type) {
	case model.PolicyBypass:
		metrics.IncCreditDecision(string(op), "bypass")
		return nil
	case model.PolicyMetered:
		ok, err := uc.ledgers.ConditionalIncrement(ctx, repository.NoTX, accountID, p.Cost)
		if err != nil {
			return fmt.Errorf("consume credits: %w", err)
		}
		if !ok {
			metrics.IncCreditDecision(string(op), "rejected")
			l.Info().Str("operation", string(op)).Msg("credit quota exhausted")
			return domain.ErrQuotaExceeded
		}
		metrics.IncCreditDecision(string(op), "consumed")
		metrics.AddCreditsConsumed(p.Cost)
		return nil
	default:
		return domain.ErrInvalidArgument
	}
}

func (uc *creditUC) ResetAll(ctx context.Context) (int64, error) {
	defer logging.TraceDuration(uc.log, "CreditUC.ResetAll")()

	n, err := uc.ledgers.ZeroAllNonZero(ctx, repository.NoTX)
	if err != nil {
		return 0, fmt.Errorf("reset credits: %w", err)
	}
	metrics.IncCreditReset(n)
	uc.log.Info().Int64("ledgers", n).Msg("credits reset")
	return n, nil
}

func (uc *creditUC) OpenLedger(ctx context.Context, accountID string) (*model.Ledger, error) {
	l, err := model.NewLedger(accountID, model.PlanFree, uc.freeDaily)
	if err != nil {
		return nil, err
	}
	err = uc.ledgers.Insert(ctx, repository.NoTX, l)
	if errors.Is(err, domain.ErrAlreadyExists) {
		return uc.ledgers.FindByAccount(ctx, repository.NoTX, accountID)
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	uc.log.Info().Str("account_id", accountID).Msg("ledger opened")
	return l, nil
}

func (uc *creditUC) Ledger(ctx context.Context, accountID string) (*model.Ledger, error) {
	if accountID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return uc.ledgers.FindByAccount(ctx, repository.NoTX, accountID)
}

// Plans returns the catalog with the FREE tier showing the configured allowance.
func (uc *creditUC) Plans() map[model.Plan]model.BillingPlan {
	plans := make(map[model.Plan]model.BillingPlan, len(model.BillingPlans))
	for id, p := range model.BillingPlans {
		if id == model.PlanFree {
			p.DailyCredits = uc.freeDaily
			p.Features = append([]string{fmt.Sprintf("%d Credits per day", uc.freeDaily)}, p.Features[1:]...)
		}
		plans[id] = p
	}
	return plans
}
