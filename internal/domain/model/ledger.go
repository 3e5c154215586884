package model

import (
	"time"

	"research-orchestrator/internal/domain"
)

// Plan is the billing tier of an account.
type Plan string

const (
	PlanFree    Plan = "FREE"
	PlanPremium Plan = "PREMIUM"
)

// DefaultDailyCredits is the FREE allotment restored by the daily reset.
const DefaultDailyCredits = 10

func (p Plan) Valid() bool { return p == PlanFree || p == PlanPremium }

// Ledger tracks credit consumption for a single account.
// CreditsUsed only moves through the metered consume path and the daily reset.
type Ledger struct {
	AccountID    string
	Plan         Plan
	CreditsUsed  int64
	CreditsTotal int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Remaining is never negative.
func (l *Ledger) Remaining() int64 {
	if l.CreditsUsed >= l.CreditsTotal {
		return 0
	}
	return l.CreditsTotal - l.CreditsUsed
}

// NewLedger validates and constructs a fresh ledger with nothing consumed.
func NewLedger(accountID string, plan Plan, total int64) (*Ledger, error) {
	if accountID == "" || !plan.Valid() || total < 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	return &Ledger{
		AccountID:    accountID,
		Plan:         plan,
		CreditsTotal: total,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NewDefaultLedger is the ledger every new account starts with.
func NewDefaultLedger(accountID string) (*Ledger, error) {
	return NewLedger(accountID, PlanFree, DefaultDailyCredits)
}
