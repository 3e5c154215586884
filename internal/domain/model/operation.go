package model

import "research-orchestrator/internal/domain"

// Operation names a chargeable action.
type Operation string

const OperationLookup Operation = "LOOKUP"

// OperationCosts is the credit price of every chargeable operation.
var OperationCosts = map[Operation]int64{
	OperationLookup: 1,
}

// CostOf returns ErrUnknownOperation for operations missing from the cost table.
func CostOf(op Operation) (int64, error) {
	c, ok := OperationCosts[op]
	if !ok {
		return 0, domain.ErrUnknownOperation
	}
	return c, nil
}

// ChargePolicy decides what Authorize does with a ledger.
type ChargePolicy interface {
	isChargePolicy()
}

// PolicyBypass allows the operation and leaves the ledger untouched.
type PolicyBypass struct{}

// PolicyMetered consumes Cost credits atomically or rejects.
type PolicyMetered struct {
	Cost int64
}

func (PolicyBypass) isChargePolicy()  {}
func (PolicyMetered) isChargePolicy() {}

// PolicyFor selects the charge policy for a plan.
func PolicyFor(plan Plan, cost int64) ChargePolicy {
	if plan == PlanPremium {
		return PolicyBypass{}
	}
	return PolicyMetered{Cost: cost}
}
