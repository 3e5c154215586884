//go:build !integration

package api

import (
	"context"
	"sync"
	"time"

	"research-orchestrator/internal/domain"
	"research-orchestrator/internal/domain/model"
	"research-orchestrator/internal/usecase"
)

type mockResearchUC struct {
	SubmitFunc    func(ctx context.Context, query string) (*usecase.SubmitResult, error)
	GetStatusFunc func(ctx context.Context, jobID string) (*usecase.JobStatusView, error)
	IngestFunc    func(ctx context.Context, in usecase.IngestInput) error
}

var _ usecase.ResearchUseCase = (*mockResearchUC)(nil)

func (m *mockResearchUC) ValidateQuery(query string) error {
	return model.ValidateQuery(query, 0)
}

func (m *mockResearchUC) Submit(ctx context.Context, query string) (*usecase.SubmitResult, error) {
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, query)
	}
	return &usecase.SubmitResult{JobID: "job-1", Status: model.JobStatusProcessing}, nil
}

func (m *mockResearchUC) GetStatus(ctx context.Context, jobID string) (*usecase.JobStatusView, error) {
	if m.GetStatusFunc != nil {
		return m.GetStatusFunc(ctx, jobID)
	}
	return nil, domain.ErrNotFound
}

func (m *mockResearchUC) IngestResult(ctx context.Context, in usecase.IngestInput) error {
	if m.IngestFunc != nil {
		return m.IngestFunc(ctx, in)
	}
	return nil
}

type mockCreditUC struct {
	mu         sync.Mutex
	authorized []string
	ledgers    map[string]*model.Ledger

	AuthorizeFunc func(ctx context.Context, accountID string, op model.Operation) error
}

var _ usecase.CreditUseCase = (*mockCreditUC)(nil)

func (m *mockCreditUC) Authorize(ctx context.Context, accountID string, op model.Operation) error {
	m.mu.Lock()
	m.authorized = append(m.authorized, accountID)
	m.mu.Unlock()
	if m.AuthorizeFunc != nil {
		return m.AuthorizeFunc(ctx, accountID, op)
	}
	return nil
}

func (m *mockCreditUC) ResetAll(ctx context.Context) (int64, error) { return 0, nil }

func (m *mockCreditUC) OpenLedger(ctx context.Context, accountID string) (*model.Ledger, error) {
	l, err := model.NewDefaultLedger(accountID)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ledgers == nil {
		m.ledgers = make(map[string]*model.Ledger)
	}
	m.ledgers[accountID] = l
	return l, nil
}

func (m *mockCreditUC) Ledger(ctx context.Context, accountID string) (*model.Ledger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.ledgers[accountID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return l, nil
}

func (m *mockCreditUC) Plans() map[model.Plan]model.BillingPlan { return model.BillingPlans }

// mockAccountUC knows a fixed set of key -> account mappings.
type mockAccountUC struct {
	mu       sync.Mutex
	keys     map[string]string
	inactive map[string]bool
}

var _ usecase.AccountUseCase = (*mockAccountUC)(nil)

func (m *mockAccountUC) Provision(ctx context.Context, accountID string, plan model.Plan) (*model.Ledger, *model.APIKey, error) {
	return nil, nil, domain.ErrInvalidArgument
}

func (m *mockAccountUC) Authenticate(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inactive[key] {
		return "", domain.ErrInactiveAPIKey
	}
	acct, ok := m.keys[key]
	if !ok {
		return "", domain.ErrUnauthorized
	}
	return acct, nil
}

func (m *mockAccountUC) keyOf(accountID string) (string, bool) {
	for k, acct := range m.keys {
		if acct == accountID {
			return k, true
		}
	}
	return "", false
}

func (m *mockAccountUC) APIKey(ctx context.Context, accountID string) (*model.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keyOf(accountID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &model.APIKey{AccountID: accountID, Key: k, IsActive: !m.inactive[k]}, nil
}

func (m *mockAccountUC) RegenerateAPIKey(ctx context.Context, accountID string) (*model.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keyOf(accountID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	delete(m.keys, k)
	delete(m.inactive, k)
	fresh := k + "-regenerated"
	m.keys[fresh] = accountID
	return &model.APIKey{AccountID: accountID, Key: fresh, IsActive: true}, nil
}

func (m *mockAccountUC) SetAPIKeyActive(ctx context.Context, accountID string, active bool) (*model.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keyOf(accountID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	m.inactive[k] = !active
	return &model.APIKey{AccountID: accountID, Key: k, IsActive: active}, nil
}

type mockLimiter struct {
	mu    sync.Mutex
	count map[string]int
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.count == nil {
		m.count = make(map[string]int)
	}
	m.count[key]++
	return m.count[key] <= limit, nil
}
