package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"research-orchestrator/internal/domain"
	"research-orchestrator/internal/domain/model"
	"research-orchestrator/internal/domain/ports/adapter"
	"research-orchestrator/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memJobRepo enforces a unique query id and compare-and-set updates like the SQL backends.
type memJobRepo struct {
	mu      sync.Mutex
	byID    map[string]*model.ResearchJob
	byQuery map[string]string

	// hideQueryLookups makes the next n FindByQueryID calls miss, simulating an insert race.
	hideQueryLookups int
	findErr          error
	insertErr        error
	inserts          int
}

var _ repository.ResearchJobRepository = (*memJobRepo)(nil)

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{
		byID:    make(map[string]*model.ResearchJob),
		byQuery: make(map[string]string),
	}
}

func (m *memJobRepo) FindByQueryID(ctx context.Context, tx repository.Tx, queryID string) (*model.ResearchJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	if m.hideQueryLookups > 0 {
		m.hideQueryLookups--
		return nil, domain.ErrNotFound
	}
	id, ok := m.byQuery[queryID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *memJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ResearchJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	j, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) Insert(ctx context.Context, tx repository.Tx, job *model.ResearchJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	if _, ok := m.byQuery[job.QueryID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *job
	m.byID[job.ID] = &cp
	m.byQuery[job.QueryID] = job.ID
	m.inserts++
	return nil
}

func (m *memJobRepo) Update(ctx context.Context, tx repository.Tx, id string, upd repository.JobUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if upd.IfStatus != "" && j.Status != upd.IfStatus {
		return domain.ErrStaleState
	}
	j.Status = upd.Status
	j.Content = upd.Content
	j.LastError = upd.LastError
	j.UpdatedAt = time.Now()
	return nil
}

func (m *memJobRepo) get(id string) model.ResearchJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.byID[id]
}

type memLedgerRepo struct {
	mu      sync.Mutex
	ledgers map[string]*model.Ledger
}

var _ repository.LedgerRepository = (*memLedgerRepo)(nil)

func newMemLedgerRepo() *memLedgerRepo {
	return &memLedgerRepo{ledgers: make(map[string]*model.Ledger)}
}

func (m *memLedgerRepo) FindByAccount(ctx context.Context, tx repository.Tx, accountID string) (*model.Ledger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.ledgers[accountID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memLedgerRepo) Insert(ctx context.Context, tx repository.Tx, l *model.Ledger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ledgers[l.AccountID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *l
	m.ledgers[l.AccountID] = &cp
	return nil
}

func (m *memLedgerRepo) ConditionalIncrement(ctx context.Context, tx repository.Tx, accountID string, amount int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.ledgers[accountID]
	if !ok || l.CreditsUsed+amount > l.CreditsTotal {
		return false, nil
	}
	l.CreditsUsed += amount
	return true, nil
}

func (m *memLedgerRepo) ZeroAllNonZero(ctx context.Context, tx repository.Tx) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, l := range m.ledgers {
		if l.CreditsUsed > 0 {
			l.CreditsUsed = 0
			n++
		}
	}
	return n, nil
}

func (m *memLedgerRepo) put(l *model.Ledger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledgers[l.AccountID] = l
}

type memAPIKeyRepo struct {
	mu   sync.Mutex
	keys map[string]*model.APIKey // by account
}

var _ repository.APIKeyRepository = (*memAPIKeyRepo)(nil)

func newMemAPIKeyRepo() *memAPIKeyRepo {
	return &memAPIKeyRepo{keys: make(map[string]*model.APIKey)}
}

func (m *memAPIKeyRepo) FindByKey(ctx context.Context, tx repository.Tx, key string) (*model.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.keys {
		if k.Key == key {
			cp := *k
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memAPIKeyRepo) FindByAccount(ctx context.Context, tx repository.Tx, accountID string) (*model.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[accountID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *k
	return &cp, nil
}

func (m *memAPIKeyRepo) Save(ctx context.Context, tx repository.Tx, k *model.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *k
	m.keys[k.AccountID] = &cp
	return nil
}

// memTxManager serializes transactions; enough for the in-memory repos.
type memTxManager struct {
	mu sync.Mutex
}

func (m *memTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, repository.NoTX)
}

type mockDispatcher struct {
	calls        atomic.Int32
	DispatchFunc func(ctx context.Context, query, jobID string) error
}

var _ adapter.WorkerDispatcher = (*mockDispatcher)(nil)

func (m *mockDispatcher) Dispatch(ctx context.Context, query, jobID string) error {
	m.calls.Add(1)
	if m.DispatchFunc != nil {
		return m.DispatchFunc(ctx, query, jobID)
	}
	return nil
}

// inlineSubmitter runs tasks on a goroutine and lets tests wait for them.
type inlineSubmitter struct {
	wg   sync.WaitGroup
	full bool
}

func (s *inlineSubmitter) Submit(task func(ctx context.Context) error) error {
	if s.full {
		return errQueueFull
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = task(context.Background())
	}()
	return nil
}
