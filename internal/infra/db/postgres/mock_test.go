//go:build !integration

package postgres

import (
	"context"
	"time"

	"research-orchestrator/internal/domain/model"
	"research-orchestrator/internal/domain/ports/repository"
	red "research-orchestrator/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerJobRepo mocks the database repository that the job decorator wraps.
type mockInnerJobRepo struct {
	FindByIDFunc      func(ctx context.Context, tx repository.Tx, id string) (*model.ResearchJob, error)
	FindByQueryIDFunc func(ctx context.Context, tx repository.Tx, queryID string) (*model.ResearchJob, error)
	InsertFunc        func(ctx context.Context, tx repository.Tx, job *model.ResearchJob) error
	UpdateFunc        func(ctx context.Context, tx repository.Tx, id string, upd repository.JobUpdate) error
}

func (m *mockInnerJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ResearchJob, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerJobRepo) FindByQueryID(ctx context.Context, tx repository.Tx, queryID string) (*model.ResearchJob, error) {
	return m.FindByQueryIDFunc(ctx, tx, queryID)
}
func (m *mockInnerJobRepo) Insert(ctx context.Context, tx repository.Tx, job *model.ResearchJob) error {
	return m.InsertFunc(ctx, tx, job)
}
func (m *mockInnerJobRepo) Update(ctx context.Context, tx repository.Tx, id string, upd repository.JobUpdate) error {
	return m.UpdateFunc(ctx, tx, id, upd)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc   func(ctx context.Context, key string) (string, error)
	SetFunc   func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	SetNXFunc func(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	DelFunc   func(ctx context.Context, keys ...string) error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc == nil {
		return "", red.Nil
	}
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	if m.SetNXFunc == nil {
		return true, nil
	}
	return m.SetNXFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc == nil {
		return nil
	}
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }
func (m *mockRedisClient) Close() error { return nil }
