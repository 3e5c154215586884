package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"research-orchestrator/internal/domain/model"
	"research-orchestrator/internal/domain/ports/repository"
	"research-orchestrator/internal/infra/metrics"
	red "research-orchestrator/internal/infra/redis"

	"github.com/rs/zerolog"
)

var _ repository.ResearchJobRepository = (*researchJobCacheDecorator)(nil)

// jobTombstone marks a key whose row was just written. Read misses fill with
// SETNX, so a reader holding a row fetched before the write cannot replace it.
const (
	jobTombstone    = "-"
	jobTombstoneTTL = 10 * time.Second
)

// researchJobCacheDecorator serves polled status reads for COMPLETED jobs from Redis.
// Dedup lookups and every write go straight to the inner repository.
type researchJobCacheDecorator struct {
	inner repository.ResearchJobRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewResearchJobCacheDecorator(inner repository.ResearchJobRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.ResearchJobRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	l := logger.With().Str("component", "ResearchJobCache").Logger()
	return &researchJobCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   &l,
	}
}

func jobCacheKey(id string) string { return fmt.Sprintf("research_job:%s", id) }

func (d *researchJobCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ResearchJob, error) {
	if tx != nil {
		return d.inner.FindByID(ctx, tx, id)
	}
	key := jobCacheKey(id)
	val, err := d.cache.Get(ctx, key)
	switch {
	case err == nil && val != jobTombstone:
		var job model.ResearchJob
		if json.Unmarshal([]byte(val), &job) == nil {
			metrics.IncCacheRequest("research_job", "hit")
			return &job, nil
		}
	case err != nil && !errors.Is(err, red.Nil):
		d.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	metrics.IncCacheRequest("research_job", "miss")
	job, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if job.Status == model.JobStatusCompleted {
		d.fill(ctx, key, job)
	}
	return job, nil
}

func (d *researchJobCacheDecorator) fill(ctx context.Context, key string, job *model.ResearchJob) {
	b, err := json.Marshal(job)
	if err != nil {
		return
	}
	ok, err := d.cache.SetNX(ctx, key, b, d.ttl)
	if err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		return
	}
	if !ok {
		d.log.Debug().Str("key", key).Msg("cache fill skipped, entry changed meanwhile")
	}
}

func (d *researchJobCacheDecorator) FindByQueryID(ctx context.Context, tx repository.Tx, queryID string) (*model.ResearchJob, error) {
	return d.inner.FindByQueryID(ctx, tx, queryID)
}

func (d *researchJobCacheDecorator) Insert(ctx context.Context, tx repository.Tx, job *model.ResearchJob) error {
	return d.inner.Insert(ctx, tx, job)
}

// Update tombstones the key before and after the write.
func (d *researchJobCacheDecorator) Update(ctx context.Context, tx repository.Tx, id string, upd repository.JobUpdate) error {
	key := jobCacheKey(id)
	d.invalidate(ctx, key)
	if err := d.inner.Update(ctx, tx, id, upd); err != nil {
		return err
	}
	d.invalidate(ctx, key)
	return nil
}

func (d *researchJobCacheDecorator) invalidate(ctx context.Context, key string) {
	if err := d.cache.Set(ctx, key, jobTombstone, jobTombstoneTTL); err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("cache invalidation failed")
	}
}
