package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"research-orchestrator/internal/domain"
	"research-orchestrator/internal/domain/model"
	"research-orchestrator/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

var _ repository.ResearchJobRepository = (*researchJobRepo)(nil)

type researchJobRepo struct {
	pool *pgxpool.Pool
}

func NewResearchJobRepo(pool *pgxpool.Pool) *researchJobRepo {
	return &researchJobRepo{pool: pool}
}

const selectResearchJob = `
SELECT id, query_id, query, content, status, last_error, created_at, updated_at
FROM research_jobs`

func (r *researchJobRepo) FindByQueryID(ctx context.Context, tx repository.Tx, queryID string) (*model.ResearchJob, error) {
	return r.findOne(ctx, tx, selectResearchJob+` WHERE query_id = $1`, queryID)
}

func (r *researchJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ResearchJob, error) {
	return r.findOne(ctx, tx, selectResearchJob+` WHERE id = $1`, id)
}

func (r *researchJobRepo) findOne(ctx context.Context, tx repository.Tx, q string, arg string) (*model.ResearchJob, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	job, err := scanResearchJob(ex.QueryRow(ctx, q, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select research job: %w", err)
	}
	return job, nil
}

func (r *researchJobRepo) Insert(ctx context.Context, tx repository.Tx, job *model.ResearchJob) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	content, err := encodeContent(job.Content)
	if err != nil {
		return err
	}

	// A concurrent insert of the same query_id resolves to zero rows instead of an aborted statement.
	const q = `
INSERT INTO research_jobs (id, query_id, query, content, status, last_error, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (query_id) DO NOTHING;`

	tag, err := ex.Exec(ctx, q,
		job.ID, job.QueryID, job.Query, content, string(job.Status), job.LastError, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert research job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (r *researchJobRepo) Update(ctx context.Context, tx repository.Tx, id string, upd repository.JobUpdate) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	content, err := encodeContent(upd.Content)
	if err != nil {
		return err
	}

	const q = `
UPDATE research_jobs
SET status = $2, content = $3, last_error = $4, updated_at = $5
WHERE id = $1 AND ($6::text = '' OR status = $6::text);`

	tag, err := ex.Exec(ctx, q, id, string(upd.Status), content, upd.LastError, time.Now().UTC(), string(upd.IfStatus))
	if err != nil {
		return fmt.Errorf("update research job: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if upd.IfStatus == "" {
		return domain.ErrNotFound
	}

	var exists bool
	if err := ex.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM research_jobs WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check research job: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrStaleState
}

func scanResearchJob(row pgx.Row) (*model.ResearchJob, error) {
	var (
		job     model.ResearchJob
		status  string
		content []byte
	)
	if err := row.Scan(&job.ID, &job.QueryID, &job.Query, &content, &status, &job.LastError, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return nil, err
	}
	job.Status = model.JobStatus(status)
	if len(content) > 0 {
		var res model.ResearchResult
		if err := json.Unmarshal(content, &res); err != nil {
			return nil, fmt.Errorf("%w: decode content: %v", domain.ErrReadDatabaseRow, err)
		}
		job.Content = &res
	}
	return &job, nil
}

// encodeContent maps a nil result to SQL NULL.
func encodeContent(res *model.ResearchResult) (interface{}, error) {
	if res == nil {
		return nil, nil
	}
	b, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode content: %w", err)
	}
	return b, nil
}
