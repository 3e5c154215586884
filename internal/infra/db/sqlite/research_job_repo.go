package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"research-orchestrator/internal/domain"
	"research-orchestrator/internal/domain/model"
	"research-orchestrator/internal/domain/ports/repository"
)

var _ repository.ResearchJobRepository = (*researchJobRepo)(nil)

type researchJobRepo struct {
	db *sql.DB
}

func NewResearchJobRepo(db *sql.DB) *researchJobRepo {
	return &researchJobRepo{db: db}
}

const selectResearchJob = `
SELECT id, query_id, query, content, status, last_error, created_at, updated_at
FROM research_jobs`

func (r *researchJobRepo) FindByQueryID(ctx context.Context, tx repository.Tx, queryID string) (*model.ResearchJob, error) {
	return r.findOne(ctx, tx, selectResearchJob+` WHERE query_id = ?`, queryID)
}

func (r *researchJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ResearchJob, error) {
	return r.findOne(ctx, tx, selectResearchJob+` WHERE id = ?`, id)
}

func (r *researchJobRepo) findOne(ctx context.Context, tx repository.Tx, q, arg string) (*model.ResearchJob, error) {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return nil, err
	}
	var (
		job                  model.ResearchJob
		status               string
		content              sql.NullString
		createdAt, updatedAt int64
	)
	err = ex.QueryRowContext(ctx, q, arg).Scan(&job.ID, &job.QueryID, &job.Query, &content, &status, &job.LastError, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select research job: %w", err)
	}
	job.Status = model.JobStatus(status)
	job.CreatedAt = fromMillis(createdAt)
	job.UpdatedAt = fromMillis(updatedAt)
	if content.Valid {
		var res model.ResearchResult
		if err := json.Unmarshal([]byte(content.String), &res); err != nil {
			return nil, fmt.Errorf("%w: decode content: %v", domain.ErrReadDatabaseRow, err)
		}
		job.Content = &res
	}
	return &job, nil
}

func (r *researchJobRepo) Insert(ctx context.Context, tx repository.Tx, job *model.ResearchJob) error {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return err
	}
	content, err := encodeContent(job.Content)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO research_jobs (id, query_id, query, content, status, last_error, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (query_id) DO NOTHING`
	res, err := ex.ExecContext(ctx, q,
		job.ID, job.QueryID, job.Query, content, string(job.Status), job.LastError, toMillis(job.CreatedAt), toMillis(job.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert research job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (r *researchJobRepo) Update(ctx context.Context, tx repository.Tx, id string, upd repository.JobUpdate) error {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return err
	}
	content, err := encodeContent(upd.Content)
	if err != nil {
		return err
	}
	const q = `
UPDATE research_jobs
SET status = ?, content = ?, last_error = ?, updated_at = ?
WHERE id = ? AND (? = '' OR status = ?)`
	ifStatus := string(upd.IfStatus)
	res, err := ex.ExecContext(ctx, q, string(upd.Status), content, upd.LastError, toMillis(time.Now()), id, ifStatus, ifStatus)
	if err != nil {
		return fmt.Errorf("update research job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update research job: %w", err)
	}
	if n > 0 {
		return nil
	}
	if upd.IfStatus == "" {
		return domain.ErrNotFound
	}

	var exists int
	if err := ex.QueryRowContext(ctx, `SELECT COUNT(1) FROM research_jobs WHERE id = ?`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check research job: %w", err)
	}
	if exists == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrStaleState
}

func encodeContent(res *model.ResearchResult) (sql.NullString, error) {
	if res == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(res)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode content: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
