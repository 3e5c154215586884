package repository

import (
	"context"

	"research-orchestrator/internal/domain/model"
)

// JobUpdate overwrites status, content and last error of a job.
// A non-empty IfStatus turns the write into a compare-and-set on the current status.
type JobUpdate struct {
	Status    model.JobStatus
	Content   *model.ResearchResult
	LastError string
	IfStatus  model.JobStatus
}

type ResearchJobRepository interface {
	// FindByQueryID returns domain.ErrNotFound when no job carries the key.
	FindByQueryID(ctx context.Context, tx Tx, queryID string) (*model.ResearchJob, error)
	FindByID(ctx context.Context, tx Tx, id string) (*model.ResearchJob, error)
	// Insert fails with domain.ErrAlreadyExists when the query id is taken.
	Insert(ctx context.Context, tx Tx, job *model.ResearchJob) error
	// Update returns domain.ErrNotFound for an unknown id and
	// domain.ErrStaleState when IfStatus does not match.
	Update(ctx context.Context, tx Tx, id string, upd JobUpdate) error
}
