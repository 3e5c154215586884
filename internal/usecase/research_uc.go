package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"research-orchestrator/internal/domain"
	"research-orchestrator/internal/domain/model"
	"research-orchestrator/internal/domain/ports/adapter"
	"research-orchestrator/internal/domain/ports/repository"
	"research-orchestrator/internal/infra/logging"
	"research-orchestrator/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ ResearchUseCase = (*researchUC)(nil)

// ResearchUseCase owns the research job lifecycle: dedup, dispatch and result ingestion.
type ResearchUseCase interface {
	// ValidateQuery applies Submit's input checks without touching storage.
	ValidateQuery(query string) error
	Submit(ctx context.Context, query string) (*SubmitResult, error)
	GetStatus(ctx context.Context, jobID string) (*JobStatusView, error)
	IngestResult(ctx context.Context, in IngestInput) error
}

type SubmitResult struct {
	JobID  string
	Status model.JobStatus
}

// JobStatusView carries Content only for COMPLETED jobs.
type JobStatusView struct {
	JobID   string
	Status  model.JobStatus
	Content *model.ResearchResult
}

// IngestInput is a worker report. Error is kept as the failure reason for FAILED reports.
type IngestInput struct {
	JobID   string
	Status  model.JobStatus
	Content *model.ResearchResult
	Error   string
}

// TaskSubmitter queues background work; Submit fails fast when saturated.
type TaskSubmitter interface {
	Submit(task func(ctx context.Context) error) error
}

type ResearchOptions struct {
	MaxQueryLength  int
	DispatchTimeout time.Duration
	// StrictTransitions only lets worker reports move a job out of PROCESSING.
	StrictTransitions bool
	// Async, when set, runs dispatches off the request path.
	Async TaskSubmitter
}

type researchUC struct {
	jobs       repository.ResearchJobRepository
	dispatcher adapter.WorkerDispatcher
	opts       ResearchOptions
	log        *zerolog.Logger
}

func NewResearchUseCase(jobs repository.ResearchJobRepository, dispatcher adapter.WorkerDispatcher, opts ResearchOptions, logger *zerolog.Logger) *researchUC {
	if opts.DispatchTimeout <= 0 {
		opts.DispatchTimeout = 10 * time.Second
	}
	if opts.MaxQueryLength <= 0 {
		opts.MaxQueryLength = model.MaxQueryLength
	}
	l := logger.With().Str("component", "ResearchUC").Logger()
	return &researchUC{
		jobs:       jobs,
		dispatcher: dispatcher,
		opts:       opts,
		log:        &l,
	}
}

func (uc *researchUC) ValidateQuery(query string) error {
	return model.ValidateQuery(query, uc.opts.MaxQueryLength)
}

func (uc *researchUC) Submit(ctx context.Context, query string) (*SubmitResult, error) {
	defer logging.TraceDuration(uc.log, "ResearchUC.Submit")()

	job, err := model.NewResearchJob(query, uc.opts.MaxQueryLength)
	if err != nil {
		metrics.IncSubmission("invalid")
		return nil, err
	}

	existing, err := uc.jobs.FindByQueryID(ctx, repository.NoTX, job.QueryID)
	if err == nil {
		return uc.reuse(ctx, existing)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("find job by query id: %w", err)
	}

	if err := uc.jobs.Insert(ctx, repository.NoTX, job); err != nil {
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return nil, fmt.Errorf("insert job: %w", err)
		}
		// Lost the insert race; the committed row wins.
		winner, err := uc.jobs.FindByQueryID(ctx, repository.NoTX, job.QueryID)
		if err != nil {
			return nil, fmt.Errorf("reload job after conflict: %w", err)
		}
		return uc.reuse(ctx, winner)
	}

	metrics.IncSubmission("created")
	logging.With(ctx, uc.log).Info().Str("job_id", job.ID).Str("query_id", job.QueryID).Msg("research job created")
	uc.dispatch(ctx, job.ID, job.Query)
	return &SubmitResult{JobID: job.ID, Status: model.JobStatusProcessing}, nil
}

// reuse returns an existing job, re-arming it first when it previously FAILED.
func (uc *researchUC) reuse(ctx context.Context, job *model.ResearchJob) (*SubmitResult, error) {
	if job.Status != model.JobStatusFailed {
		metrics.IncSubmission("reused")
		return &SubmitResult{JobID: job.ID, Status: job.Status}, nil
	}

	err := uc.jobs.Update(ctx, repository.NoTX, job.ID, repository.JobUpdate{
		Status:   model.JobStatusProcessing,
		IfStatus: model.JobStatusFailed,
	})
	if errors.Is(err, domain.ErrStaleState) {
		cur, err := uc.jobs.FindByID(ctx, repository.NoTX, job.ID)
		if err != nil {
			return nil, fmt.Errorf("reload re-armed job: %w", err)
		}
		metrics.IncSubmission("reused")
		return &SubmitResult{JobID: cur.ID, Status: cur.Status}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("re-arm failed job: %w", err)
	}

	metrics.IncSubmission("retried")
	logging.With(ctx, uc.log).Info().Str("job_id", job.ID).Msg("failed research job re-armed")
	uc.dispatch(ctx, job.ID, job.Query)
	return &SubmitResult{JobID: job.ID, Status: model.JobStatusProcessing}, nil
}

func (uc *researchUC) dispatch(ctx context.Context, jobID, query string) {
	if uc.opts.Async != nil {
		err := uc.opts.Async.Submit(func(ctx context.Context) error {
			return uc.dispatchNow(ctx, jobID, query)
		})
		if err == nil {
			return
		}
		uc.log.Warn().Err(err).Str("job_id", jobID).Msg("dispatch queue full, dispatching inline")
	}
	_ = uc.dispatchNow(ctx, jobID, query)
}

// dispatchNow calls the worker and converts the job to FAILED when the hand-off does not succeed.
// A caller going away does not abort the hand-off.
func (uc *researchUC) dispatchNow(ctx context.Context, jobID, query string) error {
	base := context.WithoutCancel(ctx)
	dctx, cancel := context.WithTimeout(base, uc.opts.DispatchTimeout)
	defer cancel()

	start := time.Now()
	err := uc.dispatcher.Dispatch(dctx, query, jobID)
	metrics.ObserveDispatch(err == nil, time.Since(start))
	if err == nil {
		return nil
	}

	l := logging.With(logging.WithJobID(ctx, jobID), uc.log)
	l.Error().Err(err).Msg("dispatch failed, marking job FAILED")
	uerr := uc.jobs.Update(base, repository.NoTX, jobID, repository.JobUpdate{
		Status:    model.JobStatusFailed,
		LastError: err.Error(),
		IfStatus:  model.JobStatusProcessing,
	})
	if uerr != nil && !errors.Is(uerr, domain.ErrStaleState) {
		l.Error().Err(uerr).Msg("could not mark job FAILED")
		return uerr
	}
	return err
}

func (uc *researchUC) GetStatus(ctx context.Context, jobID string) (*JobStatusView, error) {
	defer logging.TraceDuration(uc.log, "ResearchUC.GetStatus")()

	if _, err := uuid.Parse(jobID); err != nil {
		return nil, domain.ErrNotFound
	}
	job, err := uc.jobs.FindByID(ctx, repository.NoTX, jobID)
	if err != nil {
		return nil, err
	}
	view := &JobStatusView{JobID: job.ID, Status: job.Status}
	if job.Status == model.JobStatusCompleted {
		view.Content = job.Content
	}
	return view, nil
}

func (uc *researchUC) IngestResult(ctx context.Context, in IngestInput) error {
	defer logging.TraceDuration(uc.log, "ResearchUC.IngestResult")()

	if !in.Status.Terminal() {
		return fmt.Errorf("%w: status must be COMPLETED or FAILED", domain.ErrInvalidArgument)
	}
	if in.Status == model.JobStatusCompleted && in.Content == nil {
		return fmt.Errorf("%w: COMPLETED requires content", domain.ErrInvalidArgument)
	}
	if _, err := uuid.Parse(in.JobID); err != nil {
		return domain.ErrNotFound
	}

	upd := repository.JobUpdate{Status: in.Status}
	if in.Status == model.JobStatusCompleted {
		upd.Content = in.Content
	} else {
		upd.LastError = in.Error
	}
	if uc.opts.StrictTransitions {
		upd.IfStatus = model.JobStatusProcessing
	}

	l := logging.With(logging.WithJobID(ctx, in.JobID), uc.log)
	err := uc.jobs.Update(ctx, repository.NoTX, in.JobID, upd)
	if uc.opts.StrictTransitions && errors.Is(err, domain.ErrStaleState) {
		metrics.IncIngest("ignored")
		l.Debug().Str("status", string(in.Status)).Msg("late worker report ignored")
		return nil
	}
	if err != nil {
		return err
	}

	metrics.IncIngest(string(in.Status))
	l.Info().Str("status", string(in.Status)).Msg("worker result ingested")
	return nil
}
