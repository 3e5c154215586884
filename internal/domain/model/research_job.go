package model

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"research-orchestrator/internal/domain"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a research job.
type JobStatus string

const (
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// MaxQueryLength bounds the stored query text, counted in runes.
const MaxQueryLength = 500

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the worker has reported back for this status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ResearchJob is one unit of research work keyed by its normalized query.
// Content is only set while the job is COMPLETED.
type ResearchJob struct {
	ID        string
	QueryID   string
	Query     string
	Content   *ResearchResult
	Status    JobStatus
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewResearchJob builds a PROCESSING job for query. maxLen <= 0 falls back to MaxQueryLength.
func NewResearchJob(query string, maxLen int) (*ResearchJob, error) {
	if err := ValidateQuery(query, maxLen); err != nil {
		return nil, err
	}
	key := QueryID(query)
	now := time.Now().UTC()
	return &ResearchJob{
		ID:        uuid.NewString(),
		QueryID:   key,
		Query:     query,
		Status:    JobStatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ValidateQuery rejects queries longer than maxLen runes or with an empty dedup key.
func ValidateQuery(query string, maxLen int) error {
	if maxLen <= 0 {
		maxLen = MaxQueryLength
	}
	if utf8.RuneCountInString(query) > maxLen {
		return fmt.Errorf("%w: query exceeds %d characters", domain.ErrInvalidArgument, maxLen)
	}
	if QueryID(query) == "" {
		return fmt.Errorf("%w: query is empty", domain.ErrInvalidArgument)
	}
	return nil
}

// QueryID derives the dedup key: lower-cased, with every whitespace rune and '-' removed.
func QueryID(query string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' {
			return -1
		}
		return r
	}, strings.ToLower(query))
}
