package agent

import (
	"context"

	"research-orchestrator/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

var _ adapter.WorkerDispatcher = (*NoopDispatcher)(nil)

// NoopDispatcher accepts every job without contacting a worker. Dev mode only.
type NoopDispatcher struct {
	log *zerolog.Logger
}

func NewNoopDispatcher(logger *zerolog.Logger) *NoopDispatcher {
	return &NoopDispatcher{log: logger}
}

func (n *NoopDispatcher) Dispatch(_ context.Context, query, jobID string) error {
	n.log.Debug().Str("job_id", jobID).Str("query", query).Msg("noop dispatch")
	return nil
}
