package adapter

import "context"

// WorkerDispatcher hands a research job to the external worker.
// Any transport error or non-success response is reported as domain.ErrDispatchFailed.
type WorkerDispatcher interface {
	Dispatch(ctx context.Context, query, jobID string) error
}
