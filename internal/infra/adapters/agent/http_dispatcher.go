// File: internal/infra/adapters/agent/http_dispatcher.go
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"research-orchestrator/internal/domain"
	"research-orchestrator/internal/domain/ports/adapter"
	"research-orchestrator/internal/infra/logging"
)

var _ adapter.WorkerDispatcher = (*HTTPDispatcher)(nil)

const lookupPath = "/agent/lookup"

// HTTPDispatcher posts jobs to the research agent's lookup endpoint.
// The agent reports back asynchronously through the result callback.
type HTTPDispatcher struct {
	endpoint string
	client   *http.Client
}

func NewHTTPDispatcher(baseURL string, timeout time.Duration) (*HTTPDispatcher, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid worker base url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPDispatcher{
		endpoint: u.String() + lookupPath,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

type lookupRequest struct {
	Query      string `json:"query"`
	ResearchID string `json:"research_id"`
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, query, jobID string) error {
	b, err := json.Marshal(lookupRequest{Query: query, ResearchID: jobID})
	if err != nil {
		return fmt.Errorf("%w: encode request: %v", domain.ErrDispatchFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDispatchFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if tid := logging.TraceIDFrom(ctx); tid != "" {
		req.Header.Set("X-Request-ID", tid)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDispatchFailed, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: worker responded %d", domain.ErrDispatchFailed, resp.StatusCode)
	}
	return nil
}
