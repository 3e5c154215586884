//go:build !integration

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"research-orchestrator/internal/config"
	"research-orchestrator/internal/domain"
	"research-orchestrator/internal/domain/model"
	"research-orchestrator/internal/usecase"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	research *mockResearchUC
	credits  *mockCreditUC
	accounts *mockAccountUC
	tokens   *TokenManager
	handler  http.Handler
}

func newTestEnv(t *testing.T, cfg config.ServerConfig, workerToken string, limiter RateLimiter) *testEnv {
	t.Helper()
	logger := zerolog.Nop()
	env := &testEnv{
		research: &mockResearchUC{},
		credits:  &mockCreditUC{},
		tokens:   NewTokenManager("test-secret", time.Hour),
	}
	env.accounts = &mockAccountUC{
		keys:     map[string]string{"beyond-good": "acct-1", "beyond-revoked": "acct-2"},
		inactive: map[string]bool{"beyond-revoked": true},
	}
	srv := NewServer(cfg, workerToken, Deps{
		Research: env.research,
		Credits:  env.credits,
		Accounts: env.accounts,
		Tokens:   env.tokens,
		Limiter:  limiter,
	}, &logger)
	env.handler = srv.Router()
	return env
}

func (e *testEnv) do(method, target, body string, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

var goodKey = map[string]string{"x-api-key": "beyond-good"}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, config.ServerConfig{}, "", nil)
	rec, _ := e.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestLookup(t *testing.T) {
	e := newTestEnv(t, config.ServerConfig{}, "", nil)
	var gotQuery string
	var charged model.Operation
	e.research.SubmitFunc = func(ctx context.Context, q string) (*usecase.SubmitResult, error) {
		gotQuery = q
		charged, _ = ChargedOperation(ctx)
		return &usecase.SubmitResult{JobID: "job-9", Status: model.JobStatusProcessing}, nil
	}

	rec, body := e.do(http.MethodPost, "/api/research/lookup", `{"query":"Acme founders"}`, goodKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, body.Success)
	assert.Equal(t, "Acme founders", gotQuery)
	assert.Equal(t, model.OperationLookup, charged)
	assert.Equal(t, []string{"acct-1"}, e.credits.authorized)

	data := body.Data.(map[string]any)
	assert.Equal(t, "job-9", data["research_id"])
	assert.Equal(t, "PROCESSING", data["status"])
}

func TestLookup_Auth(t *testing.T) {
	e := newTestEnv(t, config.ServerConfig{}, "", nil)

	for name, hdr := range map[string]map[string]string{
		"missing": nil,
		"unknown": {"x-api-key": "beyond-nope"},
		"revoked": {"x-api-key": "beyond-revoked"},
	} {
		t.Run(name, func(t *testing.T) {
			rec, body := e.do(http.MethodPost, "/api/research/lookup", `{"query":"q"}`, hdr)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.False(t, body.Success)
		})
	}
	assert.Empty(t, e.credits.authorized, "credits are not touched for unauthenticated calls")
}

func TestLookup_QuotaExceeded(t *testing.T) {
	e := newTestEnv(t, config.ServerConfig{}, "", nil)
	e.credits.AuthorizeFunc = func(context.Context, string, model.Operation) error {
		return domain.ErrQuotaExceeded
	}
	submitted := false
	e.research.SubmitFunc = func(context.Context, string) (*usecase.SubmitResult, error) {
		submitted = true
		return nil, nil
	}

	rec, body := e.do(http.MethodPost, "/api/research/lookup", `{"query":"q"}`, goodKey)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, body.Success)
	assert.Contains(t, body.Message, "daily credit quota")
	assert.False(t, submitted)
}

func TestLookup_BadInputIsNotCharged(t *testing.T) {
	e := newTestEnv(t, config.ServerConfig{}, "", nil)
	submitted := false
	e.research.SubmitFunc = func(context.Context, string) (*usecase.SubmitResult, error) {
		submitted = true
		return nil, nil
	}

	for name, body := range map[string]string{
		"not json":    `not json`,
		"empty":       `{"query":""}`,
		"separators":  `{"query":" - \t"}`,
		"over length": `{"query":"` + strings.Repeat("a", model.MaxQueryLength+1) + `"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec, resp := e.do(http.MethodPost, "/api/research/lookup", body, goodKey)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, resp.Success)
		})
	}
	assert.Empty(t, e.credits.authorized, "rejected queries must not consume credits")
	assert.False(t, submitted)
}

func TestLookup_InternalErrorIsHidden(t *testing.T) {
	e := newTestEnv(t, config.ServerConfig{}, "", nil)
	e.research.SubmitFunc = func(context.Context, string) (*usecase.SubmitResult, error) {
		return nil, assert.AnError
	}
	rec, body := e.do(http.MethodPost, "/api/research/lookup", `{"query":"q"}`, goodKey)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", body.Message)
}

func TestLookup_RateLimited(t *testing.T) {
	cfg := config.ServerConfig{RateLimit: 2, RateLimitWindow: time.Minute}
	e := newTestEnv(t, cfg, "", &mockLimiter{})

	for i := 0; i < 2; i++ {
		rec, _ := e.do(http.MethodPost, "/api/research/lookup", `{"query":"q"}`, goodKey)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, _ := e.do(http.MethodPost, "/api/research/lookup", `{"query":"q"}`, goodKey)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Len(t, e.credits.authorized, 2, "rate-limited calls are not charged")
}

func TestStatus(t *testing.T) {
	e := newTestEnv(t, config.ServerConfig{}, "", nil)
	e.research.GetStatusFunc = func(_ context.Context, id string) (*usecase.JobStatusView, error) {
		if id != "job-1" {
			return nil, domain.ErrNotFound
		}
		return &usecase.JobStatusView{
			JobID:   "job-1",
			Status:  model.JobStatusCompleted,
			Content: &model.ResearchResult{Query: "q", PrimarySummary: "done"},
		}, nil
	}

	rec, body := e.do(http.MethodGet, "/api/research/status?research_id=job-1", "", goodKey)
	require.Equal(t, http.StatusOK, rec.Code)
	data := body.Data.(map[string]any)
	assert.Equal(t, "COMPLETED", data["job_status"])
	assert.Equal(t, "done", data["content"].(map[string]any)["primary_summary"])

	rec, _ = e.do(http.MethodGet, "/api/research/status?research_id=other", "", goodKey)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = e.do(http.MethodGet, "/api/research/status", "", goodKey)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = e.do(http.MethodGet, "/api/research/status?research_id=job-1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, e.credits.authorized, "status checks are free")
}

func TestUpdate(t *testing.T) {
	e := newTestEnv(t, config.ServerConfig{}, "worker-secret", nil)
	var got usecase.IngestInput
	e.research.IngestFunc = func(_ context.Context, in usecase.IngestInput) error {
		got = in
		return nil
	}
	payload := `{"research_id":"job-1","status":"COMPLETED","content":{"query":"q","tabs":[{"title":"t","content":"c","source":"s"}],"primary_summary":"p","tools_used":["web"]}}`

	rec, _ := e.do(http.MethodPost, "/api/research/update", payload, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body := e.do(http.MethodPost, "/api/research/update", payload, map[string]string{"X-Worker-Token": "worker-secret"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, body.Success)
	assert.Equal(t, "job-1", got.JobID)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	require.NotNil(t, got.Content)
	assert.Equal(t, "p", got.Content.PrimarySummary)
	require.Len(t, got.Content.Tabs, 1)
	assert.Equal(t, "s", got.Content.Tabs[0].Source)
}

func TestUpdate_ErrorMapping(t *testing.T) {
	e := newTestEnv(t, config.ServerConfig{}, "", nil)
	e.research.IngestFunc = func(_ context.Context, in usecase.IngestInput) error {
		if in.JobID == "missing" {
			return domain.ErrNotFound
		}
		return domain.ErrInvalidArgument
	}

	rec, _ := e.do(http.MethodPost, "/api/research/update", `{"research_id":"missing","status":"FAILED"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = e.do(http.MethodPost, "/api/research/update", `{"research_id":"x","status":"PROCESSING"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBillingConfig(t *testing.T) {
	e := newTestEnv(t, config.ServerConfig{}, "", nil)
	rec, body := e.do(http.MethodGet, "/api/billing/config", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := body.Data.(map[string]any)
	assert.Contains(t, data, "FREE")
	assert.Contains(t, data, "PREMIUM")
}

func TestBillingMe(t *testing.T) {
	e := newTestEnv(t, config.ServerConfig{}, "", nil)

	rec, _ := e.do(http.MethodGet, "/api/billing/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = e.do(http.MethodGet, "/api/billing/me", "", map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other := NewTokenManager("another-secret", time.Hour)
	forged, err := other.Mint("user-7", "u@example.com")
	require.NoError(t, err)
	rec, _ = e.do(http.MethodGet, "/api/billing/me", "", map[string]string{"Authorization": "Bearer " + forged})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, err := e.tokens.Mint("user-7", "u@example.com")
	require.NoError(t, err)
	rec, body := e.do(http.MethodGet, "/api/billing/me", "", map[string]string{"Authorization": "Bearer " + tok})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := body.Data.(map[string]any)
	assert.Equal(t, "FREE", data["plan"])
	assert.EqualValues(t, model.DefaultDailyCredits, data["credits_remaining"])
}

func TestAPIKeyManagement(t *testing.T) {
	e := newTestEnv(t, config.ServerConfig{}, "", nil)
	tok, err := e.tokens.Mint("acct-1", "a@example.com")
	require.NoError(t, err)
	bearer := map[string]string{"Authorization": "Bearer " + tok}
	lookup := func(key string) int {
		rec, _ := e.do(http.MethodPost, "/api/research/lookup", `{"query":"q"}`, map[string]string{"x-api-key": key})
		return rec.Code
	}

	rec, _ := e.do(http.MethodGet, "/api/api-key", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body := e.do(http.MethodGet, "/api/api-key", "", bearer)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := body.Data.(map[string]any)
	assert.Equal(t, "beyond-good", data["key"])
	assert.Equal(t, true, data["is_active"])

	t.Run("deactivated key is rejected on lookup", func(t *testing.T) {
		rec, body := e.do(http.MethodPut, "/api/api-key/status", `{"isActive":false}`, bearer)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "API key deactivated successfully", body.Message)
		assert.Equal(t, http.StatusUnauthorized, lookup("beyond-good"))

		rec, _ = e.do(http.MethodPut, "/api/api-key/status", `{"isActive":true}`, bearer)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, http.StatusOK, lookup("beyond-good"))
	})

	t.Run("status requires isActive", func(t *testing.T) {
		rec, _ := e.do(http.MethodPut, "/api/api-key/status", `{}`, bearer)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("regenerate replaces the secret", func(t *testing.T) {
		rec, body := e.do(http.MethodPost, "/api/api-key/regenerate", "", bearer)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		fresh := body.Data.(map[string]any)["key"].(string)
		assert.NotEqual(t, "beyond-good", fresh)
		assert.Equal(t, http.StatusUnauthorized, lookup("beyond-good"))
		assert.Equal(t, http.StatusOK, lookup(fresh))
	})

	t.Run("account without a key", func(t *testing.T) {
		other, err := e.tokens.Mint("acct-9", "")
		require.NoError(t, err)
		rec, _ := e.do(http.MethodGet, "/api/api-key", "", map[string]string{"Authorization": "Bearer " + other})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestTokenManager_Expired(t *testing.T) {
	tm := NewTokenManager("s", time.Hour)
	tm.ttl = -time.Minute
	tok, err := tm.Mint("u", "")
	require.NoError(t, err)
	_, err = tm.Parse(tok)
	assert.Error(t, err)
}
