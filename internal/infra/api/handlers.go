package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"research-orchestrator/internal/domain"
	"research-orchestrator/internal/domain/model"
	"research-orchestrator/internal/infra/logging"
	"research-orchestrator/internal/usecase"
)

type lookupRequest struct {
	Query string `json:"query"`
}

type lookupResponse struct {
	ResearchID string          `json:"research_id"`
	Status     model.JobStatus `json:"status"`
}

type statusResponse struct {
	ResearchID string                `json:"research_id"`
	JobStatus  model.JobStatus       `json:"job_status"`
	Content    *model.ResearchResult `json:"content,omitempty"`
}

// updateRequest is the worker callback payload.
type updateRequest struct {
	ResearchID string                `json:"research_id"`
	Content    *model.ResearchResult `json:"content"`
	Status     model.JobStatus       `json:"status"`
	Error      string                `json:"error,omitempty"`
}

type apiKeyResponse struct {
	Key       string    `json:"key"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type apiKeyStatusRequest struct {
	IsActive *bool `json:"isActive"`
}

type ledgerResponse struct {
	Plan             model.Plan `json:"plan"`
	CreditsUsed      int64      `json:"credits_used"`
	CreditsTotal     int64      `json:"credits_total"`
	CreditsRemaining int64      `json:"credits_remaining"`
	Unlimited        bool       `json:"unlimited"`
}

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrInvalidArgument)
	}
	return nil
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	req, ok := lookupFrom(r.Context())
	if !ok {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, s.log, err)
			return
		}
	}
	res, err := s.research.Submit(r.Context(), req.Query)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if op, charged := ChargedOperation(r.Context()); charged {
		l := logging.With(r.Context(), s.log)
		l.Info().Str("operation", string(op)).Str("research_id", res.JobID).Msg("charged lookup accepted")
	}
	writeOK(w, "Research initiated successfully", lookupResponse{ResearchID: res.JobID, Status: res.Status})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("research_id")
	if id == "" {
		writeError(w, r, s.log, fmt.Errorf("%w: research_id is required", domain.ErrInvalidArgument))
		return
	}
	view, err := s.research.GetStatus(r.Context(), id)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, "Status retrieved successfully", statusResponse{
		ResearchID: view.JobID,
		JobStatus:  view.Status,
		Content:    view.Content,
	})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	err := s.research.IngestResult(r.Context(), usecase.IngestInput{
		JobID:   req.ResearchID,
		Status:  req.Status,
		Content: req.Content,
		Error:   req.Error,
	})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, "Research updated successfully", nil)
}

func (s *Server) handleBillingConfig(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, "Billing config fetched successfully", s.credits.Plans())
}

// handleBillingMe opens the default ledger on first access.
func (s *Server) handleBillingMe(w http.ResponseWriter, r *http.Request) {
	acct := AccountFrom(r.Context())
	l, err := s.credits.Ledger(r.Context(), acct)
	if errors.Is(err, domain.ErrNotFound) {
		l, err = s.credits.OpenLedger(r.Context(), acct)
	}
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, "Billing info fetched successfully", ledgerResponse{
		Plan:             l.Plan,
		CreditsUsed:      l.CreditsUsed,
		CreditsTotal:     l.CreditsTotal,
		CreditsRemaining: l.Remaining(),
		Unlimited:        l.Plan == model.PlanPremium,
	})
}

func toAPIKeyResponse(k *model.APIKey) apiKeyResponse {
	return apiKeyResponse{Key: k.Key, IsActive: k.IsActive, CreatedAt: k.CreatedAt, UpdatedAt: k.UpdatedAt}
}

func (s *Server) handleGetAPIKey(w http.ResponseWriter, r *http.Request) {
	k, err := s.accounts.APIKey(r.Context(), AccountFrom(r.Context()))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, "API key retrieved successfully", toAPIKeyResponse(k))
}

func (s *Server) handleRegenerateAPIKey(w http.ResponseWriter, r *http.Request) {
	k, err := s.accounts.RegenerateAPIKey(r.Context(), AccountFrom(r.Context()))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, "API key regenerated successfully", toAPIKeyResponse(k))
}

func (s *Server) handleAPIKeyStatus(w http.ResponseWriter, r *http.Request) {
	var req apiKeyStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if req.IsActive == nil {
		writeError(w, r, s.log, fmt.Errorf("%w: isActive is required", domain.ErrInvalidArgument))
		return
	}
	k, err := s.accounts.SetAPIKeyActive(r.Context(), AccountFrom(r.Context()), *req.IsActive)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	msg := "API key deactivated successfully"
	if k.IsActive {
		msg = "API key activated successfully"
	}
	writeOK(w, msg, toAPIKeyResponse(k))
}
