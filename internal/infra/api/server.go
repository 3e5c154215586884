// Package api is the HTTP edge of the research orchestrator.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"research-orchestrator/internal/config"
	"research-orchestrator/internal/domain/model"
	"research-orchestrator/internal/infra/metrics"
	"research-orchestrator/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type Deps struct {
	Research usecase.ResearchUseCase
	Credits  usecase.CreditUseCase
	Accounts usecase.AccountUseCase
	Tokens   *TokenManager
	// Limiter is optional; nil disables rate limiting.
	Limiter RateLimiter
}

type Server struct {
	cfg      config.ServerConfig
	research usecase.ResearchUseCase
	credits  usecase.CreditUseCase
	accounts usecase.AccountUseCase
	tokens   *TokenManager
	limiter  RateLimiter
	worker   string
	log      *zerolog.Logger
	srv      *http.Server
}

func NewServer(cfg config.ServerConfig, workerToken string, deps Deps, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "APIServer").Logger()
	s := &Server{
		cfg:      cfg,
		research: deps.Research,
		credits:  deps.Credits,
		accounts: deps.Accounts,
		tokens:   deps.Tokens,
		limiter:  deps.Limiter,
		worker:   workerToken,
		log:      &l,
	}
	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Router builds the chi router with every route and middleware attached.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(
		TraceID(),
		RequestLog(s.log),
		Recover(s.log),
	)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.cfg.RequestTimeout > 0 {
			r.Use(Timeout(s.cfg.RequestTimeout))
		}

		r.Route("/research", func(r chi.Router) {
			r.With(RequireWorkerToken(s.worker)).Post("/update", s.handleUpdate)

			r.Group(func(r chi.Router) {
				r.Use(RequireAPIKey(s.accounts, s.log))
				r.Get("/status", s.handleStatus)
				r.With(
					RateLimit(s.limiter, "lookup", s.cfg.RateLimit, s.cfg.RateLimitWindow, s.log),
					ValidateLookup(s.research, s.log),
					RequireCredits(s.credits, model.OperationLookup, s.log),
				).Post("/lookup", s.handleLookup)
			})
		})

		r.Route("/api-key", func(r chi.Router) {
			r.Use(RequireJWT(s.tokens))
			r.Get("/", s.handleGetAPIKey)
			r.Post("/regenerate", s.handleRegenerateAPIKey)
			r.Put("/status", s.handleAPIKeyStatus)
		})

		r.Route("/billing", func(r chi.Router) {
			r.Get("/config", s.handleBillingConfig)
			r.With(RequireJWT(s.tokens)).Get("/me", s.handleBillingMe)
		})
	})
	return r
}

// Start serves until Shutdown; http.ErrServerClosed is not reported.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.cfg.Addr).Msg("HTTP server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.shutdownTimeout())
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.cfg.ShutdownTimeout > 0 {
		return s.cfg.ShutdownTimeout
	}
	return 15 * time.Second
}
