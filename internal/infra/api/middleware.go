package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"research-orchestrator/internal/domain"
	"research-orchestrator/internal/domain/model"
	"research-orchestrator/internal/infra/logging"
	"research-orchestrator/internal/infra/metrics"
	"research-orchestrator/internal/infra/redis"
	"research-orchestrator/internal/usecase"

	"github.com/rs/zerolog"
)

const (
	apiKeyHeader      = "x-api-key"
	workerTokenHeader = "X-Worker-Token"
)

// RateLimiter admits at most limit requests per key per window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type ctxKey int

const (
	ctxAccount ctxKey = iota
	ctxCharged
	ctxLookup
)

func withAccount(ctx context.Context, accountID string) context.Context {
	ctx = logging.WithAccountID(ctx, accountID)
	return context.WithValue(ctx, ctxAccount, accountID)
}

// AccountFrom returns the authenticated account, or "".
func AccountFrom(ctx context.Context) string {
	v, _ := ctx.Value(ctxAccount).(string)
	return v
}

// ChargedOperation reports which operation the credit gate charged for this request.
func ChargedOperation(ctx context.Context) (model.Operation, bool) {
	op, ok := ctx.Value(ctxCharged).(model.Operation)
	return op, ok
}

// RequireAPIKey resolves the x-api-key header to an account.
func RequireAPIKey(accounts usecase.AccountUseCase, logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(apiKeyHeader)
			acct, err := accounts.Authenticate(r.Context(), key)
			if err != nil {
				if errors.Is(err, domain.ErrUnauthorized) || errors.Is(err, domain.ErrInactiveAPIKey) {
					logging.With(r.Context(), logger).Debug().Err(err).Str("api_key", logging.Redact(key, false)).Msg("api key rejected")
					writeJSON(w, http.StatusUnauthorized, envelope{Message: "invalid or missing API key"})
					return
				}
				writeError(w, r, logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), acct)))
		})
	}
}

// RequireJWT authenticates a bearer token and uses its userId as the account.
func RequireJWT(tm *TokenManager) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := tm.ParseFromRequest(r)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, envelope{Message: "unauthorized"})
				return
			}
			next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), claims.UserID)))
		})
	}
}

// RequireWorkerToken guards the worker callback. An empty token leaves it open.
func RequireWorkerToken(token string) Middleware {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(workerTokenHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, envelope{Message: "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit caps requests per account on route. Limiter errors let the request through.
func RateLimit(limiter RateLimiter, route string, limit int, window time.Duration, logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		if limiter == nil || limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := redis.AccountRouteKey(AccountFrom(r.Context()), route)
			ok, err := limiter.Allow(r.Context(), key, limit, window)
			if err != nil {
				l := logging.With(r.Context(), logger)
				l.Warn().Err(err).Str("route", route).Msg("rate limiter unavailable")
			} else if !ok {
				metrics.IncRateLimited(route)
				writeJSON(w, http.StatusTooManyRequests, envelope{Message: "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ValidateLookup decodes and checks the lookup body so rejected queries are never charged.
func ValidateLookup(research usecase.ResearchUseCase, logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req lookupRequest
			if err := decodeJSON(w, r, &req); err != nil {
				writeError(w, r, logger, err)
				return
			}
			if err := research.ValidateQuery(req.Query); err != nil {
				writeError(w, r, logger, err)
				return
			}
			ctx := context.WithValue(r.Context(), ctxLookup, req)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func lookupFrom(ctx context.Context) (lookupRequest, bool) {
	req, ok := ctx.Value(ctxLookup).(lookupRequest)
	return req, ok
}

// RequireCredits charges op against the caller's ledger before the handler runs.
func RequireCredits(credits usecase.CreditUseCase, op model.Operation, logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acct := AccountFrom(r.Context())
			if acct == "" {
				writeJSON(w, http.StatusUnauthorized, envelope{Message: "unauthorized"})
				return
			}
			if err := credits.Authorize(r.Context(), acct, op); err != nil {
				writeError(w, r, logger, err)
				return
			}
			ctx := context.WithValue(r.Context(), ctxCharged, op)
			l := logging.With(ctx, logger)
			l.Debug().Str("operation", string(op)).Msg("credits charged")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
