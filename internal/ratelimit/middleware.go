package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"klok/internal/ratelimit/metrics"
	"klok/pkg/platform/httputil"
	"klok/pkg/requestcontext"
)

// HeaderStatus is set to "degraded" while the in-memory fallback is answering.
const HeaderStatus = "X-RateLimit-Status"

// Limit is a request budget per window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// ExceededResponse is the 429 body.
type ExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

type Middleware struct {
	primary  Store
	fallback Store
	limit    Limit
	breaker  *breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithFallback sets the store used while the primary keeps failing.
func WithFallback(s Store) Option {
	return func(m *Middleware) { m.fallback = s }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) { m.metrics = mt }
}

// WithDisabled turns the middleware into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) { m.disabled = disabled }
}

// WithBreakerThresholds overrides the 5 failures to open and 3 successes to close.
func WithBreakerThresholds(failures, successes int) Option {
	return func(m *Middleware) { m.breaker = newBreaker(failures, successes) }
}

func New(primary Store, limit Limit, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		primary: primary,
		limit:   limit,
		breaker: newBreaker(5, 3),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.fallback == nil {
		m.fallback = NewMemoryStore()
	}
	if m.limit.Requests <= 0 || m.limit.Window <= 0 {
		m.disabled = true
	}
	if m.disabled {
		logger.Info("tenant rate limiting disabled")
	}
	return m
}

// Tenant limits each tenant to one shared budget across all /v1 routes. It
// must run after auth; requests without a tenant fall back to the client IP.
func (m *Middleware) Tenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()

		result, degraded, err := m.check(ctx, keyFor(ctx))
		if err != nil {
			m.logger.ErrorContext(ctx, "rate limit check failed, allowing request", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		setHeaders(w, result)
		if degraded {
			w.Header().Set(HeaderStatus, "degraded")
		}
		if !result.Allowed {
			if m.metrics != nil {
				m.metrics.Rejected.Inc()
			}
			m.logger.WarnContext(ctx, "tenant rate limit exceeded",
				"tenant_id", requestcontext.TenantID(ctx).String(),
				"retry_after", result.RetryAfter,
			)
			w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
			httputil.WriteJSON(w, http.StatusTooManyRequests, &ExceededResponse{
				Error:      "rate_limit_exceeded",
				Message:    "Request quota exceeded for this tenant. Please try again later.",
				RetryAfter: result.RetryAfter,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// check asks the primary store first. Below the failure threshold an error is
// returned and the request passes; once the breaker is open the fallback answers.
func (m *Middleware) check(ctx context.Context, key string) (*Result, bool, error) {
	result, err := m.primary.Allow(ctx, key, m.limit.Requests, m.limit.Window)
	if err == nil {
		if m.breaker.recordSuccess() {
			m.logger.InfoContext(ctx, "rate limit store recovered")
			m.setBreakerGauge(0)
		}
		if !m.breaker.isOpen() {
			return result, false, nil
		}
	} else {
		if m.metrics != nil {
			m.metrics.StoreErrors.Inc()
		}
		if !m.breaker.recordFailure() {
			return nil, false, err
		}
		m.setBreakerGauge(1)
	}

	if m.metrics != nil {
		m.metrics.FallbackChecks.Inc()
	}
	result, err = m.fallback.Allow(ctx, key, m.limit.Requests, m.limit.Window)
	return result, true, err
}

func (m *Middleware) setBreakerGauge(v float64) {
	if m.metrics != nil {
		m.metrics.BreakerOpen.Set(v)
	}
}

func keyFor(ctx context.Context) string {
	if tenant := requestcontext.TenantID(ctx); !tenant.IsNil() {
		return "tenant:" + tenant.String()
	}
	return "ip:" + requestcontext.ClientIP(ctx)
}

func setHeaders(w http.ResponseWriter, result *Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}
