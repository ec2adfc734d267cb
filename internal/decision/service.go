package decision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"klok/internal/compliance/models"
	"klok/internal/compliance/providers"
	"klok/internal/decision/metrics"
	dErrors "klok/pkg/domain-errors"
	"klok/pkg/requestcontext"
)

const (
	defaultCacheTTL     = 10 * time.Minute
	defaultCacheCleanup = 15 * time.Minute
)

// ProviderRegistry resolves jurisdiction codes to providers.
type ProviderRegistry interface {
	Get(code string) (providers.Provider, error)
	All() []providers.Provider
}

// Request is one eligibility check.
type Request struct {
	Jurisdiction   string
	Classification string
	Factors        models.ControlTestFactors
}

// Recommendation is a suggested classification with its consequences in
// the requested jurisdiction.
type Recommendation struct {
	Jurisdiction     string
	RuleVersion      string
	Suggested        models.Classification
	PaymentPath      models.PaymentPath
	CanIssueInvoices bool
	Risk             models.RiskProfile
}

// Service evaluates classification decisions against the registered
// providers. It is safe for concurrent use.
type Service struct {
	registry ProviderRegistry
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	cache    *gocache.Cache
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithComplianceCacheTTL sets how long classification descriptors are cached.
// Entries are keyed by rule version so a provider replacement is never
// served stale.
func WithComplianceCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = gocache.New(ttl, 2*ttl)
	}
}

func NewService(registry ProviderRegistry, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		logger:   slog.Default(),
		tracer:   otel.Tracer("klok/internal/decision"),
		cache:    gocache.New(defaultCacheTTL, defaultCacheCleanup),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provider returns the provider for code. Callers that need several
// provider calls under one rule version fetch it once and use EvaluateWith.
func (s *Service) Provider(code string) (providers.Provider, error) {
	return s.registry.Get(code)
}

// Evaluate looks up the jurisdiction and decides. The error is non-nil only
// for an unsupported jurisdiction or a provider failure; a blocked decision
// is a normal return.
func (s *Service) Evaluate(ctx context.Context, req Request) (Decision, error) {
	p, err := s.registry.Get(req.Jurisdiction)
	if err != nil {
		return Decision{}, err
	}
	return s.EvaluateWith(ctx, p, req.Classification, req.Factors)
}

// EvaluateWith decides against a provider the caller already holds.
func (s *Service) EvaluateWith(ctx context.Context, p providers.Provider, classification string, factors models.ControlTestFactors) (Decision, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "decision.Evaluate", trace.WithAttributes(
		attribute.String("jurisdiction", p.Code()),
		attribute.String("classification", classification),
		attribute.String("rule_version", p.RuleVersion()),
	))
	defer span.End()

	var d Decision
	if err := s.guard(ctx, p.Code(), func() { d = Decide(p, classification, factors) }); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider failure")
		return Decision{}, err
	}

	s.metrics.ObserveEvaluateLatency(time.Since(start))
	span.SetAttributes(attribute.String("outcome", string(d.Outcome)))

	if d.Approved() {
		s.metrics.IncrementOutcome(d.Jurisdiction, string(d.Outcome), "")
		if d.HighRiskAdvisory {
			s.metrics.IncrementHighRisk(d.Jurisdiction)
			s.logger.WarnContext(ctx, "classification approved with high risk advisory",
				"request_id", requestcontext.RequestID(ctx),
				"jurisdiction", d.Jurisdiction,
				"classification", d.Classification,
				"risk", d.Risk.OverallRisk,
				"rule_version", d.RuleVersion,
			)
		}
		return d, nil
	}

	s.metrics.IncrementOutcome(d.Jurisdiction, string(d.Outcome), string(d.Block.Kind))
	s.logger.InfoContext(ctx, "classification blocked",
		"request_id", requestcontext.RequestID(ctx),
		"jurisdiction", d.Jurisdiction,
		"classification", d.Requested,
		"kind", d.Block.Kind,
		"rule_version", d.RuleVersion,
	)
	return d, nil
}

// Recommend suggests a classification and scores the facts in jurisdiction.
func (s *Service) Recommend(ctx context.Context, jurisdiction string, factors models.ControlTestFactors) (Recommendation, error) {
	p, err := s.registry.Get(jurisdiction)
	if err != nil {
		return Recommendation{}, err
	}
	suggested := Recommend(factors)

	var rec Recommendation
	err = s.guard(ctx, p.Code(), func() {
		path, _ := p.Classifications().PathOf(suggested)
		rec = Recommendation{
			Jurisdiction:     p.Code(),
			RuleVersion:      p.RuleVersion(),
			Suggested:        suggested,
			PaymentPath:      path,
			CanIssueInvoices: path == models.PathInvoice,
			Risk:             p.ScoreRelationship(factors),
		}
	})
	return rec, err
}

// Compliance returns the static descriptor for a classification.
func (s *Service) Compliance(ctx context.Context, jurisdiction, classification string) (models.ClassificationCompliance, error) {
	c, err := models.ParseClassification(classification)
	if err != nil {
		return models.ClassificationCompliance{}, err
	}
	p, err := s.registry.Get(jurisdiction)
	if err != nil {
		return models.ClassificationCompliance{}, err
	}

	key := fmt.Sprintf("%s|%s|%s", p.Code(), p.RuleVersion(), c)
	if v, ok := s.cache.Get(key); ok {
		s.metrics.IncrementCacheLookup(true)
		return v.(models.ClassificationCompliance), nil
	}
	s.metrics.IncrementCacheLookup(false)

	var cc models.ClassificationCompliance
	if err := s.guard(ctx, p.Code(), func() { cc = p.ClassificationCompliance(c) }); err != nil {
		return models.ClassificationCompliance{}, err
	}
	s.cache.SetDefault(key, cc)
	return cc, nil
}

// Jurisdictions lists the registered providers' capabilities ordered by code.
func (s *Service) Jurisdictions(_ context.Context) []providers.Capabilities {
	all := s.registry.All()
	out := make([]providers.Capabilities, 0, len(all))
	for _, p := range all {
		out = append(out, p.Capabilities())
	}
	return out
}

// guard runs fn and converts a provider panic into an internal error so
// one faulty provider cannot take down the request path.
func (s *Service) guard(ctx context.Context, jurisdiction string, fn func()) (err error) {
	defer func() {
		if v := recover(); v != nil {
			perr := providers.Recovered(jurisdiction, v)
			s.metrics.IncrementProviderPanic(jurisdiction)
			s.logger.ErrorContext(ctx, "compliance provider panicked",
				"request_id", requestcontext.RequestID(ctx),
				"jurisdiction", jurisdiction,
				"error", perr,
			)
			err = dErrors.Wrap(perr, dErrors.CodeInternal, "compliance provider failure")
		}
	}()
	fn()
	return nil
}
