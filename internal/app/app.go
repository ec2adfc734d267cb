// Package app assembles klok's services from configuration. The server and
// klokctl share it so both run against the same stores and rule sets.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"klok/internal/compliance/providers"
	"klok/internal/compliance/providers/za"
	"klok/internal/decision"
	decisionmetrics "klok/internal/decision/metrics"
	httpapi "klok/internal/http"
	"klok/internal/invoice"
	invoicememory "klok/internal/invoice/store/memory"
	invoicepostgres "klok/internal/invoice/store/postgres"
	jwttoken "klok/internal/jwt_token"
	"klok/internal/organization"
	orgmetrics "klok/internal/organization/metrics"
	orgmemory "klok/internal/organization/store/memory"
	orgpostgres "klok/internal/organization/store/postgres"
	"klok/internal/platform/config"
	"klok/internal/platform/kafka"
	"klok/internal/platform/metrics"
	"klok/internal/platform/postgres"
	"klok/internal/platform/redis"
	"klok/internal/ratelimit"
	ratelimitmetrics "klok/internal/ratelimit/metrics"
	"klok/internal/reconciliation"
	recmetrics "klok/internal/reconciliation/metrics"
	"klok/pkg/platform/audit"
	"klok/pkg/platform/audit/publishers/compliance"
	auditmemory "klok/pkg/platform/audit/store/memory"
	auditpostgres "klok/pkg/platform/audit/store/postgres"
	"klok/pkg/platform/audit/worker"
	txcontext "klok/pkg/platform/tx"
)

// ledgerTTL bounds how long Redis remembers a flagged finding. The
// annotation's unique dedupe key still guards older findings.
const ledgerTTL = 30 * 24 * time.Hour

// App holds the wired services. Relay is nil unless both Postgres and Kafka
// are configured; Reconciler is always set so operators can trigger a run
// even when the schedule is disabled.
type App struct {
	Config   config.Server
	Logger   *slog.Logger
	Registry *providers.Registry
	JWT      *jwttoken.JWTService

	Decisions     *decision.Service
	Invoices      *invoice.Service
	Organizations *organization.Service
	Reconciler    *reconciliation.Worker
	Relay         *worker.Relay
	RateLimit     *ratelimit.Middleware

	httpMetrics *metrics.Metrics
	health      map[string]httpapi.HealthCheck
	closers     []func()
}

// New connects the configured backends and wires every service. On error the
// connections opened so far are closed.
func New(ctx context.Context, cfg config.Server, logger *slog.Logger) (_ *App, err error) {
	a := &App{
		Config: cfg,
		Logger: logger,
		JWT:    jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience),

		httpMetrics: metrics.New(),
		health:      map[string]httpapi.HealthCheck{},
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.Registry, err = NewRegistry(cfg.Compliance.JurisdictionDir, logger); err != nil {
		return nil, err
	}

	var (
		db           *sql.DB
		tx           txcontext.Runner = txcontext.NoopRunner{}
		invoiceStore invoice.Store
		orgStore     organization.Store
		auditStore   audit.Store
	)
	if cfg.Database.URL != "" {
		if db, err = postgres.Open(ctx, cfg.Database); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		if err = postgres.Migrate(ctx, db, logger); err != nil {
			return nil, err
		}
		tx = txcontext.NewSQLRunner(db)
		invoiceStore = invoicepostgres.New(db)
		orgStore = orgpostgres.New(db)
		auditStore = auditpostgres.New(db)
		a.health["postgres"] = db.PingContext
	} else {
		logger.WarnContext(ctx, "no database configured, using in-memory stores")
		invoiceStore = invoicememory.NewInMemory()
		orgStore = orgmemory.NewInMemory()
		auditStore = auditmemory.NewInMemoryStore()
	}

	publisher := compliance.New(auditStore,
		compliance.WithLogger(logger),
		compliance.WithMetrics(compliance.NewMetrics()),
	)

	a.Decisions = decision.NewService(a.Registry,
		decision.WithLogger(logger),
		decision.WithMetrics(decisionmetrics.New()),
		decision.WithComplianceCacheTTL(cfg.Compliance.RequirementCacheTTL),
	)
	a.Invoices = invoice.NewService(invoiceStore, invoice.NewGate(a.Decisions),
		invoice.WithLogger(logger),
		invoice.WithAuditPublisher(publisher),
		invoice.WithTxRunner(tx),
	)
	a.Organizations = organization.NewService(orgStore, a.Registry,
		organization.WithLogger(logger),
		organization.WithAuditPublisher(publisher),
		organization.WithTxRunner(tx),
		organization.WithMetrics(orgmetrics.New()),
	)

	var (
		lock   reconciliation.Locker = &reconciliation.LocalLock{}
		ledger reconciliation.Ledger = reconciliation.NewMemoryLedger()
		limits ratelimit.Store       = ratelimit.NewMemoryStore()
	)
	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rdb != nil {
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		lock = reconciliation.NewRedisLock(rdb.Client, cfg.Reconciliation.LockTTL)
		ledger = reconciliation.NewRedisLedger(rdb.Client, ledgerTTL)
		limits = ratelimit.NewRedisStore(rdb.Client)
		a.health["redis"] = rdb.Health
	}

	a.RateLimit = ratelimit.New(limits,
		ratelimit.Limit{Requests: cfg.RateLimit.Requests, Window: cfg.RateLimit.Window},
		logger,
		ratelimit.WithMetrics(ratelimitmetrics.New()),
	)

	job := reconciliation.NewJob(invoiceStore, a.Decisions,
		reconciliation.WithLogger(logger),
		reconciliation.WithMetrics(recmetrics.New()),
		reconciliation.WithLedger(ledger),
		reconciliation.WithAuditPublisher(publisher),
		reconciliation.WithTxRunner(tx),
		reconciliation.WithBatchSize(cfg.Reconciliation.BatchSize),
		reconciliation.WithConcurrency(cfg.Reconciliation.Concurrency),
		reconciliation.WithRecordTimeout(cfg.Reconciliation.RecordTimeout),
		reconciliation.WithPageRate(cfg.Reconciliation.PagesPerSecond),
	)
	a.Reconciler = reconciliation.NewWorker(job, lock, cfg.Reconciliation.Interval, logger)

	if len(cfg.Kafka.Brokers) > 0 {
		if db == nil {
			logger.WarnContext(ctx, "kafka brokers configured without a database, audit relay disabled")
			return a, nil
		}
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, producer.Close)
		if err := producer.EnsureTopics(ctx, 3, 1, cfg.Kafka.AuditTopic); err != nil {
			logger.WarnContext(ctx, "audit topic not ensured", "topic", cfg.Kafka.AuditTopic, "error", err)
		}
		a.Relay = worker.NewRelay(auditpostgres.New(db), producer, tx, cfg.Kafka.AuditTopic,
			worker.WithLogger(logger),
			worker.WithBatchSize(cfg.Kafka.RelayBatch),
			worker.WithInterval(cfg.Kafka.RelayInterval),
		)
		a.health["kafka"] = producer.Health
	}
	return a, nil
}

// NewRegistry builds the jurisdiction registry, applying any YAML override
// found in dir before the provider is constructed.
func NewRegistry(dir string, logger *slog.Logger) (*providers.Registry, error) {
	cfg := za.DefaultConfig()
	applied, err := providers.LoadOverrideFile(dir, cfg)
	if err != nil {
		return nil, fmt.Errorf("load %s overrides: %w", cfg.Code, err)
	}
	if applied {
		logger.Info("jurisdiction overrides applied", "jurisdiction", cfg.Code, "rule_version", cfg.RuleVersion)
	}
	p, err := za.New(cfg)
	if err != nil {
		return nil, err
	}
	return providers.NewRegistry(p)
}

// Router returns the HTTP surface over the wired services.
func (a *App) Router() http.Handler {
	return httpapi.NewRouter(httpapi.Dependencies{
		Logger:         a.Logger,
		Validator:      jwttoken.NewMiddlewareAdapter(a.JWT),
		AdminTokenHash: a.Config.AdminTokenHash,
		Metrics:        a.httpMetrics,
		RateLimit:      a.RateLimit,
		Decisions:      a.Decisions,
		Invoices:       a.Invoices,
		Organizations:  a.Organizations,
		Reconciler:     a.Reconciler,
		Providers:      a.Registry,
		Health:         a.health,
	})
}

// Close releases backend connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// ErrNoRelay is returned by RunRelay when the outbox relay is not configured.
var ErrNoRelay = errors.New("audit relay not configured")

// RunRelay drives the outbox relay until ctx is cancelled.
func (a *App) RunRelay(ctx context.Context) error {
	if a.Relay == nil {
		return ErrNoRelay
	}
	return a.Relay.Run(ctx)
}
