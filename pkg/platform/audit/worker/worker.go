// Package worker relays committed audit outbox entries to Kafka.
package worker

import (
	"context"
	"log/slog"
	"time"

	"klok/internal/platform/kafka"
	audit "klok/pkg/platform/audit"
	txcontext "klok/pkg/platform/tx"
)

// Outbox is the claim side of the audit outbox.
type Outbox interface {
	FetchPending(ctx context.Context, limit int) ([]audit.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
}

// Sink receives relayed entries.
type Sink interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

// Relay polls the outbox and publishes entries in claim order. Claim,
// publish and mark happen in one transaction, so a crash after publishing
// re-publishes the batch (at-least-once); consumers dedupe on the event id.
type Relay struct {
	outbox   Outbox
	sink     Sink
	tx       txcontext.Runner
	topic    string
	batch    int
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batch = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func NewRelay(outbox Outbox, sink Sink, tx txcontext.Runner, topic string, opts ...Option) *Relay {
	r := &Relay{
		outbox:   outbox,
		sink:     sink,
		tx:       tx,
		topic:    topic,
		batch:    100,
		interval: 2 * time.Second,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is cancelled. Relay errors are logged and retried on
// the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for {
				n, err := r.RelayOnce(ctx)
				if err != nil {
					r.logger.ErrorContext(ctx, "audit relay failed", "error", err)
					break
				}
				if n < r.batch {
					break
				}
			}
		}
	}
}

// RelayOnce moves at most one batch and reports how many entries were published.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	var published int
	err := r.tx.RunInTx(ctx, func(ctx context.Context) error {
		entries, err := r.outbox.FetchPending(ctx, r.batch)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		msgs := make([]kafka.Message, 0, len(entries))
		ids := make([]string, 0, len(entries))
		for _, e := range entries {
			msgs = append(msgs, kafka.Message{
				Topic: r.topic,
				Key:   []byte(e.AggregateID),
				Value: e.Payload,
				Headers: map[string]string{
					"event_id":   e.ID,
					"event_type": e.EventType,
					"category":   string(e.Category),
				},
			})
			ids = append(ids, e.ID)
		}
		if err := r.sink.Publish(ctx, msgs...); err != nil {
			return err
		}
		if err := r.outbox.MarkPublished(ctx, ids, r.now()); err != nil {
			return err
		}
		published = len(entries)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if published > 0 {
		r.logger.DebugContext(ctx, "audit outbox relayed", "count", published, "topic", r.topic)
	}
	return published, nil
}
