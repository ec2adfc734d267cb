package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"klok/internal/platform/kafka"
	audit "klok/pkg/platform/audit"
	txcontext "klok/pkg/platform/tx"
)

type fakeOutbox struct {
	pending   []audit.OutboxEntry
	published []string
}

func (f *fakeOutbox) FetchPending(_ context.Context, limit int) ([]audit.OutboxEntry, error) {
	if len(f.pending) < limit {
		limit = len(f.pending)
	}
	return f.pending[:limit], nil
}

func (f *fakeOutbox) MarkPublished(_ context.Context, ids []string, _ time.Time) error {
	f.published = append(f.published, ids...)
	f.pending = f.pending[len(ids):]
	return nil
}

type fakeSink struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeSink) Publish(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func entries(n int) []audit.OutboxEntry {
	out := make([]audit.OutboxEntry, n)
	for i := range out {
		out[i] = audit.OutboxEntry{
			ID:          string(rune('a' + i)),
			AggregateID: "inv",
			EventType:   string(audit.EventInvoiceApproved),
			Category:    audit.CategoryCompliance,
			Payload:     []byte(`{}`),
		}
	}
	return out
}

func TestRelayOncePublishesAndMarks(t *testing.T) {
	outbox := &fakeOutbox{pending: entries(3)}
	sink := &fakeSink{}
	r := NewRelay(outbox, sink, txcontext.NoopRunner{}, "audit", WithBatchSize(2),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	n, err := r.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a", "b"}, outbox.published)
	require.Len(t, sink.msgs, 2)
	assert.Equal(t, "audit", sink.msgs[0].Topic)
	assert.Equal(t, "invoice_approved", sink.msgs[0].Headers["event_type"])

	n, err = r.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRelayOnceLeavesEntriesWhenSinkFails(t *testing.T) {
	outbox := &fakeOutbox{pending: entries(1)}
	r := NewRelay(outbox, &fakeSink{err: errors.New("broker down")}, txcontext.NoopRunner{}, "audit")

	_, err := r.RelayOnce(context.Background())
	require.Error(t, err)
	assert.Empty(t, outbox.published)
	assert.Len(t, outbox.pending, 1)
}
