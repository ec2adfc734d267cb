package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

const (
	testLimit  = 3
	testWindow = time.Minute
)

type MemoryStoreSuite struct {
	suite.Suite
	store *MemoryStore
	clock time.Time
	ctx   context.Context
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.clock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.store = NewMemoryStore()
	s.store.now = func() time.Time { return s.clock }
	s.ctx = context.Background()
}

func (s *MemoryStoreSuite) allow(key string) *Result {
	res, err := s.store.Allow(s.ctx, key, testLimit, testWindow)
	s.Require().NoError(err)
	return res
}

func (s *MemoryStoreSuite) TestCountsDownToTheLimit() {
	first := s.allow("tenant:a")
	s.True(first.Allowed)
	s.Equal(testLimit, first.Limit)
	s.Equal(testLimit-1, first.Remaining)
	s.Equal(s.clock.Add(testWindow), first.ResetAt)

	s.allow("tenant:a")
	last := s.allow("tenant:a")
	s.True(last.Allowed)
	s.Equal(0, last.Remaining)

	denied := s.allow("tenant:a")
	s.False(denied.Allowed)
	s.Equal(60, denied.RetryAfter)
}

func (s *MemoryStoreSuite) TestKeysAreIndependent() {
	for range testLimit {
		s.allow("tenant:a")
	}
	s.False(s.allow("tenant:a").Allowed)
	s.True(s.allow("tenant:b").Allowed)
}

func (s *MemoryStoreSuite) TestWindowSlides() {
	s.allow("tenant:a")
	s.clock = s.clock.Add(30 * time.Second)
	s.allow("tenant:a")
	s.allow("tenant:a")
	s.False(s.allow("tenant:a").Allowed)

	s.Run("oldest request ages out first", func() {
		s.clock = s.clock.Add(30*time.Second + time.Millisecond)
		res := s.allow("tenant:a")
		s.True(res.Allowed)
		s.Equal(0, res.Remaining)
	})

	s.Run("retry after points at the next expiry", func() {
		res := s.allow("tenant:a")
		s.False(res.Allowed)
		s.Equal(30, res.RetryAfter)
	})
}

func TestRetryAfterRoundsUp(t *testing.T) {
	now := time.Unix(1000, 0)
	cases := map[time.Duration]int{
		0:                       1,
		-time.Second:            1,
		time.Second:             1,
		1500 * time.Millisecond: 2,
		time.Minute:             60,
	}
	for d, want := range cases {
		if got := retryAfter(now, now.Add(d)); got != want {
			t.Errorf("retryAfter(%s) = %d, want %d", d, got, want)
		}
	}
}

func TestBreaker(t *testing.T) {
	b := newBreaker(2, 2)
	if b.recordFailure() {
		t.Fatal("opened before the failure threshold")
	}
	if !b.recordFailure() {
		t.Fatal("expected breaker to open")
	}
	if b.recordSuccess() {
		t.Fatal("closed before the success threshold")
	}
	b.recordFailure()
	if b.recordSuccess() {
		t.Fatal("a failure must reset the success streak")
	}
	if !b.recordSuccess() {
		t.Fatal("expected breaker to close")
	}
	if b.isOpen() {
		t.Fatal("breaker still open")
	}
}
