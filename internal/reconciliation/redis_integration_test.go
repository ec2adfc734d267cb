//go:build integration

package reconciliation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"klok/internal/reconciliation"
	"klok/pkg/platform/sentinel"
	"klok/pkg/testutil/containers"
)

type RedisSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisSuite))
}

func (s *RedisSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisSuite) TestLockIsExclusive() {
	ctx := context.Background()
	a := reconciliation.NewRedisLock(s.redis.Client, time.Minute)
	b := reconciliation.NewRedisLock(s.redis.Client, time.Minute)

	release, err := a.Acquire(ctx)
	s.Require().NoError(err)

	_, err = b.Acquire(ctx)
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)

	s.Require().NoError(release(ctx))
	releaseB, err := b.Acquire(ctx)
	s.Require().NoError(err)
	s.Require().NoError(releaseB(ctx))
}

func (s *RedisSuite) TestStaleReleaseKeepsNewHolder() {
	ctx := context.Background()
	lock := reconciliation.NewRedisLock(s.redis.Client, 50*time.Millisecond)

	stale, err := lock.Acquire(ctx)
	s.Require().NoError(err)
	time.Sleep(100 * time.Millisecond)

	_, err = lock.Acquire(ctx)
	s.Require().NoError(err)
	s.Require().NoError(stale(ctx))

	_, err = lock.Acquire(ctx)
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *RedisSuite) TestLedgerRemembersMarks() {
	ctx := context.Background()
	ledger := reconciliation.NewRedisLedger(s.redis.Client, time.Hour)
	key := "inv|consultant|za-2026.2"

	seen, err := ledger.Seen(ctx, key)
	s.Require().NoError(err)
	s.False(seen)

	s.Require().NoError(ledger.Mark(ctx, key))
	s.Require().NoError(ledger.Mark(ctx, key))
	seen, err = ledger.Seen(ctx, key)
	s.Require().NoError(err)
	s.True(seen)

	ttl, err := s.redis.Client.TTL(ctx, "klok:recon:flagged:"+key).Result()
	s.Require().NoError(err)
	s.Positive(ttl)
}
