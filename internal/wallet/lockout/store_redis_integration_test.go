//go:build integration

package lockout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"attesto/pkg/testutil"
	"attesto/pkg/testutil/containers"
)

type RedisLockoutSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *RedisStore
	ctx   context.Context
}

func TestRedisLockoutSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLockoutSuite))
}

func (s *RedisLockoutSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = NewRedisStore(s.redis.Client)
}

func (s *RedisLockoutSuite) SetupTest() {
	s.ctx = context.Background()
	s.Require().NoError(s.redis.Flush(s.ctx))
}

func (s *RedisLockoutSuite) TestUnknownKey() {
	rec, err := s.store.Get(s.ctx, "wallet-1")
	s.Require().NoError(err)
	s.Nil(rec)
}

func (s *RedisLockoutSuite) TestConcurrentFailuresAreCounted() {
	at := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	result := testutil.RunConcurrent(20, func(int) error {
		_, err := s.store.RecordFailure(s.ctx, "wallet-1", at, time.Hour)
		return err
	})
	s.Equal(int32(20), result.Successes)

	rec, err := s.store.Get(s.ctx, "wallet-1")
	s.Require().NoError(err)
	s.Equal(20, rec.Failures)
	s.Equal(at, rec.LastFailureAt)

	s.Require().NoError(s.store.Clear(s.ctx, "wallet-1"))
	rec, err = s.store.Get(s.ctx, "wallet-1")
	s.Require().NoError(err)
	s.Nil(rec)
}

func (s *RedisLockoutSuite) TestRecordExpires() {
	_, err := s.store.RecordFailure(s.ctx, "wallet-2", time.Now(), 200*time.Millisecond)
	s.Require().NoError(err)

	s.Eventually(func() bool {
		rec, err := s.store.Get(s.ctx, "wallet-2")
		return err == nil && rec == nil
	}, 3*time.Second, 50*time.Millisecond)
}
