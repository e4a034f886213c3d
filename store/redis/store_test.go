package redis_test

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/flashledger"
	"github.com/xraph/flashledger/claim"
	"github.com/xraph/flashledger/store"
	"github.com/xraph/flashledger/store/redis"
	"github.com/xraph/flashledger/store/storetest"
)

func newStore(t *testing.T, opts ...redis.Option) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	s := redis.New(client, opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, _ := newStore(t)
		return s
	})
}

func TestKeyLayout(t *testing.T) {
	s, mr := newStore(t, redis.WithPrefix("test:"))
	ctx := context.Background()

	require.NoError(t, s.ApplyClaims(ctx, []claim.Adjustment{
		{Owner: "alice", Asset: "usdc", Amount: 25},
	}))

	assert.Equal(t, "25", mr.HGet("test:claims:alice", "usdc"))
	assert.Equal(t, "25", mr.HGet("test:supply", "usdc"))
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	s, _ := newStore(t, redis.WithMaxRetries(1000))
	ctx := context.Background()
	require.NoError(t, s.ApplyClaims(ctx, []claim.Adjustment{{Owner: "alice", Asset: "usdc", Amount: 10}}))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.ApplyClaims(ctx, []claim.Adjustment{
				{Owner: "alice", Asset: "usdc", Amount: -1},
				{Owner: "bob", Asset: "usdc", Amount: 1},
			})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	v, err := s.GetClaim(ctx, "alice", "usdc")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	total, err := s.TotalSupply(ctx, "usdc")
	require.NoError(t, err)
	assert.Equal(t, int64(10), total)
}

func TestConflictIsRetryable(t *testing.T) {
	assert.ErrorIs(t, redis.ErrConflict, flashledger.ErrStoreConflict)
	assert.True(t, flashledger.IsRetryable(redis.ErrConflict))
}
