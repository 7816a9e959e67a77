package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usexrp/agentwallet/internal/config"
	"github.com/usexrp/agentwallet/internal/model"
)

func newTestRedis(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestNewRedisClientRequiresAddr(t *testing.T) {
	_, err := NewRedisClient(config.RedisConfig{})
	assert.Error(t, err)
}

func TestRedisUsageRepo(t *testing.T) {
	client, mr := newTestRedis(t)
	repo := NewRedisUsageRepo(client)
	repo.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	account := "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"

	payments, drops, err := repo.GetDailyUsage(ctx, account)
	require.NoError(t, err)
	assert.Zero(t, payments)
	assert.Zero(t, drops)

	for _, amount := range []uint64{1_000_000, 250_000} {
		day, ok, err := repo.ReserveDailyUsage(ctx, account, amount, 0, 0)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "2026-03-01", day)
	}

	payments, drops, err = repo.GetDailyUsage(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, 2, payments)
	assert.Equal(t, uint64(1_250_000), drops)

	key := "agentwallet:usage:" + account + ":2026-03-01"
	assert.True(t, mr.Exists(key))
	assert.Equal(t, usageTTL, mr.TTL(key))

	// a new UTC day starts from zero
	repo.now = func() time.Time { return time.Date(2026, 3, 2, 0, 0, 1, 0, time.UTC) }
	payments, drops, err = repo.GetDailyUsage(ctx, account)
	require.NoError(t, err)
	assert.Zero(t, payments)
	assert.Zero(t, drops)
}

func TestRedisUsageRepoReserveEnforcesLimits(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRedisUsageRepo(client)
	ctx := context.Background()
	account := "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"

	_, ok, err := repo.ReserveDailyUsage(ctx, account, 600, 0, 1000)
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = repo.ReserveDailyUsage(ctx, account, 401, 0, 1000)
	require.NoError(t, err)
	assert.False(t, ok, "would pass the drops limit")

	day, ok, err := repo.ReserveDailyUsage(ctx, account, 400, 2, 1000)
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = repo.ReserveDailyUsage(ctx, account, 0, 2, 0)
	require.NoError(t, err)
	assert.False(t, ok, "would pass the payment count limit")

	payments, drops, err := repo.GetDailyUsage(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, 2, payments)
	assert.Equal(t, uint64(1000), drops)

	require.NoError(t, repo.ReleaseDailyUsage(ctx, account, day, 400))
	payments, drops, err = repo.GetDailyUsage(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, 1, payments)
	assert.Equal(t, uint64(600), drops)
}

func TestRedisUsageRepoConcurrentReservations(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRedisUsageRepo(client)
	ctx := context.Background()
	account := "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"

	var wg sync.WaitGroup
	var granted atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := repo.ReserveDailyUsage(ctx, account, 100, 0, 500)
			if err == nil && ok {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), granted.Load())
	_, drops, err := repo.GetDailyUsage(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), drops)
}

func TestRedisAuditRepoCapsList(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRedisAuditRepo(client, "test:audit", 3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Insert(ctx, &model.AuditLog{ID: fmt.Sprintf("req-%d", i), Path: "/pay"}))
	}
	require.NoError(t, repo.Insert(ctx, nil))

	entries, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "req-4", entries[0].ID)
	assert.Equal(t, "req-2", entries[2].ID)
}
