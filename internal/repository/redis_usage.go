package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const usageTTL = 48 * time.Hour

// reserveScript charges one payment to the hash unless a non-zero limit
// would be passed. Returns 1 when charged, 0 when refused.
var reserveScript = redis.NewScript(`
local payments = tonumber(redis.call('HGET', KEYS[1], 'payments') or '0')
local drops = tonumber(redis.call('HGET', KEYS[1], 'drops') or '0')
local amount = tonumber(ARGV[1])
local maxPayments = tonumber(ARGV[2])
local maxDrops = tonumber(ARGV[3])
if maxPayments > 0 and payments + 1 > maxPayments then
  return 0
end
if maxDrops > 0 and drops + amount > maxDrops then
  return 0
end
redis.call('HINCRBY', KEYS[1], 'payments', 1)
redis.call('HINCRBY', KEYS[1], 'drops', ARGV[1])
redis.call('EXPIRE', KEYS[1], ARGV[4])
return 1
`)

// RedisUsageRepo keeps daily spend per account in a hash keyed by UTC date,
// so limits survive gateway restarts and hold across processes.
type RedisUsageRepo struct {
	client *RedisClient
	prefix string
	now    func() time.Time
}

func NewRedisUsageRepo(client *RedisClient) *RedisUsageRepo {
	return &RedisUsageRepo{
		client: client,
		prefix: "agentwallet:usage",
		now:    time.Now,
	}
}

func (r *RedisUsageRepo) GetDailyUsage(ctx context.Context, account string) (int, uint64, error) {
	key := r.makeKey(account, r.today())

	pipe := r.client.Client.Pipeline()
	paymentsCmd := pipe.HGet(ctx, key, "payments")
	dropsCmd := pipe.HGet(ctx, key, "drops")
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, fmt.Errorf("read usage: %w", err)
	}

	payments, err := paymentsCmd.Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, fmt.Errorf("parse payments: %w", err)
	}
	drops, err := dropsCmd.Uint64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, fmt.Errorf("parse drops: %w", err)
	}
	return payments, drops, nil
}

func (r *RedisUsageRepo) ReserveDailyUsage(ctx context.Context, account string, drops uint64, maxPayments int, maxDrops uint64) (string, bool, error) {
	day := r.today()
	res, err := reserveScript.Run(ctx, r.client.Client, []string{r.makeKey(account, day)},
		strconv.FormatUint(drops, 10),
		strconv.Itoa(maxPayments),
		strconv.FormatUint(maxDrops, 10),
		int(usageTTL.Seconds()),
	).Int()
	if err != nil {
		return day, false, fmt.Errorf("reserve usage: %w", err)
	}
	return day, res == 1, nil
}

func (r *RedisUsageRepo) ReleaseDailyUsage(ctx context.Context, account, day string, drops uint64) error {
	key := r.makeKey(account, day)

	pipe := r.client.Client.TxPipeline()
	pipe.HIncrBy(ctx, key, "payments", -1)
	pipe.HIncrBy(ctx, key, "drops", -int64(drops))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("release usage: %w", err)
	}
	return nil
}

func (r *RedisUsageRepo) today() string {
	return r.now().UTC().Format("2006-01-02")
}

func (r *RedisUsageRepo) makeKey(account, day string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, account, day)
}
