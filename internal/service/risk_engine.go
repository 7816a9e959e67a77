package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/usexrp/agentwallet/internal/config"
	"github.com/usexrp/agentwallet/internal/ledger"
	"github.com/usexrp/agentwallet/internal/pkg/logger"
	"github.com/usexrp/agentwallet/internal/pkg/metrics"
)

var ErrRiskReject = errors.New("risk reject")

var noLimits = config.RiskConfig{}

// UsageRepo tracks daily spend per account and UTC day.
type UsageRepo interface {
	GetDailyUsage(ctx context.Context, account string) (int, uint64, error)
	// ReserveDailyUsage adds one payment of drops to today's usage in a single
	// atomic step, unless that would pass a non-zero limit. It returns the day
	// that was charged and whether the reservation was made.
	ReserveDailyUsage(ctx context.Context, account string, drops uint64, maxPayments int, maxDrops uint64) (string, bool, error)
	ReleaseDailyUsage(ctx context.Context, account, day string, drops uint64) error
}

// RiskEngine enforces spend limits before a payment touches the network.
// A zero limit disables that check.
type RiskEngine struct {
	repo   UsageRepo
	limits config.RiskConfig
}

func NewRiskEngine(repo UsageRepo, limits config.RiskConfig) *RiskEngine {
	if repo == nil {
		repo = NewRiskUsageStore()
	}
	return &RiskEngine{repo: repo, limits: limits}
}

// Reservation is the daily budget held by one in-flight payment.
type Reservation struct {
	repo    UsageRepo
	account string
	day     string
	drops   uint64
	once    sync.Once
}

// Reserve checks the payment against every limit and, when it passes, charges
// it to today's usage before returning. Concurrent callers cannot overdraw
// the daily budget. The error wraps ErrRiskReject when the payment must be
// refused.
func (e *RiskEngine) Reserve(ctx context.Context, account string, drops uint64) (*Reservation, error) {
	limits := e.limits

	// 1. Ledger bounds
	if drops == 0 || drops > ledger.MaxDrops {
		metrics.RiskRejects.WithLabelValues("amount_bounds").Inc()
		return nil, fmt.Errorf("%w: amount %d drops out of bounds", ErrRiskReject, drops)
	}

	// 2. Single payment limit
	if limits.MaxPaymentDrops > 0 && drops > limits.MaxPaymentDrops {
		metrics.RiskRejects.WithLabelValues("max_payment").Inc()
		return nil, fmt.Errorf("%w: payment of %d drops exceeds limit %d", ErrRiskReject, drops, limits.MaxPaymentDrops)
	}

	// 3. Daily limits
	enforced := limits.MaxDailyDrops > 0 || limits.MaxDailyPayments > 0
	day, ok, err := e.repo.ReserveDailyUsage(ctx, account, drops, limits.MaxDailyPayments, limits.MaxDailyDrops)
	if err != nil {
		if enforced {
			return nil, fmt.Errorf("risk check failed: %w", err)
		}
		logger.LogError(ctx, err, "failed to record daily usage", "account", account)
		return &Reservation{}, nil
	}
	if !ok {
		return nil, e.dailyReject(ctx, account, drops)
	}
	return &Reservation{repo: e.repo, account: account, day: day, drops: drops}, nil
}

// dailyReject names the limit that refused the payment. The usage read here
// is only for the message.
func (e *RiskEngine) dailyReject(ctx context.Context, account string, drops uint64) error {
	limits := e.limits
	payments, spent, err := e.repo.GetDailyUsage(ctx, account)
	if err == nil && limits.MaxDailyPayments > 0 && payments+1 > limits.MaxDailyPayments {
		metrics.RiskRejects.WithLabelValues("daily_payment_limit").Inc()
		return fmt.Errorf("%w: daily payment count exceeded (curr: %d, max: %d)",
			ErrRiskReject, payments, limits.MaxDailyPayments)
	}
	metrics.RiskRejects.WithLabelValues("daily_drops_limit").Inc()
	return fmt.Errorf("%w: daily limit exceeded (spent: %d, new: %d, max: %d drops)",
		ErrRiskReject, spent, drops, limits.MaxDailyDrops)
}

// Release returns the reserved amount to the daily budget. It is for
// payments known not to have moved funds; only the first call has an effect.
func (r *Reservation) Release(ctx context.Context) {
	if r == nil || r.repo == nil {
		return
	}
	r.once.Do(func() {
		ctx := context.WithoutCancel(ctx)
		if err := r.repo.ReleaseDailyUsage(ctx, r.account, r.day, r.drops); err != nil {
			logger.LogError(ctx, err, "failed to release daily usage", "account", r.account, "day", r.day)
		}
	})
}
