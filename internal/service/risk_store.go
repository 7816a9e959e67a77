package service

import (
	"context"
	"sync"
	"time"
)

// RiskUsageStore tracks daily spend in memory. Usage resets on restart.
type RiskUsageStore struct {
	mu       sync.Mutex
	drops    map[string]uint64 // account:YYYY-MM-DD
	payments map[string]int
	now      func() time.Time
}

var _ UsageRepo = (*RiskUsageStore)(nil)

func NewRiskUsageStore() *RiskUsageStore {
	return &RiskUsageStore{
		drops:    make(map[string]uint64),
		payments: make(map[string]int),
		now:      time.Now,
	}
}

func (s *RiskUsageStore) GetDailyUsage(ctx context.Context, account string) (int, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := makeUsageKey(account, s.today())
	return s.payments[key], s.drops[key], nil
}

func (s *RiskUsageStore) ReserveDailyUsage(ctx context.Context, account string, drops uint64, maxPayments int, maxDrops uint64) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := s.today()
	key := makeUsageKey(account, day)
	if maxPayments > 0 && s.payments[key]+1 > maxPayments {
		return day, false, nil
	}
	if maxDrops > 0 && s.drops[key]+drops > maxDrops {
		return day, false, nil
	}
	s.payments[key]++
	s.drops[key] += drops
	return day, true, nil
}

func (s *RiskUsageStore) ReleaseDailyUsage(ctx context.Context, account, day string, drops uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := makeUsageKey(account, day)
	if s.payments[key] > 0 {
		s.payments[key]--
	}
	if s.drops[key] >= drops {
		s.drops[key] -= drops
	} else {
		s.drops[key] = 0
	}
	return nil
}

// today is the UTC day usage is charged to.
func (s *RiskUsageStore) today() string {
	return s.now().UTC().Format("2006-01-02")
}

func makeUsageKey(account, day string) string {
	return account + ":" + day
}
