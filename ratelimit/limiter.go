// Package ratelimit provides local admission control for outbound vendor
// calls plus an adaptive policy that honors vendor throttle responses.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/healthsync/go-connectors/core"
)

// TokenBucketLimiter admits calls against a per-vendor token bucket.
// Capacity is MaxBurst (or MaxRequests when no burst headroom is
// configured) and tokens refill at MaxRequests per TimeWindow, so a spike
// may spend up to MaxBurst at once but sustained traffic settles at
// MaxRequests per window. Rejected calls consume no capacity.
//
// The bucket is tracked as the earliest time the accumulated debt clears,
// which keeps admission arithmetic in whole durations.
type TokenBucketLimiter struct {
	mu      sync.Mutex
	configs map[core.Vendor]core.RateLimitConfig
	debts   map[core.Vendor]time.Time
	nowFn   func() time.Time
}

func NewTokenBucketLimiter() *TokenBucketLimiter {
	return &TokenBucketLimiter{
		configs: make(map[core.Vendor]core.RateLimitConfig),
		debts:   make(map[core.Vendor]time.Time),
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

// Configure installs or replaces the limits for a vendor. Reconfiguring
// carries the outstanding admission debt over, so a tightened limit
// applies to calls already in flight.
func (l *TokenBucketLimiter) Configure(cfg core.RateLimitConfig) error {
	if l == nil {
		return fmt.Errorf("ratelimit: limiter is nil")
	}
	cfg.Vendor = core.NormalizeVendor(string(cfg.Vendor))
	if err := cfg.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if previous, ok := l.configs[cfg.Vendor]; ok {
		now := l.nowFn()
		if debt, has := l.debts[cfg.Vendor]; has && debt.After(now) {
			outstanding := int64(debt.Sub(now) / tokenInterval(previous))
			l.debts[cfg.Vendor] = now.Add(time.Duration(outstanding) * tokenInterval(cfg))
		}
	}
	l.configs[cfg.Vendor] = cfg
	return nil
}

// CheckAndAdmit records one admission or rejects with a rate-limited error
// carrying the earliest retry hint. Vendors without a configured limit are
// always admitted.
func (l *TokenBucketLimiter) CheckAndAdmit(_ context.Context, vendor core.Vendor, _ string) error {
	if l == nil {
		return fmt.Errorf("ratelimit: limiter is nil")
	}
	vendor = core.NormalizeVendor(string(vendor))

	l.mu.Lock()
	defer l.mu.Unlock()

	cfg, ok := l.configs[vendor]
	if !ok {
		return nil
	}

	now := l.nowFn()
	interval := tokenInterval(cfg)
	tolerance := time.Duration(burstCapacity(cfg)-1) * interval

	debt := l.debts[vendor]
	if debt.Before(now) {
		debt = now
	}
	earliest := debt.Add(-tolerance)
	if now.Before(earliest) {
		return core.NewRateLimitedError(vendor, earliest.Sub(now))
	}
	l.debts[vendor] = debt.Add(interval)
	return nil
}

// Snapshot reports how many admitted calls have not yet been paid back by
// refill, for status surfaces.
func (l *TokenBucketLimiter) Snapshot(vendor core.Vendor) (used int, cfg core.RateLimitConfig, ok bool) {
	if l == nil {
		return 0, core.RateLimitConfig{}, false
	}
	vendor = core.NormalizeVendor(string(vendor))
	l.mu.Lock()
	defer l.mu.Unlock()
	cfg, ok = l.configs[vendor]
	if !ok {
		return 0, core.RateLimitConfig{}, false
	}
	now := l.nowFn()
	if debt := l.debts[vendor]; debt.After(now) {
		used = int(debt.Sub(now) / tokenInterval(cfg))
	}
	return used, cfg, true
}

// tokenInterval is the time one admission takes to refill.
func tokenInterval(cfg core.RateLimitConfig) time.Duration {
	return cfg.TimeWindow / time.Duration(cfg.MaxRequests)
}

func burstCapacity(cfg core.RateLimitConfig) int {
	if cfg.MaxBurst > cfg.MaxRequests {
		return cfg.MaxBurst
	}
	return cfg.MaxRequests
}

var _ core.RateLimitAdmitter = (*TokenBucketLimiter)(nil)
