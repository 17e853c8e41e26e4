// Package ratelimit holds MarketDataProvider decorators that shape upstream
// traffic without changing the provider contract.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"market_go/internal/domain"
)

// TokenBucket is a refilling token bucket.
//   - rate: tokens per second
//   - capacity: burst size
type TokenBucket struct {
	rate     float64
	capacity float64
	now      func() time.Time

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// NewTokenBucket starts full so the first burst goes through immediately.
func NewTokenBucket(tokensPerSecond float64, burst int) *TokenBucket {
	if tokensPerSecond <= 0 {
		tokensPerSecond = 0.0000001
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucket{
		rate:     tokensPerSecond,
		capacity: float64(burst),
		now:      time.Now,
		tokens:   float64(burst),
		last:     time.Now(),
	}
}

// PerMinute builds a bucket for an upstream quota expressed per minute.
func PerMinute(requests, burst int) *TokenBucket {
	if burst <= 0 {
		burst = max(requests/10, 1)
	}
	return NewTokenBucket(float64(requests)/60, burst)
}

// Wait blocks until a token is available or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		delay := tb.reserve()
		if delay == 0 {
			return nil
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve takes a token and returns 0, or returns how long until one is due.
func (tb *TokenBucket) reserve() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	if elapsed := now.Sub(tb.last).Seconds(); elapsed > 0 {
		tb.tokens = min(tb.tokens+elapsed*tb.rate, tb.capacity)
		tb.last = now
	}
	if tb.tokens >= 1 {
		tb.tokens--
		return 0
	}
	wait := time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
	return max(wait, time.Millisecond)
}

// LimitedProvider gates every upstream call through a TokenBucket.
// A call that cannot get a token before ctx ends is reported as empty,
// the same as an upstream timeout.
type LimitedProvider struct {
	next   domain.MarketDataProvider
	bucket *TokenBucket
}

func NewLimitedProvider(next domain.MarketDataProvider, bucket *TokenBucket) *LimitedProvider {
	return &LimitedProvider{next: next, bucket: bucket}
}

func (l *LimitedProvider) FetchQuote(ctx context.Context, key string) (*domain.Quote, error) {
	if err := l.bucket.Wait(ctx); err != nil {
		slog.Debug("Rate limit wait aborted", slog.String("key", key), slog.Any("error", err))
		return nil, nil
	}
	return l.next.FetchQuote(ctx, key)
}

func (l *LimitedProvider) FetchCandles(ctx context.Context, key string, res domain.Resolution, limit int) ([]domain.Candle, error) {
	if err := l.bucket.Wait(ctx); err != nil {
		slog.Debug("Rate limit wait aborted", slog.String("key", key), slog.Any("error", err))
		return []domain.Candle{}, nil
	}
	return l.next.FetchCandles(ctx, key, res, limit)
}

func (l *LimitedProvider) EffectiveResolution(res domain.Resolution) domain.Resolution {
	return domain.EffectiveResolution(l.next, res)
}
