package ratelimit

import (
	"context"

	"market_go/internal/domain"

	"golang.org/x/sync/singleflight"
)

// CoalescingProvider merges identical in-flight FetchQuote calls into one
// upstream request. Nothing is cached once the call returns.
type CoalescingProvider struct {
	next  domain.MarketDataProvider
	group singleflight.Group
}

func NewCoalescingProvider(next domain.MarketDataProvider) *CoalescingProvider {
	return &CoalescingProvider{next: next}
}

// Shape stacks the decorators for an upstream: identical quotes coalesce
// first, then the shared call waits for a token when bucket is set.
func Shape(next domain.MarketDataProvider, bucket *TokenBucket) *CoalescingProvider {
	if bucket == nil {
		return NewCoalescingProvider(next)
	}
	return NewCoalescingProvider(NewLimitedProvider(next, bucket))
}

// FetchQuote returns as soon as ctx ends, reporting empty. The shared call
// keeps running for the callers still waiting on it.
func (c *CoalescingProvider) FetchQuote(ctx context.Context, key string) (*domain.Quote, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		return c.next.FetchQuote(context.WithoutCancel(ctx), key)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, nil
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	q, _ := res.Val.(*domain.Quote)
	if q == nil {
		return nil, nil
	}
	out := *q
	return &out, nil
}

func (c *CoalescingProvider) FetchCandles(ctx context.Context, key string, res domain.Resolution, limit int) ([]domain.Candle, error) {
	return c.next.FetchCandles(ctx, key, res, limit)
}

func (c *CoalescingProvider) EffectiveResolution(res domain.Resolution) domain.Resolution {
	return domain.EffectiveResolution(c.next, res)
}
