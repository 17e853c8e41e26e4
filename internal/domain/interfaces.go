package domain

import (
	"context"
	"time"
)

//go:generate mockgen -package=mocks -destination=mocks/mock_interfaces.go -source=interfaces.go

// MarketDataProvider is the capability contract shared by the domestic and
// global upstreams.
//
// FetchQuote returns (nil, nil) when no data is available right now: the key is
// unknown upstream, credentials are unset, the call timed out or the response
// was not usable. The error return is reserved for caller contract violations.
//
// FetchCandles follows the same rule and returns an empty, non-nil series when
// there is nothing to report.
type MarketDataProvider interface {
	FetchQuote(ctx context.Context, key string) (*Quote, error)
	FetchCandles(ctx context.Context, key string, res Resolution, limit int) ([]Candle, error)
}

// InstrumentLookup resolves an uppercased trading symbol to a domestic key.
type InstrumentLookup interface {
	Lookup(symbol string) (string, bool)
}

// Recorder receives normalized data for storage outside the core.
// The core never reads recorded history back.
type Recorder interface {
	RecordQuote(ctx context.Context, symbol string, quote Quote) error
	RecordCandles(ctx context.Context, symbol string, res Resolution, candles []Candle) error
}

// SessionFunc reports whether a venue's regular session is open at t.
type SessionFunc func(t time.Time) bool
