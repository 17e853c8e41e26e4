package storage

import (
	"context"
	"errors"

	"market_go/internal/domain"
)

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) RecordQuote(context.Context, string, domain.Quote) error { return nil }

func (NoopRecorder) RecordCandles(context.Context, string, domain.Resolution, []domain.Candle) error {
	return nil
}

// MultiRecorder fans out to every recorder and joins their errors.
type MultiRecorder []domain.Recorder

func (m MultiRecorder) RecordQuote(ctx context.Context, symbol string, q domain.Quote) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordQuote(ctx, symbol, q); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiRecorder) RecordCandles(ctx context.Context, symbol string, res domain.Resolution, candles []domain.Candle) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordCandles(ctx, symbol, res, candles); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
