package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"market_go/internal/domain"
	"market_go/internal/indicator"
	"market_go/internal/router"

	"github.com/shopspring/decimal"
)

const (
	DefaultPeriod = 14
	DefaultLimit  = 100
	MaxLimit      = 1000

	recordTimeout = 10 * time.Second
)

// SymbolResolver maps user input to a ResolvedSymbol.
type SymbolResolver interface {
	Resolve(symbol string) domain.ResolvedSymbol
}

// VenueRouter picks the venue serving a resolved symbol.
type VenueRouter interface {
	Route(symbol domain.ResolvedSymbol) router.Venue
}

// QuoteView is the quote as reported to callers. Price is nil when the
// upstream had nothing to report.
type QuoteView struct {
	Symbol        string        `json:"symbol"`
	Resolved      string        `json:"resolved"`
	Price         *float64      `json:"price"`
	Currency      string        `json:"currency"`
	MarketOpen    bool          `json:"marketOpen"`
	Change        *float64      `json:"change,omitempty"`
	ChangePercent *float64      `json:"changePercent,omitempty"`
	Quote         *domain.Quote `json:"quote,omitempty"`
}

// CandlePoint is a candle annotated with indicator values; nil means undefined.
type CandlePoint struct {
	domain.Candle
	SMA *float64 `json:"sma"`
	EMA *float64 `json:"ema"`
	RSI *float64 `json:"rsi"`
}

// ResolveView explains how a symbol is routed.
type ResolveView struct {
	Symbol   string `json:"symbol"`
	Resolved string `json:"resolved"`
	Venue    string `json:"venue"`
	Kind     string `json:"kind"`
	Currency string `json:"currency"`
}

// MarketService ties resolution, routing, indicators and recording together.
// It also remembers the last quote seen per symbol for the watchlist view.
type MarketService struct {
	resolver SymbolResolver
	router   VenueRouter
	recorder domain.Recorder
	now      func() time.Time

	mu     sync.RWMutex
	latest map[string]QuoteView

	wg sync.WaitGroup
}

// NewMarketService creates a service. recorder may be nil.
func NewMarketService(resolver SymbolResolver, rt VenueRouter, recorder domain.Recorder) *MarketService {
	return &MarketService{
		resolver: resolver,
		router:   rt,
		recorder: recorder,
		now:      time.Now,
		latest:   make(map[string]QuoteView),
	}
}

// Resolve reports the resolved key and venue for symbol without any upstream call.
func (s *MarketService) Resolve(symbol string) ResolveView {
	resolved := s.resolver.Resolve(symbol)
	venue := s.router.Route(resolved)
	return ResolveView{
		Symbol:   symbol,
		Resolved: resolved.String(),
		Venue:    venue.Name,
		Kind:     venue.Kind.String(),
		Currency: venue.Currency,
	}
}

// Quote fetches the latest quote. Only invalid input is returned as an error.
func (s *MarketService) Quote(ctx context.Context, symbol string) (QuoteView, error) {
	resolved := s.resolver.Resolve(symbol)
	if resolved == "" {
		return QuoteView{}, domain.ErrInvalidSymbol
	}
	venue := s.router.Route(resolved)

	view := QuoteView{
		Symbol:     symbol,
		Resolved:   resolved.String(),
		Currency:   venue.Currency,
		MarketOpen: venue.MarketOpen(s.now()),
	}
	if venue.Provider == nil {
		return view, nil
	}

	q, err := venue.Provider.FetchQuote(ctx, resolved.String())
	if err != nil {
		return QuoteView{}, err
	}
	if q == nil {
		return view, nil
	}

	price := q.Price
	view.Price = &price
	view.Quote = q
	if q.Currency != "" {
		view.Currency = q.Currency
	}
	if q.PrevClose != 0 {
		change, pct := priceChange(q.Price, q.PrevClose)
		view.Change = &change
		view.ChangePercent = &pct
	}

	s.remember(view)
	s.recordAsync(func(ctx context.Context) error {
		return s.recorder.RecordQuote(ctx, resolved.String(), *q)
	})
	return view, nil
}

// Candles fetches up to limit bars and annotates them with SMA, EMA and RSI
// over period.
func (s *MarketService) Candles(ctx context.Context, symbol string, res domain.Resolution, period, limit int) ([]CandlePoint, error) {
	if res.Minutes() == 0 {
		return nil, domain.ErrInvalidResolution
	}
	resolved := s.resolver.Resolve(symbol)
	if resolved == "" {
		return nil, domain.ErrInvalidSymbol
	}
	venue := s.router.Route(resolved)
	if venue.Provider == nil {
		return []CandlePoint{}, nil
	}

	candles, err := venue.Provider.FetchCandles(ctx, resolved.String(), res, limit)
	if err != nil {
		return nil, err
	}
	if len(candles) > 0 {
		// bars may come back at a substitute granularity; store them as what they are
		served := domain.EffectiveResolution(venue.Provider, res)
		series := append([]domain.Candle(nil), candles...)
		s.recordAsync(func(ctx context.Context) error {
			return s.recorder.RecordCandles(ctx, resolved.String(), served, series)
		})
	}
	return Annotate(candles, period), nil
}

// Annotate aligns indicator values with candles.
func Annotate(candles []domain.Candle, period int) []CandlePoint {
	closes := domain.Closes(candles)
	sma := indicator.SMA(closes, period)
	ema := indicator.EMA(closes, period)
	rsi := indicator.RSI(closes, period)

	points := make([]CandlePoint, len(candles))
	for i, c := range candles {
		points[i] = CandlePoint{
			Candle: c,
			SMA:    indicator.Value(sma[i]),
			EMA:    indicator.Value(ema[i]),
			RSI:    indicator.Value(rsi[i]),
		}
	}
	return points
}

// Latest returns the most recent quote seen for each symbol, sorted by symbol.
func (s *MarketService) Latest() []QuoteView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]QuoteView, 0, len(s.latest))
	for _, v := range s.latest {
		result = append(result, v)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Resolved < result[j].Resolved
	})
	return result
}

// Wait blocks until pending recorder calls finish. Used on shutdown.
func (s *MarketService) Wait() {
	s.wg.Wait()
}

func (s *MarketService) remember(v QuoteView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[v.Resolved] = v
}

// recordAsync hands data to the recorder without holding up the caller.
// Failures are logged and dropped.
func (s *MarketService) recordAsync(fn func(ctx context.Context) error) {
	if s.recorder == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Recorder panic recovered", slog.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			slog.Warn("Record failed", slog.Any("error", err))
		}
	}()
}

// priceChange returns the absolute and percentage move from prevClose,
// rounded to 4 and 2 decimals.
func priceChange(price, prevClose float64) (float64, float64) {
	p := decimal.NewFromFloat(price)
	pc := decimal.NewFromFloat(prevClose)
	diff := p.Sub(pc)
	pct := diff.Div(pc).Mul(decimal.NewFromInt(100))
	return diff.Round(4).InexactFloat64(), pct.Round(2).InexactFloat64()
}
