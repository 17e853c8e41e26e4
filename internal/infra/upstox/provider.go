// Package upstox adapts the Upstox v2 REST API to domain.MarketDataProvider
// for NSE instruments addressed by instrument key.
package upstox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"market_go/internal/domain"
	"market_go/internal/infra"
)

const (
	// Currency is the quote currency for every domestic instrument.
	Currency = "INR"

	defaultTimeout = 12 * time.Second

	// fallbackDays is how far back intraday requests reach when the
	// intraday endpoint has nothing (weekends, pre-open).
	fallbackDays = 5
)

// supported lists the granularities the v2 candle endpoints serve.
var supported = []domain.Resolution{domain.Resolution1Min, domain.Resolution30Min, domain.ResolutionDay}

var intervalNames = map[domain.Resolution]string{
	domain.Resolution1Min:  "1minute",
	domain.Resolution30Min: "30minute",
	domain.ResolutionDay:   "day",
}

// Option configures a Provider.
type Option func(*Provider)

// WithHTTPClient swaps the transport, mainly for tests.
func WithHTTPClient(c infra.HTTPClient) Option {
	return func(p *Provider) {
		if c != nil {
			p.client = c
		}
	}
}

// WithBaseURL overrides the API root.
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		if u != "" {
			p.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithTimeout bounds each upstream call.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithNow injects the clock used for date windows.
func WithNow(now func() time.Time) Option {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
	}
}

// Provider fetches quotes and candles for domestic instruments.
// Every upstream failure is reported as an empty result; only malformed
// instrument keys produce an error.
type Provider struct {
	token   string
	baseURL string
	client  infra.HTTPClient
	timeout time.Duration
	now     func() time.Time

	missingOnce sync.Once
}

// NewProvider builds a Provider. An empty token is allowed: calls then
// return empty results and the condition is logged once.
func NewProvider(token string, opts ...Option) *Provider {
	p := &Provider{
		token:   strings.TrimSpace(token),
		baseURL: infra.DefaultUpstoxURL,
		timeout: defaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = infra.NewHTTPClient(p.timeout)
	}
	return p
}

// FetchQuote returns the latest quote for key, or nil when none is available.
func (p *Provider) FetchQuote(ctx context.Context, key string) (*domain.Quote, error) {
	if err := domain.ValidateInstrumentKey(key); err != nil {
		return nil, err
	}
	if !p.hasCredentials() {
		return nil, nil
	}

	params := url.Values{"instrument_key": {key}}
	var resp quoteResponse
	start := time.Now()
	err := p.getJSON(ctx, "/market-quote/quotes", params, &resp)
	if err != nil {
		infra.GlobalMetrics.RecordUpstream(time.Since(start), true)
		slog.Log(ctx, infra.UpstreamLevel(err), "Upstox quote failed", slog.String("key", key), slog.Any("error", err))
		return nil, nil
	}

	entry, ok := pickEntry(resp.Data, key)
	if !ok || entry.LastPrice == nil {
		infra.GlobalMetrics.RecordUpstream(time.Since(start), true)
		return nil, nil
	}
	infra.GlobalMetrics.RecordUpstream(time.Since(start), false)

	price := *entry.LastPrice
	q := &domain.Quote{
		Price:     price,
		Open:      price,
		High:      price,
		Low:       price,
		Volume:    domain.ValueOr(entry.Volume, 0),
		Timestamp: parseTimestamp(entry.Timestamp, p.now()).Unix(),
		Currency:  Currency,
	}
	if entry.NetChange != nil {
		q.PrevClose = price - *entry.NetChange
	}
	if entry.OHLC != nil {
		q.Open = domain.ValueOr(entry.OHLC.Open, price)
		q.High = domain.ValueOr(entry.OHLC.High, price)
		q.Low = domain.ValueOr(entry.OHLC.Low, price)
	}
	return q, nil
}

// FetchCandles returns up to limit candles ascending by time. Resolutions
// the API lacks are served at the nearest supported granularity.
func (p *Provider) FetchCandles(ctx context.Context, key string, res domain.Resolution, limit int) ([]domain.Candle, error) {
	if err := domain.ValidateInstrumentKey(key); err != nil {
		return []domain.Candle{}, err
	}
	if res.Minutes() == 0 {
		return []domain.Candle{}, domain.ErrInvalidResolution
	}
	if !p.hasCredentials() {
		return []domain.Candle{}, nil
	}

	interval := intervalNames[p.EffectiveResolution(res)]

	var candles []domain.Candle
	if interval == intervalNames[domain.ResolutionDay] {
		to := lastDailyDate(p.now())
		from := to.AddDate(0, 0, -dailyLookbackDays(limit))
		candles = p.historical(ctx, key, interval, to, from)
	} else {
		candles = p.intraday(ctx, key, interval)
		if len(candles) == 0 {
			to := p.now().In(IST)
			candles = p.historical(ctx, key, interval, to, to.AddDate(0, 0, -fallbackDays))
		}
	}

	return domain.TailSeries(domain.NormalizeSeries(candles), limit), nil
}

// EffectiveResolution is the granularity FetchCandles serves for res.
func (p *Provider) EffectiveResolution(res domain.Resolution) domain.Resolution {
	return domain.NearestSupported(res, supported)
}

// Session reports the NSE trading session for the router.
func (p *Provider) Session(t time.Time) bool {
	return MarketOpen(t)
}

func (p *Provider) hasCredentials() bool {
	if p.token != "" {
		return true
	}
	p.missingOnce.Do(func() {
		slog.Warn("Upstox access token not configured; domestic data disabled",
			slog.Any("error", domain.ErrMissingCredentials))
	})
	return false
}

func (p *Provider) intraday(ctx context.Context, key, interval string) []domain.Candle {
	path := fmt.Sprintf("/historical-candle/intraday/%s/%s", url.PathEscape(key), interval)
	return p.fetchCandles(ctx, path, key)
}

func (p *Provider) historical(ctx context.Context, key, interval string, to, from time.Time) []domain.Candle {
	path := fmt.Sprintf("/historical-candle/%s/%s/%s/%s",
		url.PathEscape(key), interval, to.Format(time.DateOnly), from.Format(time.DateOnly))
	return p.fetchCandles(ctx, path, key)
}

func (p *Provider) fetchCandles(ctx context.Context, path, key string) []domain.Candle {
	var resp candleResponse
	start := time.Now()
	if err := p.getJSON(ctx, path, nil, &resp); err != nil {
		infra.GlobalMetrics.RecordUpstream(time.Since(start), true)
		slog.Log(ctx, infra.UpstreamLevel(err), "Upstox candles failed", slog.String("key", key), slog.String("path", path), slog.Any("error", err))
		return nil
	}

	candles := make([]domain.Candle, 0, len(resp.Data.Candles))
	for _, raw := range resp.Data.Candles {
		c, ok := parseCandleRow(raw)
		if !ok {
			continue
		}
		candles = append(candles, c)
	}
	infra.GlobalMetrics.RecordUpstream(time.Since(start), len(candles) == 0)
	return candles
}

func (p *Provider) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	endpoint := p.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.NewFatalNetworkError("upstox", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", infra.DefaultUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.NewNetworkError("upstox", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		err := fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return domain.NewNetworkError("upstox", err)
		}
		return domain.NewFatalNetworkError("upstox", err)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewFatalNetworkError("upstox", fmt.Errorf("decode: %w", err))
	}
	return nil
}

// pickEntry finds the quote for key. The payload is keyed by trading symbol,
// so match on instrument_token and fall back to a lone entry.
func pickEntry(data map[string]quoteEntry, key string) (quoteEntry, bool) {
	for _, e := range data {
		if e.InstrumentToken == key {
			return e, true
		}
	}
	if len(data) == 1 {
		for _, e := range data {
			return e, true
		}
	}
	return quoteEntry{}, false
}

func parseCandleRow(raw json.RawMessage) (domain.Candle, bool) {
	var row []json.RawMessage
	if err := json.Unmarshal(raw, &row); err != nil || len(row) < 5 {
		return domain.Candle{}, false
	}

	ts, ok := parseRowTime(row[0])
	if !ok {
		return domain.Candle{}, false
	}

	var vals [5]float64
	for i := 1; i < len(row) && i <= 5; i++ {
		var v *float64
		if err := json.Unmarshal(row[i], &v); err != nil {
			return domain.Candle{}, false
		}
		vals[i-1] = domain.ValueOr(v, 0)
	}

	return domain.Candle{
		Time:   ts,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, true
}

// parseRowTime accepts an ISO-8601 string or a numeric epoch (seconds or millis).
func parseRowTime(raw json.RawMessage) (int64, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return 0, false
		}
		return t.UnixMilli(), true
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return epochMillis(int64(n)), true
}

func epochMillis(v int64) int64 {
	if v < 1e12 {
		return v * 1000
	}
	return v
}

func parseTimestamp(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(epochMillis(n))
	}
	return fallback
}

// dailyLookbackDays widens the calendar window so weekends and holidays
// still leave limit trading days.
func dailyLookbackDays(limit int) int {
	if limit <= 0 {
		return 365
	}
	return limit*2 + 10
}
