// Package finnhub adapts the Finnhub REST API to domain.MarketDataProvider
// for plain global tickers.
package finnhub

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
	// Currency is assumed for every global ticker; Finnhub quotes carry no currency field.
	Currency = "USD"

	defaultTimeout = 12 * time.Second
	defaultLimit   = 100
)

var (
	intradayResolutions = []domain.Resolution{
		domain.Resolution1Min, domain.Resolution5Min, domain.Resolution15Min,
		domain.Resolution30Min, domain.Resolution60Min, domain.ResolutionDay,
	}
	dailyOnly = []domain.Resolution{domain.ResolutionDay}
)

// Option configures a Provider.
type Option func(*Provider)

func WithHTTPClient(c infra.HTTPClient) Option {
	return func(p *Provider) {
		if c != nil {
			p.client = c
		}
	}
}

func WithBaseURL(u string) Option {
	return func(p *Provider) {
		if u != "" {
			p.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithNow(now func() time.Time) Option {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
	}
}

// WithIntraday enables minute resolutions. Free keys only get daily candles,
// so intraday requests degrade to D when disabled.
func WithIntraday(enabled bool) Option {
	return func(p *Provider) {
		p.intraday = enabled
	}
}

// Provider fetches quotes and candles for global tickers.
type Provider struct {
	apiKey   string
	baseURL  string
	client   infra.HTTPClient
	timeout  time.Duration
	now      func() time.Time
	intraday bool

	missingOnce sync.Once
}

// NewProvider builds a Provider. With an empty key every call returns an
// empty result and the condition is logged once.
func NewProvider(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: infra.DefaultFinnhubURL,
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

type quoteResponse struct {
	Current   *float64 `json:"c"`
	Open      *float64 `json:"o"`
	High      *float64 `json:"h"`
	Low       *float64 `json:"l"`
	PrevClose *float64 `json:"pc"`
	Timestamp int64    `json:"t"`
}

type candleResponse struct {
	Status string    `json:"s"`
	Time   []int64   `json:"t"`
	Open   []float64 `json:"o"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Close  []float64 `json:"c"`
	Volume []float64 `json:"v"`
}

// FetchQuote returns the latest quote for symbol, or nil when none is available.
func (p *Provider) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, domain.ErrInvalidSymbol
	}
	if !p.hasCredentials() {
		return nil, nil
	}

	var resp quoteResponse
	start := time.Now()
	if err := p.getJSON(ctx, "/quote", url.Values{"symbol": {symbol}}, &resp); err != nil {
		infra.GlobalMetrics.RecordUpstream(time.Since(start), true)
		slog.Log(ctx, infra.UpstreamLevel(err), "Finnhub quote failed", slog.String("symbol", symbol), slog.Any("error", err))
		return nil, nil
	}

	// unknown tickers come back as all zeros
	if resp.Current == nil || *resp.Current == 0 {
		infra.GlobalMetrics.RecordUpstream(time.Since(start), true)
		return nil, nil
	}
	infra.GlobalMetrics.RecordUpstream(time.Since(start), false)

	price := *resp.Current
	ts := resp.Timestamp
	if ts == 0 {
		ts = p.now().Unix()
	}
	return &domain.Quote{
		Price:     price,
		Open:      nonZeroOr(resp.Open, price),
		High:      nonZeroOr(resp.High, price),
		Low:       nonZeroOr(resp.Low, price),
		PrevClose: domain.ValueOr(resp.PrevClose, 0),
		Timestamp: ts,
		Currency:  Currency,
	}, nil
}

// FetchCandles returns up to limit candles ascending by time over a lookback
// window sized for limit bars.
func (p *Provider) FetchCandles(ctx context.Context, symbol string, res domain.Resolution, limit int) ([]domain.Candle, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return []domain.Candle{}, domain.ErrInvalidSymbol
	}
	if res.Minutes() == 0 {
		return []domain.Candle{}, domain.ErrInvalidResolution
	}
	if !p.hasCredentials() {
		return []domain.Candle{}, nil
	}

	effective := p.EffectiveResolution(res)
	if effective != res {
		slog.Debug("Finnhub resolution substituted",
			slog.String("symbol", symbol),
			slog.String("requested", string(res)),
			slog.String("effective", string(effective)))
	}

	to := p.now()
	if effective == domain.ResolutionDay {
		to = lastSessionClose(to)
	}
	from := to.Add(-lookback(effective, limit))
	params := url.Values{
		"symbol":     {symbol},
		"resolution": {string(effective)},
		"from":       {strconv.FormatInt(from.Unix(), 10)},
		"to":         {strconv.FormatInt(to.Unix(), 10)},
	}

	var resp candleResponse
	start := time.Now()
	if err := p.getJSON(ctx, "/stock/candle", params, &resp); err != nil {
		infra.GlobalMetrics.RecordUpstream(time.Since(start), true)
		slog.Log(ctx, infra.UpstreamLevel(err), "Finnhub candles failed", slog.String("symbol", symbol), slog.Any("error", err))
		return []domain.Candle{}, nil
	}

	candles := resp.candles()
	if effective == domain.ResolutionDay {
		candles = completedBefore(candles, to)
	}
	infra.GlobalMetrics.RecordUpstream(time.Since(start), len(candles) == 0)
	return domain.TailSeries(domain.NormalizeSeries(candles), limit), nil
}

// Session reports the regular US equity session for the router.
func (p *Provider) Session(t time.Time) bool {
	return MarketOpen(t)
}

// EffectiveResolution is the granularity FetchCandles requests for res.
func (p *Provider) EffectiveResolution(res domain.Resolution) domain.Resolution {
	return domain.NearestSupported(res, p.supported())
}

func (p *Provider) supported() []domain.Resolution {
	if p.intraday {
		return intradayResolutions
	}
	return dailyOnly
}

func (p *Provider) hasCredentials() bool {
	if p.apiKey != "" {
		return true
	}
	p.missingOnce.Do(func() {
		slog.Warn("Finnhub API key not configured; global data disabled",
			slog.Any("error", domain.ErrMissingCredentials))
	})
	return false
}

func (p *Provider) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params.Set("token", p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return domain.NewFatalNetworkError("finnhub", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", infra.DefaultUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.NewNetworkError("finnhub", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		err := fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return domain.NewNetworkError("finnhub", err)
		}
		return domain.NewFatalNetworkError("finnhub", err)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewFatalNetworkError("finnhub", fmt.Errorf("decode: %w", err))
	}
	return nil
}

// candles zips the column arrays. Rows missing from any column are dropped.
func (r *candleResponse) candles() []domain.Candle {
	if r.Status != "ok" {
		return nil
	}
	n := min(len(r.Time), len(r.Open), len(r.High), len(r.Low), len(r.Close))
	out := make([]domain.Candle, 0, n)
	for i := 0; i < n; i++ {
		c := domain.Candle{
			Time:  r.Time[i] * 1000,
			Open:  r.Open[i],
			High:  r.High[i],
			Low:   r.Low[i],
			Close: r.Close[i],
		}
		if i < len(r.Volume) {
			c.Volume = r.Volume[i]
		}
		out = append(out, c)
	}
	return out
}

// completedBefore drops bars stamped after cutoff.
func completedBefore(candles []domain.Candle, cutoff time.Time) []domain.Candle {
	limit := cutoff.UnixMilli()
	out := candles[:0]
	for _, c := range candles {
		if c.Time <= limit {
			out = append(out, c)
		}
	}
	return out
}

// lookback spans limit bars of res, padded for nights and weekends.
func lookback(res domain.Resolution, limit int) time.Duration {
	if limit <= 0 {
		limit = defaultLimit
	}
	if res == domain.ResolutionDay {
		return time.Duration(limit*2+10) * 24 * time.Hour
	}
	// a regular session is 6.5h, so a calendar day holds at most 390 minute bars
	barsPerDay := max(390/res.Minutes(), 1)
	days := limit/barsPerDay + 4
	return time.Duration(days) * 24 * time.Hour
}

func nonZeroOr(v *float64, def float64) float64 {
	if v == nil || *v == 0 {
		return def
	}
	return *v
}
