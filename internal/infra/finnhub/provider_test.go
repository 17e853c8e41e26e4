package finnhub

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"market_go/internal/domain"
	"market_go/internal/infra/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var fixedNow = time.Date(2024, 1, 10, 15, 0, 0, 0, time.UTC)

type queryLog struct {
	mu      sync.Mutex
	queries []url.Values
}

func (l *queryLog) add(q url.Values) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queries = append(l.queries, q)
}

func (l *queryLog) last() url.Values {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queries) == 0 {
		return nil
	}
	return l.queries[len(l.queries)-1]
}

func newTestProvider(t *testing.T, intraday bool, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewProvider("key",
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithIntraday(intraday),
		WithNow(func() time.Time { return fixedNow }),
	)
}

func TestFetchQuote(t *testing.T) {
	t.Parallel()

	var log queryLog
	p := newTestProvider(t, false, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		log.add(r.URL.Query())
		_, _ = w.Write([]byte(`{"c":185.2,"o":184,"h":186,"l":183.5,"pc":182,"t":1704898800}`))
	})

	q, err := p.FetchQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, domain.Quote{
		Price: 185.2, Open: 184, High: 186, Low: 183.5, PrevClose: 182,
		Timestamp: 1704898800, Currency: "USD",
	}, *q)
	assert.Equal(t, "AAPL", log.last().Get("symbol"))
	assert.Equal(t, "key", log.last().Get("token"))
}

func TestFetchQuote_UnknownTickerIsEmpty(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, false, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"c":0,"d":null,"dp":null,"h":0,"l":0,"o":0,"pc":0,"t":0}`))
	})

	q, err := p.FetchQuote(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, q)
}

func TestFetchQuote_EmptyOnFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"rate limited", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTooManyRequests) }},
		{"forbidden", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusForbidden) }},
		{"garbage", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`<html>`)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := newTestProvider(t, false, tt.handler)
			q, err := p.FetchQuote(context.Background(), "AAPL")
			require.NoError(t, err)
			assert.Nil(t, q)
		})
	}
}

func TestFetchQuote_Timeout(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockHTTPClient(ctrl)
	client.EXPECT().Do(gomock.Any()).DoAndReturn(func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})

	p := NewProvider("key", WithHTTPClient(client), WithTimeout(20*time.Millisecond))
	q, err := p.FetchQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Nil(t, q)
}

func TestMissingKey(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockHTTPClient(ctrl) // no calls expected

	p := NewProvider("", WithHTTPClient(client))
	q, err := p.FetchQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Nil(t, q)

	candles, err := p.FetchCandles(context.Background(), "AAPL", domain.ResolutionDay, 5)
	require.NoError(t, err)
	assert.NotNil(t, candles)
	assert.Empty(t, candles)
}

func TestInvalidInput(t *testing.T) {
	t.Parallel()

	p := NewProvider("key", WithHTTPClient(mocks.NewMockHTTPClient(gomock.NewController(t))))

	_, err := p.FetchQuote(context.Background(), "  ")
	assert.True(t, domain.IsInvalidInput(err))

	candles, err := p.FetchCandles(context.Background(), "AAPL", domain.Resolution("W"), 5)
	assert.ErrorIs(t, err, domain.ErrInvalidResolution)
	assert.NotNil(t, candles)
}

func TestFetchCandles_DegradesToDaily(t *testing.T) {
	t.Parallel()

	var log queryLog
	p := newTestProvider(t, false, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stock/candle", r.URL.Path)
		log.add(r.URL.Query())
		_, _ = w.Write([]byte(`{"s":"ok","t":[1704758400,1704672000],"o":[2,1],"h":[3,2],"l":[1,0.5],"c":[2.5,1.5],"v":[20,10]}`))
	})

	candles, err := p.FetchCandles(context.Background(), "AAPL", domain.Resolution5Min, 10)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(1704672000000), candles[0].Time)
	assert.Equal(t, 1.5, candles[0].Close)
	assert.Equal(t, 2.5, candles[1].Close)

	q := log.last()
	assert.Equal(t, "D", q.Get("resolution"))
	// fixedNow is mid-session, so the window ends at the previous close (2024-01-09 16:00 ET)
	assert.Equal(t, "1704834000", q.Get("to"))
}

func TestFetchCandles_DailyExcludesFormingBar(t *testing.T) {
	t.Parallel()

	// 2024-01-09 and the still-open 2024-01-10 session
	p := newTestProvider(t, false, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"s":"ok","t":[1704758400,1704844800],"o":[1,2],"h":[1,2],"l":[1,2],"c":[1,2],"v":[1,2]}`))
	})

	candles, err := p.FetchCandles(context.Background(), "AAPL", domain.ResolutionDay, 10)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, int64(1704758400000), candles[0].Time)
}

func TestLastSessionClose(t *testing.T) {
	t.Parallel()

	est := time.FixedZone("EST", -5*60*60)
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"mid session", time.Date(2024, 1, 10, 15, 0, 0, 0, time.UTC), time.Date(2024, 1, 9, 16, 0, 0, 0, est)},
		{"at close", time.Date(2024, 1, 10, 21, 0, 0, 0, time.UTC), time.Date(2024, 1, 10, 16, 0, 0, 0, est)},
		{"monday pre-open", time.Date(2024, 1, 8, 13, 0, 0, 0, time.UTC), time.Date(2024, 1, 5, 16, 0, 0, 0, est)},
		{"saturday", time.Date(2024, 1, 13, 22, 0, 0, 0, time.UTC), time.Date(2024, 1, 12, 16, 0, 0, 0, est)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(lastSessionClose(tt.now)), "got %s", lastSessionClose(tt.now))
		})
	}
}

func TestEffectiveResolution(t *testing.T) {
	t.Parallel()

	daily := NewProvider("key")
	assert.Equal(t, domain.ResolutionDay, daily.EffectiveResolution(domain.Resolution5Min))
	assert.Equal(t, domain.ResolutionDay, daily.EffectiveResolution(domain.ResolutionDay))

	intraday := NewProvider("key", WithIntraday(true))
	assert.Equal(t, domain.Resolution5Min, intraday.EffectiveResolution(domain.Resolution5Min))
}

func TestFetchCandles_IntradayEnabled(t *testing.T) {
	t.Parallel()

	var log queryLog
	p := newTestProvider(t, true, func(w http.ResponseWriter, r *http.Request) {
		log.add(r.URL.Query())
		_, _ = w.Write([]byte(`{"s":"ok","t":[1704898500],"o":[1],"h":[1],"l":[1],"c":[1],"v":[1]}`))
	})

	candles, err := p.FetchCandles(context.Background(), "AAPL", domain.Resolution15Min, 10)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, "15", log.last().Get("resolution"))
}

func TestFetchCandles_NoDataAndLimit(t *testing.T) {
	t.Parallel()

	t.Run("no_data", func(t *testing.T) {
		t.Parallel()
		p := newTestProvider(t, false, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"s":"no_data"}`))
		})
		candles, err := p.FetchCandles(context.Background(), "ZZZZ", domain.ResolutionDay, 10)
		require.NoError(t, err)
		assert.NotNil(t, candles)
		assert.Empty(t, candles)
	})

	t.Run("limit and ragged columns", func(t *testing.T) {
		t.Parallel()
		p := newTestProvider(t, false, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"s":"ok","t":[1,2,3,4],"o":[1,2,3,4],"h":[1,2,3,4],"l":[1,2,3,4],"c":[1,2,3],"v":[]}`))
		})
		candles, err := p.FetchCandles(context.Background(), "AAPL", domain.ResolutionDay, 2)
		require.NoError(t, err)
		require.Len(t, candles, 2)
		assert.Equal(t, 2.0, candles[0].Close)
		assert.Equal(t, 3.0, candles[1].Close)
		assert.Zero(t, candles[1].Volume)
	})

	t.Run("server error", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		client := mocks.NewMockHTTPClient(ctrl)
		client.EXPECT().Do(gomock.Any()).Return(nil, errors.New("dial tcp: refused"))
		p := NewProvider("key", WithHTTPClient(client))
		candles, err := p.FetchCandles(context.Background(), "AAPL", domain.ResolutionDay, 2)
		require.NoError(t, err)
		assert.NotNil(t, candles)
		assert.Empty(t, candles)
	})
}

func TestLookback(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 30*24*time.Hour, lookback(domain.ResolutionDay, 10))
	assert.Equal(t, 210*24*time.Hour, lookback(domain.ResolutionDay, 0))
	assert.Equal(t, 5*24*time.Hour, lookback(domain.Resolution60Min, 6))
	assert.Equal(t, 6*24*time.Hour, lookback(domain.Resolution1Min, 800))
}

func TestMarketOpen(t *testing.T) {
	t.Parallel()

	// 2024-01-10 is a Wednesday; New York is UTC-5 in January
	assert.False(t, MarketOpen(time.Date(2024, 1, 10, 14, 29, 0, 0, time.UTC)))
	assert.True(t, MarketOpen(time.Date(2024, 1, 10, 14, 30, 0, 0, time.UTC)))
	assert.True(t, MarketOpen(time.Date(2024, 1, 10, 20, 59, 0, 0, time.UTC)))
	assert.False(t, MarketOpen(time.Date(2024, 1, 10, 21, 0, 0, 0, time.UTC)))
	assert.False(t, MarketOpen(time.Date(2024, 1, 13, 15, 0, 0, 0, time.UTC)))
	// daylight saving: UTC-4 in July
	assert.True(t, MarketOpen(time.Date(2024, 7, 10, 13, 30, 0, 0, time.UTC)))
}
