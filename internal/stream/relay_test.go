package stream

import (
	"context"
	"testing"
	"time"

	"market_go/internal/domain"
	"market_go/internal/domain/mocks"
	"market_go/internal/resolver"
	"market_go/internal/router"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testInterval = 5 * time.Millisecond

func newRelay(lookup domain.InstrumentLookup, domestic, global domain.MarketDataProvider) *Relay {
	rt := router.New(
		router.Venue{Name: "upstox", Currency: "INR", Provider: domestic},
		router.Venue{Name: "finnhub", Currency: "USD", Provider: global},
	)
	return NewRelay(resolver.New(lookup), rt, testInterval)
}

func nextFrame(t *testing.T, sub *Subscription) (Frame, bool) {
	t.Helper()
	select {
	case f, ok := <-sub.Frames():
		return f, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return Frame{}, false
	}
}

func waitDone(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not finish")
	}
}

func TestRelay_InitialThenUpdates(t *testing.T) {
	t.Parallel()

	// Arrange
	ctrl := gomock.NewController(t)
	global := mocks.NewMockMarketDataProvider(ctrl)
	prices := []float64{100, 101, 102}
	calls := 0
	global.EXPECT().FetchQuote(gomock.Any(), "AAPL").DoAndReturn(
		func(ctx context.Context, key string) (*domain.Quote, error) {
			p := prices[min(calls, len(prices)-1)]
			calls++
			return &domain.Quote{Price: p, Currency: "USD", Timestamp: 1}, nil
		}).MinTimes(3)

	relay := newRelay(nil, nil, global)

	// Act
	sub := relay.Open(context.Background(), "aapl")

	// Assert
	first, ok := nextFrame(t, sub)
	require.True(t, ok)
	assert.Equal(t, FrameInitial, first.Type)
	assert.Equal(t, "aapl", first.Symbol)
	require.NotNil(t, first.Price)
	assert.Equal(t, 100.0, *first.Price)
	assert.Equal(t, "USD", first.Currency)

	for _, want := range []float64{101, 102} {
		f, ok := nextFrame(t, sub)
		require.True(t, ok)
		assert.Equal(t, FrameUpdate, f.Type)
		assert.Equal(t, want, *f.Price)
	}
	assert.Equal(t, StateOpen, sub.State())
	assert.Equal(t, domain.ResolvedSymbol("AAPL"), sub.Resolved())
	assert.Equal(t, router.KindGlobal, sub.Venue().Kind)

	sub.Close()
	assert.Equal(t, StateClosed, sub.State())
	for range sub.Frames() {
		// drain buffered frames; the channel must be closed
	}
}

func TestRelay_EmptyPollsStayOpenWithoutFrames(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	global := mocks.NewMockMarketDataProvider(ctrl)
	global.EXPECT().FetchQuote(gomock.Any(), "AAPL").Return(nil, nil).MinTimes(2)

	sub := newRelay(nil, nil, global).Open(context.Background(), "AAPL")

	time.Sleep(20 * testInterval)
	select {
	case f := <-sub.Frames():
		t.Fatalf("unexpected frame %+v", f)
	default:
	}
	assert.Equal(t, StateOpen, sub.State())

	sub.Close()
	assert.Equal(t, StateClosed, sub.State())
	_, ok := <-sub.Frames()
	assert.False(t, ok)
}

func TestRelay_SkipsMissedTicks(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	global := mocks.NewMockMarketDataProvider(ctrl)
	gomock.InOrder(
		global.EXPECT().FetchQuote(gomock.Any(), "AAPL").Return(nil, nil).Times(2),
		global.EXPECT().FetchQuote(gomock.Any(), "AAPL").Return(&domain.Quote{Price: 5}, nil).AnyTimes(),
	)

	sub := newRelay(nil, nil, global).Open(context.Background(), "AAPL")
	defer sub.Close()

	f, ok := nextFrame(t, sub)
	require.True(t, ok)
	assert.Equal(t, FrameInitial, f.Type)
	assert.Equal(t, 5.0, *f.Price)
}

func TestRelay_ErrorSendsSingleTerminalFrame(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	domestic := mocks.NewMockMarketDataProvider(ctrl)
	domestic.EXPECT().FetchQuote(gomock.Any(), "A|B|C").Return(nil, domain.ErrInvalidInstrumentKey).Times(1)

	sub := newRelay(nil, domestic, nil).Open(context.Background(), "A|B|C")

	f, ok := nextFrame(t, sub)
	require.True(t, ok)
	assert.Equal(t, FrameError, f.Type)
	assert.Equal(t, "A|B|C", f.Symbol)
	assert.Nil(t, f.Price)
	assert.Contains(t, f.Error, "malformed instrument key")

	_, ok = nextFrame(t, sub)
	assert.False(t, ok)
	waitDone(t, sub)
	assert.Equal(t, StateClosed, sub.State())
}

func TestRelay_PanicBecomesErrorFrame(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	global := mocks.NewMockMarketDataProvider(ctrl)
	global.EXPECT().FetchQuote(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, key string) (*domain.Quote, error) {
			panic("boom")
		})

	sub := newRelay(nil, nil, global).Open(context.Background(), "AAPL")

	f, ok := nextFrame(t, sub)
	require.True(t, ok)
	assert.Equal(t, FrameError, f.Type)
	waitDone(t, sub)
}

func TestRelay_ResolvesOnce(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	lookup := mocks.NewMockInstrumentLookup(ctrl)
	lookup.EXPECT().Lookup("RELIANCE").Return("NSE_EQ|INE002A01018", true).Times(1)

	domestic := mocks.NewMockMarketDataProvider(ctrl)
	domestic.EXPECT().FetchQuote(gomock.Any(), "NSE_EQ|INE002A01018").
		Return(&domain.Quote{Price: 2500, Currency: "INR"}, nil).MinTimes(3)

	sub := newRelay(lookup, domestic, nil).Open(context.Background(), " reliance ")
	for i := 0; i < 3; i++ {
		_, ok := nextFrame(t, sub)
		require.True(t, ok)
	}
	assert.Equal(t, router.KindDomestic, sub.Venue().Kind)
	sub.Close()
}

func TestRelay_ContextCancelCloses(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	global := mocks.NewMockMarketDataProvider(ctrl)
	global.EXPECT().FetchQuote(gomock.Any(), "AAPL").Return(nil, nil).AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	sub := newRelay(nil, nil, global).Open(ctx, "AAPL")
	cancel()

	waitDone(t, sub)
	assert.Equal(t, StateClosed, sub.State())
	_, ok := <-sub.Frames()
	assert.False(t, ok)
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(9).String())
}
