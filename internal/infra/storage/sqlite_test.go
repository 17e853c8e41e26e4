package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"market_go/internal/domain"

	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestNewStorage_EmptyPath(t *testing.T) {
	if _, err := NewStorage(""); err == nil {
		t.Fatal("expected config error for empty path")
	}
}

func TestRecordQuote(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	q := domain.Quote{Price: 2500.55, Open: 2480, High: 2510, Low: 2470, PrevClose: 2490, Volume: 1200, Timestamp: 1704873600, Currency: "INR"}

	// 1. Record twice
	if err := s.RecordQuote(ctx, "NSE_EQ|INE002A01018", q); err != nil {
		t.Fatalf("RecordQuote failed: %v", err)
	}
	q.Price = 2501
	q.Timestamp++
	if err := s.RecordQuote(ctx, "NSE_EQ|INE002A01018", q); err != nil {
		t.Fatalf("RecordQuote failed: %v", err)
	}

	// 2. Asset row is created once
	asset, err := s.GetAsset("NSE_EQ|INE002A01018")
	if err != nil {
		t.Fatalf("GetAsset failed: %v", err)
	}
	if asset == nil {
		t.Fatal("asset is nil")
	}
	if asset.InstrumentKey != "NSE_EQ|INE002A01018" || asset.Currency != "INR" || asset.Type != "stock" {
		t.Errorf("unexpected asset: %+v", asset)
	}

	// 3. Quotes are appended, newest first
	quotes, err := s.RecentQuotes("NSE_EQ|INE002A01018", 10)
	if err != nil {
		t.Fatalf("RecentQuotes failed: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(quotes))
	}
	if !quotes[0].Price.Equal(decimal.NewFromInt(2501)) {
		t.Errorf("expected newest price 2501, got %s", quotes[0].Price)
	}
	if !quotes[1].Price.Equal(decimal.RequireFromString("2500.55")) {
		t.Errorf("expected exact price 2500.55, got %s", quotes[1].Price)
	}
}

func TestGetAsset_NotFound(t *testing.T) {
	s := setupTestDB(t)

	asset, err := s.GetAsset("MISSING")
	if err != nil {
		t.Fatalf("not found must not be an error: %v", err)
	}
	if asset != nil {
		t.Errorf("expected nil asset, got %+v", asset)
	}
}

func TestRecordCandles_Upsert(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	first := []domain.Candle{
		{Time: 1000, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{Time: 2000, Open: 2, High: 3, Low: 1.5, Close: 2.5, Volume: 20},
	}
	if err := s.RecordCandles(ctx, "AAPL", domain.ResolutionDay, first); err != nil {
		t.Fatalf("RecordCandles failed: %v", err)
	}

	// overlapping series revises the last bar and adds a new one
	second := []domain.Candle{
		{Time: 2000, Open: 2, High: 3.5, Low: 1.5, Close: 3, Volume: 25},
		{Time: 3000, Open: 3, High: 4, Low: 2.5, Close: 3.5, Volume: 30},
	}
	if err := s.RecordCandles(ctx, "AAPL", domain.ResolutionDay, second); err != nil {
		t.Fatalf("RecordCandles failed: %v", err)
	}
	if err := s.RecordCandles(ctx, "AAPL", domain.Resolution5Min, first[:1]); err != nil {
		t.Fatalf("RecordCandles failed: %v", err)
	}

	got, err := s.CandlesSince("AAPL", domain.ResolutionDay, time.UnixMilli(0))
	if err != nil {
		t.Fatalf("CandlesSince failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 daily candles, got %d", len(got))
	}
	if got[1].Close != 3 || got[1].Volume != 25 {
		t.Errorf("expected revised bar, got %+v", got[1])
	}

	recent, err := s.CandlesSince("AAPL", domain.ResolutionDay, time.UnixMilli(2500))
	if err != nil {
		t.Fatalf("CandlesSince failed: %v", err)
	}
	if len(recent) != 1 || recent[0].Time != 3000 {
		t.Errorf("unexpected filtered candles: %+v", recent)
	}

	asset, _ := s.GetAsset("AAPL")
	if asset == nil || asset.InstrumentKey != "" {
		t.Errorf("global symbols carry no instrument key: %+v", asset)
	}
}

func TestRecordCandles_Empty(t *testing.T) {
	s := setupTestDB(t)
	if err := s.RecordCandles(context.Background(), "AAPL", domain.ResolutionDay, nil); err != nil {
		t.Fatalf("empty series must be a no-op: %v", err)
	}
	if asset, _ := s.GetAsset("AAPL"); asset != nil {
		t.Error("empty series must not create an asset")
	}
}
