package domain

import (
	"errors"
	"testing"
)

func TestValidateInstrumentKey(t *testing.T) {
	cases := []struct {
		key  string
		want error
	}{
		{"NSE_EQ|INE002A01018", nil},
		{"AAPL", ErrInvalidInstrumentKey},
		{"NSE_EQ|", ErrInvalidInstrumentKey},
		{"|INE002A01018", ErrInvalidInstrumentKey},
		{"NSE_EQ|A|B", ErrInvalidInstrumentKey},
		{"", ErrInvalidInstrumentKey},
	}

	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			if err := ValidateInstrumentKey(tc.key); !errors.Is(err, tc.want) {
				t.Errorf("ValidateInstrumentKey(%q) = %v, want %v", tc.key, err, tc.want)
			}
		})
	}
}

func TestResolvedSymbol_IsDomestic(t *testing.T) {
	if !ResolvedSymbol("NSE_EQ|INE467B01029").IsDomestic() {
		t.Error("key with separator should be domestic")
	}
	if ResolvedSymbol("AAPL").IsDomestic() {
		t.Error("plain ticker should not be domestic")
	}
}

func TestNormalizeSeries(t *testing.T) {
	t.Run("Sorts ascending and keeps last duplicate", func(t *testing.T) {
		in := []Candle{
			{Time: 3000, Close: 3},
			{Time: 1000, Close: 1},
			{Time: 2000, Close: 2},
			{Time: 2000, Close: 22},
		}

		out := NormalizeSeries(in)

		if len(out) != 3 {
			t.Fatalf("expected 3 candles, got %d", len(out))
		}
		for i := 1; i < len(out); i++ {
			if out[i].Time <= out[i-1].Time {
				t.Fatalf("series not strictly ascending at %d: %v", i, out)
			}
		}
		if out[1].Close != 22 {
			t.Errorf("expected the later duplicate to win, got close %v", out[1].Close)
		}
		if in[0].Time != 3000 {
			t.Error("input slice must not be reordered")
		}
	})

	t.Run("Safety: Empty input is non-nil", func(t *testing.T) {
		out := NormalizeSeries(nil)
		if out == nil || len(out) != 0 {
			t.Errorf("expected empty non-nil series, got %#v", out)
		}
	})
}

func TestTailSeries(t *testing.T) {
	in := []Candle{{Time: 1}, {Time: 2}, {Time: 3}}

	if got := TailSeries(in, 2); len(got) != 2 || got[0].Time != 2 {
		t.Errorf("TailSeries(2) = %v", got)
	}
	if got := TailSeries(in, 0); len(got) != 3 {
		t.Errorf("TailSeries(0) should keep everything, got %v", got)
	}
}

func TestValueOr(t *testing.T) {
	v := 12.5
	if ValueOr(&v, 1) != 12.5 {
		t.Error("expected present value")
	}
	if ValueOr(nil, 7) != 7 {
		t.Error("expected default for omitted value")
	}
}
