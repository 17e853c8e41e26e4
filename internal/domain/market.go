package domain

import (
	"sort"
	"strings"
)

// KeySeparator splits a domestic instrument key into segment and identifier.
const KeySeparator = "|"

// InstrumentRecord is one row of the domestic instrument master.
type InstrumentRecord struct {
	Symbol          string `json:"symbol"`
	InstrumentKey   string `json:"instrument_key"`
	ExchangeSegment string `json:"exchange_segment"`
}

// ResolvedSymbol is either a domestic instrument key ("NSE_EQ|INE002A01018")
// or an uppercased ticker that is treated as a global symbol.
type ResolvedSymbol string

// IsDomestic reports whether the value carries the domestic key separator.
func (r ResolvedSymbol) IsDomestic() bool {
	return strings.Contains(string(r), KeySeparator)
}

func (r ResolvedSymbol) String() string { return string(r) }

// ValidateInstrumentKey checks the "<SEGMENT>|<ID>" shape: exactly one
// separator with non-empty parts on both sides.
func ValidateInstrumentKey(key string) error {
	if strings.Count(key, KeySeparator) != 1 {
		return ErrInvalidInstrumentKey
	}
	segment, id, _ := strings.Cut(key, KeySeparator)
	if strings.TrimSpace(segment) == "" || strings.TrimSpace(id) == "" {
		return ErrInvalidInstrumentKey
	}
	return nil
}

// Quote is the canonical last-price snapshot.
// Open/High/Low default to Price and PrevClose/Volume default to zero when
// the upstream omits them.
type Quote struct {
	Price     float64 `json:"price"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	PrevClose float64 `json:"prev_close"`
	Volume    float64 `json:"volume"`
	Timestamp int64   `json:"timestamp"` // epoch seconds
	Currency  string  `json:"currency"`
}

// ValueOr returns *v, or def when the upstream omitted the field.
func ValueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// Candle is one OHLCV bar. Time is the bar open in epoch milliseconds.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// NormalizeSeries sorts candles ascending by time and drops duplicate
// timestamps, keeping the last occurrence. It never returns nil.
func NormalizeSeries(candles []Candle) []Candle {
	out := make([]Candle, 0, len(candles))
	if len(candles) == 0 {
		return out
	}

	sorted := make([]Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time < sorted[j].Time
	})

	for _, c := range sorted {
		if n := len(out); n > 0 && out[n-1].Time == c.Time {
			out[n-1] = c
			continue
		}
		out = append(out, c)
	}
	return out
}

// TailSeries keeps the most recent limit candles. limit <= 0 keeps everything.
func TailSeries(candles []Candle, limit int) []Candle {
	if limit <= 0 || len(candles) <= limit {
		return candles
	}
	return candles[len(candles)-limit:]
}

// Closes extracts close prices in series order.
func Closes(candles []Candle) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}
