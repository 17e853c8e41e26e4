package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"market_go/internal/domain"

	"github.com/parquet-go/parquet-go"
)

// Bar is the on-disk parquet row.
type Bar struct {
	Timestamp int64   `parquet:"t"`
	Open      float64 `parquet:"o"`
	High      float64 `parquet:"h"`
	Low       float64 `parquet:"l"`
	Close     float64 `parquet:"c"`
	Volume    float64 `parquet:"v"`
}

// ParquetArchive writes each candle series it receives to its own file
// under dir/<symbol>/<resolution>/<first>-<last>.parquet. Quotes are ignored.
type ParquetArchive struct {
	dir string
}

func NewParquetArchive(dir string) *ParquetArchive {
	return &ParquetArchive{dir: dir}
}

func (a *ParquetArchive) RecordQuote(context.Context, string, domain.Quote) error {
	return nil
}

func (a *ParquetArchive) RecordCandles(ctx context.Context, symbol string, res domain.Resolution, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	bars := make([]Bar, len(candles))
	for i, c := range candles {
		bars[i] = Bar{
			Timestamp: c.Time,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		}
	}

	path := a.Path(symbol, res, candles[0].Time, candles[len(candles)-1].Time)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := parquet.WriteFile(tmp, bars); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write parquet: %w", err)
	}
	return os.Rename(tmp, path)
}

// Path is where a series with the given bounds is archived.
func (a *ParquetArchive) Path(symbol string, res domain.Resolution, first, last int64) string {
	return filepath.Join(a.dir, safeName(symbol), safeName(string(res)), fmt.Sprintf("%d-%d.parquet", first, last))
}

// ReadBars loads an archived file.
func ReadBars(path string) ([]Bar, error) {
	return parquet.ReadFile[Bar](path)
}

// safeName keeps instrument keys like "NSE_EQ|INE002A01018" filesystem-friendly.
func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '|', '/', '\\', ':', '*', '?', '"', '<', '>':
			return '_'
		}
		return r
	}, s)
}
