package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetRecord represents a symbol that has been seen by the core
type AssetRecord struct {
	Symbol        string    `gorm:"primaryKey" json:"symbol"`
	InstrumentKey string    `json:"instrument_key"`
	Currency      string    `json:"currency"`
	Type          string    `json:"type" gorm:"default:stock"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// QuoteRecord is one stored quote snapshot
type QuoteRecord struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Symbol    string          `gorm:"index:idx_quote_symbol_time" json:"symbol"`
	QuotedAt  time.Time       `gorm:"index:idx_quote_symbol_time" json:"quoted_at"`
	Price     decimal.Decimal `gorm:"type:numeric" json:"price"`
	Open      decimal.Decimal `gorm:"type:numeric" json:"open"`
	High      decimal.Decimal `gorm:"type:numeric" json:"high"`
	Low       decimal.Decimal `gorm:"type:numeric" json:"low"`
	PrevClose decimal.Decimal `gorm:"type:numeric" json:"prev_close"`
	Volume    decimal.Decimal `gorm:"type:numeric" json:"volume"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"created_at"`
}

// CandleRecord is one stored bar, unique per (symbol, resolution, time)
type CandleRecord struct {
	Symbol     string          `gorm:"primaryKey" json:"symbol"`
	Resolution string          `gorm:"primaryKey" json:"resolution"`
	Time       int64           `gorm:"primaryKey;autoIncrement:false" json:"time"`
	Open       decimal.Decimal `gorm:"type:numeric" json:"open"`
	High       decimal.Decimal `gorm:"type:numeric" json:"high"`
	Low        decimal.Decimal `gorm:"type:numeric" json:"low"`
	Close      decimal.Decimal `gorm:"type:numeric" json:"close"`
	Volume     decimal.Decimal `gorm:"type:numeric" json:"volume"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// NewQuoteRecord converts a quote into its stored form
func NewQuoteRecord(symbol string, q Quote) *QuoteRecord {
	return &QuoteRecord{
		Symbol:    symbol,
		QuotedAt:  time.Unix(q.Timestamp, 0).UTC(),
		Price:     decimal.NewFromFloat(q.Price),
		Open:      decimal.NewFromFloat(q.Open),
		High:      decimal.NewFromFloat(q.High),
		Low:       decimal.NewFromFloat(q.Low),
		PrevClose: decimal.NewFromFloat(q.PrevClose),
		Volume:    decimal.NewFromFloat(q.Volume),
		Currency:  q.Currency,
	}
}

// NewCandleRecord converts a bar into its stored form
func NewCandleRecord(symbol string, res Resolution, c Candle) CandleRecord {
	return CandleRecord{
		Symbol:     symbol,
		Resolution: string(res),
		Time:       c.Time,
		Open:       decimal.NewFromFloat(c.Open),
		High:       decimal.NewFromFloat(c.High),
		Low:        decimal.NewFromFloat(c.Low),
		Close:      decimal.NewFromFloat(c.Close),
		Volume:     decimal.NewFromFloat(c.Volume),
	}
}

// Candle converts the stored bar back to the canonical shape
func (r CandleRecord) Candle() Candle {
	return Candle{
		Time:   r.Time,
		Open:   r.Open.InexactFloat64(),
		High:   r.High.InexactFloat64(),
		Low:    r.Low.InexactFloat64(),
		Close:  r.Close.InexactFloat64(),
		Volume: r.Volume.InexactFloat64(),
	}
}
