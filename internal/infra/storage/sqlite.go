package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"market_go/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const candleBatchSize = 500

// Storage persists quotes and candles handed over by the core. It is a
// write-side collaborator: the core never reads from it.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the SQLite database at path.
func NewStorage(path string) (*Storage, error) {
	if path == "" {
		return nil, &domain.ConfigError{Field: "storage.db_path", Err: errors.New("must not be empty")}
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return newStorage(db)
}

func newStorage(db *gorm.DB) (*Storage, error) {
	if err := db.AutoMigrate(&domain.AssetRecord{}, &domain.QuoteRecord{}, &domain.CandleRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================================
// Recorder
// ======================================================================================

// RecordQuote stores one quote snapshot and refreshes the asset row.
func (s *Storage) RecordQuote(ctx context.Context, symbol string, q domain.Quote) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertAsset(tx, symbol, q.Currency); err != nil {
			return err
		}
		return tx.Create(domain.NewQuoteRecord(symbol, q)).Error
	})
}

// RecordCandles upserts bars keyed by (symbol, resolution, time).
func (s *Storage) RecordCandles(ctx context.Context, symbol string, res domain.Resolution, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	records := make([]domain.CandleRecord, len(candles))
	for i, c := range candles {
		records[i] = domain.NewCandleRecord(symbol, res, c)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertAsset(tx, symbol, ""); err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}, {Name: "resolution"}, {Name: "time"}},
			DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume", "updated_at"}),
		}).CreateInBatches(records, candleBatchSize).Error
	})
}

func upsertAsset(tx *gorm.DB, symbol, currency string) error {
	asset := domain.AssetRecord{
		Symbol:   symbol,
		Currency: currency,
	}
	if domain.ResolvedSymbol(symbol).IsDomestic() {
		asset.InstrumentKey = symbol
	}

	updates := []string{"updated_at"}
	if currency != "" {
		updates = append(updates, "currency")
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(&asset).Error
}

// ======================================================================================
// Inspection
// ======================================================================================

// GetAsset retrieves an asset by symbol
func (s *Storage) GetAsset(symbol string) (*domain.AssetRecord, error) {
	var asset domain.AssetRecord
	err := s.db.First(&asset, "symbol = ?", symbol).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	return &asset, err
}

// RecentQuotes returns up to n quotes for symbol, newest first.
func (s *Storage) RecentQuotes(symbol string, n int) ([]domain.QuoteRecord, error) {
	var quotes []domain.QuoteRecord
	err := s.db.Where("symbol = ?", symbol).Order("quoted_at DESC, id DESC").Limit(n).Find(&quotes).Error
	return quotes, err
}

// CandlesSince returns stored bars at or after since, ascending by time.
func (s *Storage) CandlesSince(symbol string, res domain.Resolution, since time.Time) ([]domain.Candle, error) {
	var records []domain.CandleRecord
	err := s.db.
		Where("symbol = ? AND resolution = ? AND time >= ?", symbol, string(res), since.UnixMilli()).
		Order("time ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	candles := make([]domain.Candle, len(records))
	for i, r := range records {
		candles[i] = r.Candle()
	}
	return candles, nil
}
