// Package registry keeps the domestic symbol -> instrument key table.
//
// The table comes from a gzip-compressed CSV master published by the broker.
// A filtered copy is cached on disk and only re-downloaded once it is older
// than the configured TTL. Readers always see a complete map: refreshes build
// a new map and swap the pointer.
package registry

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"market_go/internal/domain"
	"market_go/internal/infra"

	"github.com/klauspost/compress/gzip"
)

const (
	colInstrumentKey = "instrument_key"
	colExchange      = "exchange"
)

// symbol column names differ between master file revisions
var symbolColumns = []string{"tradingsymbol", "trading_symbol", "symbol"}

// Options configures a Registry.
type Options struct {
	URL       string
	CachePath string
	Segment   string
	TTL       time.Duration
	Client    infra.HTTPClient
	Now       func() time.Time
}

// Registry maps uppercased trading symbols to domestic instrument keys.
type Registry struct {
	url       string
	cachePath string
	segment   string
	ttl       time.Duration
	client    infra.HTTPClient
	now       func() time.Time

	loadMu  sync.Mutex
	symbols atomic.Pointer[map[string]domain.InstrumentRecord]
}

// New creates a registry. Nothing is loaded until Load is called.
func New(opts Options) *Registry {
	if opts.Client == nil {
		opts.Client = infra.NewHTTPClient(30 * time.Second)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	r := &Registry{
		url:       opts.URL,
		cachePath: opts.CachePath,
		segment:   opts.Segment,
		ttl:       opts.TTL,
		client:    opts.Client,
		now:       opts.Now,
	}
	empty := make(map[string]domain.InstrumentRecord)
	r.symbols.Store(&empty)
	return r
}

// NewStatic builds a registry over a fixed table, without network or disk.
func NewStatic(records []domain.InstrumentRecord) *Registry {
	r := New(Options{})
	r.Replace(records)
	return r
}

// Replace swaps in a new table built from records.
func (r *Registry) Replace(records []domain.InstrumentRecord) {
	next := make(map[string]domain.InstrumentRecord, len(records))
	for _, rec := range records {
		sym := normalize(rec.Symbol)
		if sym == "" || rec.InstrumentKey == "" {
			continue
		}
		rec.Symbol = sym
		next[sym] = rec
	}
	r.symbols.Store(&next)
	infra.GlobalMetrics.SetInstrumentCount(len(next))
}

// Lookup returns the instrument key for symbol (case-insensitive, trimmed).
func (r *Registry) Lookup(symbol string) (string, bool) {
	rec, ok := (*r.symbols.Load())[normalize(symbol)]
	if !ok {
		return "", false
	}
	return rec.InstrumentKey, true
}

// Record returns the full row for symbol.
func (r *Registry) Record(symbol string) (domain.InstrumentRecord, bool) {
	rec, ok := (*r.symbols.Load())[normalize(symbol)]
	return rec, ok
}

// Len returns the number of loaded symbols.
func (r *Registry) Len() int {
	return len(*r.symbols.Load())
}

// Load refreshes the on-disk cache when it is missing or older than the TTL,
// then replaces the in-memory table from the cache. Calling it again while the
// cache is fresh only re-reads the file.
//
// A failed refresh never touches the existing cache file or the current table.
// If nothing has been loaded yet, a stale cache file is still used. When no
// table could be loaded at all the error wraps domain.ErrRegistryNotLoaded.
func (r *Registry) Load(ctx context.Context) error {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	err := r.load(ctx)
	if err != nil && r.Len() == 0 {
		return fmt.Errorf("%w: %w", domain.ErrRegistryNotLoaded, err)
	}
	return err
}

func (r *Registry) load(ctx context.Context) error {
	var refreshErr error
	if !r.cacheFresh() {
		slog.Info("Downloading instrument master", slog.String("url", r.url))
		refreshErr = r.refreshCache(ctx)
		if refreshErr != nil {
			slog.Log(ctx, infra.UpstreamLevel(refreshErr), "Instrument master refresh failed", slog.Any("error", refreshErr))
			if r.Len() > 0 || !fileExists(r.cachePath) {
				return refreshErr
			}
			slog.Warn("Using stale instrument cache", slog.String("path", r.cachePath))
		}
	}

	records, err := r.readCache()
	if err != nil {
		return errors.Join(refreshErr, fmt.Errorf("read instrument cache: %w", err))
	}
	if len(records) == 0 {
		return errors.Join(refreshErr, fmt.Errorf("instrument cache %s has no %s rows", r.cachePath, r.segment))
	}

	r.Replace(records)
	slog.Info("Instruments loaded", slog.Int("symbols", r.Len()), slog.String("segment", r.segment))
	return refreshErr
}

func (r *Registry) cacheFresh() bool {
	info, err := os.Stat(r.cachePath)
	if err != nil {
		return false
	}
	return r.now().Sub(info.ModTime()) < r.ttl
}

// refreshCache downloads the master, keeps only the configured segment and
// atomically replaces the cache file.
func (r *Registry) refreshCache(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return domain.NewFatalNetworkError("download", err)
	}
	req.Header.Set("User-Agent", infra.DefaultUserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return domain.NewNetworkError("download", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.NewNetworkError("download", fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return domain.NewNetworkError("download", fmt.Errorf("gzip: %w", err))
	}
	defer gz.Close()

	if err := os.MkdirAll(filepath.Dir(r.cachePath), 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(r.cachePath), ".instruments-*.csv")
	if err != nil {
		return fmt.Errorf("create temp cache: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	kept, err := filterSegment(gz, tmp, r.segment)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return domain.NewNetworkError("download", err)
	}
	if kept == 0 {
		return domain.NewNetworkError("download", fmt.Errorf("no %s rows in master file", r.segment))
	}

	if err := os.Rename(tmpName, r.cachePath); err != nil {
		return fmt.Errorf("replace cache: %w", err)
	}
	slog.Info("Instrument cache rewritten", slog.Int("rows", kept), slog.String("path", r.cachePath))
	return nil
}

// filterSegment copies the header and every row whose exchange column equals segment.
func filterSegment(src io.Reader, dst io.Writer, segment string) (int, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	cols := indexColumns(header)
	exchangeIdx, ok := cols[colExchange]
	if !ok {
		return 0, fmt.Errorf("master file has no %q column", colExchange)
	}

	writer := csv.NewWriter(dst)
	if err := writer.Write(header); err != nil {
		return 0, err
	}

	kept := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return kept, fmt.Errorf("read row: %w", err)
		}
		if exchangeIdx >= len(row) || row[exchangeIdx] != segment {
			continue
		}
		if err := writer.Write(row); err != nil {
			return kept, err
		}
		kept++
	}

	writer.Flush()
	return kept, writer.Error()
}

func (r *Registry) readCache() ([]domain.InstrumentRecord, error) {
	f, err := os.Open(r.cachePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseInstruments(f, r.segment)
}

func parseInstruments(src io.Reader, segment string) ([]domain.InstrumentRecord, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := indexColumns(header)
	keyIdx, ok := cols[colInstrumentKey]
	if !ok {
		return nil, fmt.Errorf("cache has no %q column", colInstrumentKey)
	}
	symbolIdx := make([]int, 0, len(symbolColumns))
	for _, name := range symbolColumns {
		if i, ok := cols[name]; ok {
			symbolIdx = append(symbolIdx, i)
		}
	}
	if len(symbolIdx) == 0 {
		return nil, fmt.Errorf("cache has no symbol column")
	}
	exchangeIdx, hasExchange := cols[colExchange]

	var records []domain.InstrumentRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		seg := segment
		if hasExchange && exchangeIdx < len(row) {
			seg = row[exchangeIdx]
			if segment != "" && seg != segment {
				continue
			}
		}

		key := field(row, keyIdx)
		symbol := ""
		for _, i := range symbolIdx {
			if symbol = field(row, i); symbol != "" {
				break
			}
		}
		if key == "" || symbol == "" {
			continue
		}

		records = append(records, domain.InstrumentRecord{
			Symbol:          strings.ToUpper(symbol),
			InstrumentKey:   key,
			ExchangeSegment: seg,
		})
	}
	return records, nil
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	return cols
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
