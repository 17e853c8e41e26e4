package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"market_go/internal/service"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// RegistryLoader refreshes the instrument table.
type RegistryLoader interface {
	Load(ctx context.Context) error
}

// QuoteSource fetches (and records) one quote.
type QuoteSource interface {
	Quote(ctx context.Context, symbol string) (service.QuoteView, error)
}

// Scheduler runs the periodic maintenance jobs.
type Scheduler struct {
	cron        *cron.Cron
	registry    RegistryLoader
	quotes      QuoteSource
	watchlist   []string
	concurrency int
	ctx         context.Context

	running atomic.Bool
}

// New creates a scheduler. Jobs run under ctx.
func New(ctx context.Context, registry RegistryLoader, quotes QuoteSource, watchlist []string, concurrency int) *Scheduler {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Scheduler{
		cron:        cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		registry:    registry,
		quotes:      quotes,
		watchlist:   watchlist,
		concurrency: concurrency,
		ctx:         ctx,
	}
}

// Register adds the registry refresh job and, when snapshotSpec is set and the
// watchlist is not empty, the watchlist snapshot job.
func (s *Scheduler) Register(refreshSpec, snapshotSpec string) error {
	if _, err := s.cron.AddFunc(refreshSpec, s.refreshTask); err != nil {
		return fmt.Errorf("register registry refresh: %w", err)
	}
	if snapshotSpec == "" || len(s.watchlist) == 0 {
		return nil
	}
	if _, err := s.cron.AddFunc(snapshotSpec, s.snapshotTask); err != nil {
		return fmt.Errorf("register watchlist snapshot: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("Scheduler started", slog.Int("jobs", len(s.cron.Entries())))
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("Scheduler stopped")
}

// RefreshRegistry reloads the instrument table now.
func (s *Scheduler) RefreshRegistry() error {
	start := time.Now()
	if err := s.registry.Load(s.ctx); err != nil {
		return err
	}
	slog.Info("Registry refreshed", slog.Duration("took", time.Since(start)))
	return nil
}

// SnapshotWatchlist fetches every watchlist symbol with bounded concurrency
// and returns how many produced a price. Individual misses are not errors.
func (s *Scheduler) SnapshotWatchlist() (int, error) {
	// overlapping runs would double the upstream load
	if !s.running.CompareAndSwap(false, true) {
		slog.Warn("Watchlist snapshot still running; skipping")
		return 0, nil
	}
	defer s.running.Store(false)

	g, ctx := errgroup.WithContext(s.ctx)
	g.SetLimit(s.concurrency)

	var priced atomic.Int64
	for _, symbol := range s.watchlist {
		g.Go(func() error {
			view, err := s.quotes.Quote(ctx, symbol)
			if err != nil {
				slog.Warn("Snapshot quote rejected", slog.String("symbol", symbol), slog.Any("error", err))
				return nil
			}
			if view.Price != nil {
				priced.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(priced.Load()), err
	}
	return int(priced.Load()), s.ctx.Err()
}

func (s *Scheduler) refreshTask() {
	if err := s.RefreshRegistry(); err != nil {
		slog.Error("Registry refresh failed", slog.Any("error", err))
	}
}

func (s *Scheduler) snapshotTask() {
	n, err := s.SnapshotWatchlist()
	if err != nil {
		slog.Error("Watchlist snapshot failed", slog.Any("error", err))
		return
	}
	slog.Info("Watchlist snapshot done", slog.Int("priced", n), slog.Int("symbols", len(s.watchlist)))
}
