package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"market_go/internal/api"
	"market_go/internal/domain"
	"market_go/internal/infra"
	"market_go/internal/infra/finnhub"
	"market_go/internal/infra/ratelimit"
	"market_go/internal/infra/registry"
	"market_go/internal/infra/storage"
	"market_go/internal/infra/upstox"
	"market_go/internal/resolver"
	"market_go/internal/router"
	"market_go/internal/scheduler"
	"market_go/internal/service"
	"market_go/internal/stream"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config    *infra.Config
	Storage   *storage.Storage
	Registry  *registry.Registry
	Service   *service.MarketService
	Relay     *stream.Relay
	Scheduler *scheduler.Scheduler
	Server    *api.Server
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration and wires every component.
func (b *Bootstrap) Initialize(ctx context.Context, configPath string) error {
	slog.Info("🚀 Bootstrapping market-go...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	slog.SetDefault(infra.NewLogger(cfg))

	// 3. Initialize Storage (DB + optional parquet archive)
	recorder, err := b.initRecorder()
	if err != nil {
		return err
	}
	slog.Info("✅ Storage initialized", slog.String("db", cfg.Storage.DBPath))

	// 4. Instrument registry
	b.Registry = registry.New(registry.Options{
		URL:       cfg.Registry.URL,
		CachePath: cfg.Registry.CachePath,
		Segment:   cfg.Registry.Segment,
		TTL:       cfg.Registry.TTL,
		Client:    infra.NewHTTPClient(60 * time.Second),
	})

	// 5. Providers and routing
	httpClient := infra.NewHTTPClient(cfg.API.Timeout)
	domestic := upstox.NewProvider(cfg.API.Upstox.AccessToken,
		upstox.WithBaseURL(cfg.API.Upstox.BaseURL),
		upstox.WithHTTPClient(httpClient),
		upstox.WithTimeout(cfg.API.Timeout),
	)
	global := finnhub.NewProvider(cfg.API.Finnhub.APIKey,
		finnhub.WithBaseURL(cfg.API.Finnhub.BaseURL),
		finnhub.WithHTTPClient(httpClient),
		finnhub.WithTimeout(cfg.API.Timeout),
		finnhub.WithIntraday(cfg.API.Finnhub.Intraday),
	)
	globalQuota := ratelimit.PerMinute(cfg.API.Finnhub.RequestsPerMinute, cfg.API.Finnhub.Burst)

	rt := router.New(
		router.Venue{
			Name:     "upstox",
			Currency: upstox.Currency,
			Provider: ratelimit.Shape(domestic, nil),
			Session:  domestic.Session,
		},
		router.Venue{
			Name:     "finnhub",
			Currency: finnhub.Currency,
			Provider: ratelimit.Shape(global, globalQuota),
			Session:  global.Session,
		},
	)
	res := resolver.New(b.Registry)

	// 6. Core services
	b.Service = service.NewMarketService(res, rt, recorder)
	b.Relay = stream.NewRelay(res, rt, cfg.Stream.Interval)
	b.Server = api.NewServer(cfg.Server.Addr, b.Service, b.Relay, cfg.API.Timeout+3*time.Second)

	// 7. Scheduled jobs
	b.Scheduler = scheduler.New(ctx, b.Registry, b.Service, cfg.Scheduler.Watchlist, cfg.Scheduler.Concurrency)
	if err := b.Scheduler.Register(cfg.Registry.RefreshCron, cfg.Scheduler.SnapshotCron); err != nil {
		return err
	}
	slog.Info("✅ Components wired")

	return nil
}

func (b *Bootstrap) initRecorder() (domain.Recorder, error) {
	cfg := b.Config
	store, err := storage.NewStorage(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}
	b.Storage = store

	recorders := storage.MultiRecorder{store}
	if cfg.Storage.ParquetDir != "" {
		recorders = append(recorders, storage.NewParquetArchive(cfg.Storage.ParquetDir))
	}
	return recorders, nil
}

// LoadRegistry performs the initial instrument table load. Failure is not
// fatal: unresolved symbols fall through to the global provider.
func (b *Bootstrap) LoadRegistry(ctx context.Context) {
	slog.Info("🔄 Loading instrument registry...")
	if err := b.Registry.Load(ctx); err != nil {
		if errors.Is(err, domain.ErrRegistryNotLoaded) {
			slog.Warn("Instrument registry unavailable; all symbols route to the global provider",
				slog.Any("error", err))
			return
		}
		slog.Warn("Instrument registry refresh failed", slog.Any("error", err))
	}
	slog.Info("✨ Instrument registry ready", slog.Int("symbols", b.Registry.Len()))
}

// Shutdown stops components in reverse start order.
func (b *Bootstrap) Shutdown(ctx context.Context) {
	if b.Server != nil {
		if err := b.Server.Shutdown(ctx); err != nil {
			slog.Warn("HTTP shutdown incomplete", slog.Any("error", err))
		}
	}
	if b.Scheduler != nil {
		b.Scheduler.Stop()
	}
	if b.Service != nil {
		b.Service.Wait()
	}
	if b.Storage != nil {
		if err := b.Storage.Close(); err != nil {
			slog.Warn("Storage close failed", slog.Any("error", err))
		}
	}
}
