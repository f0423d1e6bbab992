package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"IchimokuScanner/internal/collector"
	"IchimokuScanner/internal/config"
	"IchimokuScanner/internal/history"
	"IchimokuScanner/internal/metrics"
	"IchimokuScanner/internal/notifier"
	"IchimokuScanner/internal/scheduler"
	"IchimokuScanner/internal/universe"
)

const nseTimeout = 10 * time.Second

// App holds the collaborators both front ends are built from.
type App struct {
	Config   *config.Config
	Fetcher  collector.Fetcher
	Universe *universe.Provider
	Store    history.Store
	Notifier notifier.Notifier
	Telegram *notifier.TelegramNotifier // nil when Telegram is not configured
	Metrics  *metrics.Metrics

	redis *redis.Client
}

// New wires an App from a validated config. Call Close when done.
func New(cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Metrics: metrics.NewMetrics()}
	a.redis = provideRedis(cfg)

	fetcher, err := ProvideFetcher(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Fetcher = fetcher
	a.Universe = ProvideUniverse(cfg, a.redis)

	store, err := ProvideHistoryStore(cfg, a.redis)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store

	a.Notifier = notifier.Noop{}
	if cfg.TelegramEnabled() {
		a.Telegram = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		a.Notifier = a.Telegram
	}
	return a, nil
}

// Scheduler builds the scan service on top of the App's collaborators.
func (a *App) Scheduler(ctx context.Context) *scheduler.Scheduler {
	s := scheduler.NewScheduler(ctx, a.Fetcher, a.Universe, a.Store, a.Notifier, a.Metrics, a.Config.ScanParams())
	s.Workers = a.Config.Scan.Workers
	s.ProgressEvery = a.Config.Scan.ProgressEvery
	s.FetchTimeout = a.Config.Scan.FetchTimeout
	return s
}

// Close releases the history store and the Redis client.
func (a *App) Close() {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			zap.L().Warn("close history store", zap.Error(err))
		}
	}
	// RedisStore closes the shared client itself
	if _, ok := a.Store.(*history.RedisStore); !ok && a.redis != nil {
		if err := a.redis.Close(); err != nil {
			zap.L().Warn("close redis", zap.Error(err))
		}
	}
}

var provideRedis = ProvideRedis

// ProvideRedis returns a client when redis.addr is set, nil otherwise.
func ProvideRedis(cfg *config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideFetcher creates the price-data fetcher named by data_source.provider.
func ProvideFetcher(cfg *config.Config) (collector.Fetcher, error) {
	switch cfg.DataSource.Provider {
	case "yahoo":
		return collector.NewYahooFetcher(cfg.Proxy, cfg.Scan.FetchTimeout), nil
	case "rest":
		return collector.NewRESTFetcher(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy, cfg.Scan.FetchTimeout), nil
	default:
		return nil, fmt.Errorf("unsupported data source %q (use: yahoo, rest)", cfg.DataSource.Provider)
	}
}

// ProvideUniverse uses universe.symbols when set, otherwise the NSE index
// with an optional Redis cache in front.
func ProvideUniverse(cfg *config.Config, rdb *redis.Client) *universe.Provider {
	if len(cfg.Universe.Symbols) > 0 {
		return &universe.Provider{Remote: universe.Static(cfg.Universe.Symbols)}
	}
	nse := universe.NewNSEProvider(cfg.Universe.URL, cfg.Universe.Index, nseTimeout)
	p := &universe.Provider{Remote: nse, CacheTTL: cfg.Universe.CacheTTL}
	if rdb != nil {
		p.Cache = universe.NewRedisCache(rdb, nse.Index)
	}
	return p
}

// ProvideHistoryStore opens the backend named by history.backend.
func ProvideHistoryStore(cfg *config.Config, rdb *redis.Client) (history.Store, error) {
	switch cfg.History.Backend {
	case "none":
		return history.NewNoopStore(), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis history backend needs redis.addr")
		}
		return history.NewRedisStore(rdb, cfg.History.MaxReports), nil
	case "sqlite":
		if dir := filepath.Dir(cfg.History.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create history dir: %w", err)
			}
		}
		store, err := history.NewSQLiteStore(cfg.History.SQLitePath, cfg.History.MaxReports)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported history backend %q (use: sqlite, redis, none)", cfg.History.Backend)
	}
}
