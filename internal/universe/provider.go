package universe

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// FallbackSymbols is used when neither the cache nor the remote source can supply a universe.
var FallbackSymbols = []string{
	"RELIANCE.NS", "TCS.NS", "INFY.NS", "HDFCBANK.NS", "ICICIBANK.NS",
	"SBIN.NS", "LT.NS", "AXISBANK.NS", "BAJFINANCE.NS", "BAJAJFINSV.NS",
}

// Source is a remote symbol list.
type Source interface {
	Fetch(ctx context.Context) ([]string, error)
	Name() string
}

// Cache keeps the last good universe between scans.
type Cache interface {
	Get(ctx context.Context) ([]string, error)
	Set(ctx context.Context, symbols []string, ttl time.Duration) error
}

// Static is a fixed Source, used for explicit symbol lists.
type Static []string

func (s Static) Name() string { return "static" }

func (s Static) Fetch(context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}

// Provider resolves the universe: cache, then remote, then the fallback list.
// It never fails.
type Provider struct {
	Remote   Source
	Cache    Cache
	CacheTTL time.Duration
	Fallback []string
}

// Symbols returns the universe and the name of the source that supplied it.
func (p *Provider) Symbols(ctx context.Context) ([]string, string) {
	if p.Cache != nil {
		if cached, err := p.Cache.Get(ctx); err == nil && len(cached) > 0 {
			return cached, "cache"
		}
	}
	if p.Remote != nil {
		symbols, err := p.Remote.Fetch(ctx)
		if err == nil && len(symbols) > 0 {
			if p.Cache != nil {
				if err := p.Cache.Set(ctx, symbols, p.CacheTTL); err != nil {
					zap.L().Warn("universe cache write failed", zap.Error(err))
				}
			}
			return symbols, p.Remote.Name()
		}
		zap.L().Warn("universe fetch failed, using fallback list",
			zap.String("source", p.Remote.Name()), zap.Error(err))
	}
	fallback := p.Fallback
	if len(fallback) == 0 {
		fallback = FallbackSymbols
	}
	return append([]string(nil), fallback...), "fallback"
}
