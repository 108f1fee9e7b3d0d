package geoip

import (
	"context"
	"time"

	"go.uber.org/zap"
	"proxy-checker/internal/domain"
)

const (
	sourceCache = "cache"
	sourceNone  = "none"
)

// Enricher resolves geolocation through a cache and an ordered list of
// providers. The first provider to answer wins; when all fail the lookup
// yields an empty GeoInfo, which is not cached.
type Enricher struct {
	cache     *Cache
	providers []Provider
	timeout   time.Duration
	metrics   domain.MetricsCollector
	logger    *zap.Logger
}

func NewEnricher(
	cache *Cache,
	providers []Provider,
	timeout time.Duration,
	metrics domain.MetricsCollector,
	logger *zap.Logger,
) *Enricher {
	return &Enricher{
		cache:     cache,
		providers: providers,
		timeout:   timeout,
		metrics:   metrics,
		logger:    logger.With(zap.String("component", "geoip")),
	}
}

func (e *Enricher) Lookup(ctx context.Context, ip string) domain.GeoInfo {
	if info, ok := e.cache.Get(ip); ok {
		e.metrics.RecordGeoLookup(sourceCache)
		return info
	}

	for _, p := range e.providers {
		info, err := e.lookupWith(ctx, p, ip)
		if err != nil {
			e.logger.Debug("geoip provider failed",
				zap.String("provider", p.Name()),
				zap.String("ip", ip),
				zap.Error(err))
			continue
		}

		e.cache.Set(ip, info)
		e.metrics.RecordGeoLookup(p.Name())
		return info
	}

	e.metrics.RecordGeoLookup(sourceNone)
	e.logger.Warn("geoip lookup failed on every provider", zap.String("ip", ip))
	return domain.GeoInfo{}
}

func (e *Enricher) lookupWith(ctx context.Context, p Provider, ip string) (domain.GeoInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return p.Lookup(ctx, ip)
}
