package geoip

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"proxy-checker/internal/config"
	"proxy-checker/internal/domain"
)

var Module = fx.Options(
	fx.Provide(newCache),
	fx.Provide(newEnricher),
	fx.Provide(func(e *Enricher) domain.GeoLocator { return e }),
	fx.Invoke(registerJanitor),
)

func newCache(cfg *config.Config) *Cache {
	return NewCache(time.Duration(cfg.GeoIP.CacheTTLSeconds) * time.Second)
}

func newEnricher(cfg *config.Config, cache *Cache, metrics domain.MetricsCollector, logger *zap.Logger) *Enricher {
	client := &http.Client{}

	var providers []Provider
	if cfg.GeoIP.PrimaryURL != "" {
		providers = append(providers, NewIPAPIProvider(cfg.GeoIP.PrimaryURL, client))
	}
	if cfg.GeoIP.FallbackURL != "" {
		providers = append(providers, NewIPInfoProvider(cfg.GeoIP.FallbackURL, cfg.GeoIP.FallbackToken, client))
	}

	return NewEnricher(cache, providers, time.Duration(cfg.GeoIP.TimeoutMs)*time.Millisecond, metrics, logger)
}

// registerJanitor sweeps expired cache entries for the lifetime of the app.
func registerJanitor(lc fx.Lifecycle, cfg *config.Config, cache *Cache, logger *zap.Logger) {
	interval := time.Duration(cfg.GeoIP.SweepIntervalSecond) * time.Second
	if interval <= 0 {
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer close(done)
				ticker := time.NewTicker(interval)
				defer ticker.Stop()

				for {
					select {
					case <-ticker.C:
						if n := cache.Evict(); n > 0 {
							logger.Debug("evicted expired geoip entries", zap.Int("count", n))
						}
					case <-stop:
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(stop)
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
