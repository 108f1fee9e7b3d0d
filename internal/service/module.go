package service

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"proxy-checker/internal/config"
	"proxy-checker/internal/domain"
	"proxy-checker/internal/endpoint"
	"proxy-checker/internal/interfaces"
	"proxy-checker/internal/worker"
)

var Module = fx.Options(
	fx.Provide(newService),
	fx.Provide(func(s *Service) interfaces.ProxyService { return s }),
	fx.Provide(func(p *worker.Pool) interfaces.BatchChecker { return p }),
	fx.Provide(newScheduler),
	fx.Invoke(registerScheduler),
)

type params struct {
	fx.In

	Config   *config.Config
	Pool     interfaces.BatchChecker
	Geo      domain.GeoLocator
	Store    domain.ResultStore
	Exporter domain.Exporter
	Metrics  domain.MetricsCollector
	Logger   *zap.Logger
}

func newService(p params) (*Service, error) {
	opts := []Option{
		WithStore(p.Store),
		WithExporter(p.Exporter),
	}
	if p.Config.GeoIP.Enabled {
		opts = append(opts, WithGeoLocator(p.Geo))
	}

	if len(p.Config.Scheduler.Proxies) > 0 {
		watch, err := endpoint.ParseList(p.Config.Scheduler.Proxies)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithWatchlist(p.Config.Scheduler.UserID, watch, p.Config.Scheduler.IncludeGeoIP))
	}

	return New(p.Pool, p.Metrics, p.Logger, opts...), nil
}

func newScheduler(cfg *config.Config, svc *Service, metrics domain.MetricsCollector, logger *zap.Logger) worker.Scheduler {
	interval := time.Duration(cfg.Scheduler.IntervalSeconds) * time.Second

	var task worker.Task
	if len(cfg.Scheduler.Proxies) > 0 {
		task = svc.RecheckWatchlist
	}
	return worker.NewScheduler(interval, task, metrics, logger)
}

func registerScheduler(lc fx.Lifecycle, scheduler worker.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return scheduler.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return scheduler.Stop()
		},
	})
}
