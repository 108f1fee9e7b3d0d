package app

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"proxy-checker/internal/api"
	"proxy-checker/internal/checker"
	"proxy-checker/internal/common"
	"proxy-checker/internal/config"
	"proxy-checker/internal/exporter"
	"proxy-checker/internal/geoip"
	"proxy-checker/internal/metrics"
	"proxy-checker/internal/service"
	"proxy-checker/internal/storage"
	"proxy-checker/internal/worker"
)

type Application struct {
	app    *fx.App
	logger *zap.Logger
}

func NewApplication(opts ...common.Option) *Application {
	options := common.Apply(opts...)

	app := &Application{
		logger: options.Logger,
	}

	app.app = fx.New(
		modules(options),

		// Set timeouts
		fx.StopTimeout(30*time.Second),
		fx.StartTimeout(30*time.Second),
	)

	return app
}

// modules wires every component of the service.
func modules(options *common.ServiceOptions) fx.Option {
	fxOpts := []fx.Option{
		// Core modules
		config.Module,
		metrics.Module,
		checker.Module,
		worker.Module,
		geoip.Module,
		storage.Module,
		exporter.Module,
		service.Module,
		api.Module,

		// Provide base dependencies
		fx.Provide(
			func() *zap.Logger { return options.Logger },
			func() config.Path { return config.Path(options.ConfigPath) },
		),

		// Configure fx
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger}
		}),

		// Register lifecycle hooks
		fx.Invoke(registerHooks),
	}

	if options.Registry != nil {
		reg := options.Registry
		fxOpts = append(fxOpts, fx.Decorate(
			func(prometheus.Registerer) prometheus.Registerer { return reg },
			func(prometheus.Gatherer) prometheus.Gatherer { return reg },
		))
	}

	return fx.Options(fxOpts...)
}

func (a *Application) Start(ctx context.Context) error {
	return a.app.Start(ctx)
}

func (a *Application) Stop(ctx context.Context) error {
	return a.app.Stop(ctx)
}

// Err reports a construction failure, nil when the graph is complete.
func (a *Application) Err() error {
	return a.app.Err()
}
