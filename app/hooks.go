package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"proxy-checker/internal/config"
)

type hookParams struct {
	fx.In

	Logger    *zap.Logger
	Config    *config.Config
	Lifecycle fx.Lifecycle
}

func registerHooks(p hookParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			p.Logger.Info("starting application",
				zap.String("listen", p.Config.Server.Listen),
				zap.String("storage", p.Config.Storage.Driver),
				zap.Bool("geoip", p.Config.GeoIP.Enabled),
				zap.Int("exporters", len(p.Config.Exporters)))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Logger.Info("stopping application")
			return nil
		},
	})
}
