package app

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"proxy-checker/internal/common"
)

// TestApplication runs the full module graph under fxtest with a private
// metrics registry.
type TestApplication struct {
	tb      testing.TB
	testApp *fxtest.App
	options []fx.Option
	service *common.ServiceOptions
}

func NewTestApplication(tb testing.TB, opts ...common.Option) *TestApplication {
	options := common.Apply(append([]common.Option{
		common.WithLogger(zap.NewNop()),
		common.WithRegistry(prometheus.NewRegistry()),
	}, opts...)...)

	return &TestApplication{
		tb:      tb,
		service: options,
		options: []fx.Option{},
	}
}

// WithOption adds fx options such as fx.Populate or fx.Decorate.
func (ta *TestApplication) WithOption(opt fx.Option) *TestApplication {
	ta.options = append(ta.options, opt)
	return ta
}

func (ta *TestApplication) Start(ctx context.Context) error {
	testOptions := []fx.Option{modules(ta.service)}

	// Add user-provided options
	testOptions = append(testOptions, ta.options...)

	// Configure test app
	testOptions = append(testOptions,
		fx.StartTimeout(10*time.Second),
		fx.StopTimeout(10*time.Second),
	)

	ta.testApp = fxtest.New(
		ta.tb,
		testOptions...,
	)

	return ta.testApp.Start(ctx)
}

func (ta *TestApplication) Stop(ctx context.Context) error {
	if ta.testApp != nil {
		return ta.testApp.Stop(ctx)
	}
	return nil
}
