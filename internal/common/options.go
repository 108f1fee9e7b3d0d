package common

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ServiceOptions defines common options for building the application
type ServiceOptions struct {
	Logger     *zap.Logger
	ConfigPath string
	Registry   *prometheus.Registry
}

// Option defines a service option modifier
type Option func(*ServiceOptions)

func WithLogger(logger *zap.Logger) Option {
	return func(o *ServiceOptions) {
		o.Logger = logger
	}
}

// WithConfigPath points the config loader at a file. Empty falls back to
// CONFIG_PATH and then config.json.
func WithConfigPath(path string) Option {
	return func(o *ServiceOptions) {
		o.ConfigPath = path
	}
}

// WithRegistry registers metrics on reg instead of the process-wide
// default registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *ServiceOptions) {
		o.Registry = reg
	}
}

// Apply builds ServiceOptions from opts.
func Apply(opts ...Option) *ServiceOptions {
	options := &ServiceOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	return options
}
