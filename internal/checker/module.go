package checker

import (
	"context"
	"time"

	"go.uber.org/fx"
	"proxy-checker/internal/config"
	"proxy-checker/internal/domain"
)

// Module exports the checker module
var Module = fx.Options(
	fx.Provide(NewChecker),
)

// Checker probes a single proxy endpoint. Implementations never return
// network failures as errors; every outcome is a CheckResult.
type Checker interface {
	Check(ctx context.Context, endpoint domain.ProxyEndpoint, timeout time.Duration) domain.CheckResult
}

// NewChecker creates a new Checker instance
func NewChecker(cfg *config.Config) Checker {
	return New(cfg.Checker.TestURL, cfg.Checker.UserAgent)
}
