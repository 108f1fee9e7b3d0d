package interfaces

import (
	"context"

	"proxy-checker/internal/domain"
)

// BatchChecker defines the interface for running a batch of probes
type BatchChecker interface {
	CheckBatchFunc(
		ctx context.Context,
		endpoints []domain.ProxyEndpoint,
		opts domain.CheckOptions,
		onResult func(index int, result domain.CheckResult),
	) []domain.CheckResult
}

// ProxyService defines the operations exposed over HTTP and the CLI
type ProxyService interface {
	CheckOne(ctx context.Context, userID string, endpoint domain.ProxyEndpoint, includeGeo bool) domain.EnrichedResult
	CheckMany(ctx context.Context, req domain.BatchRequest) domain.BatchReport
	UpdateStatuses(ctx context.Context, req domain.BatchRequest) domain.UpdateReport
	Stream(ctx context.Context, req domain.BatchRequest, onResult func(index int, result domain.EnrichedResult)) domain.BatchReport
	ListActive(ctx context.Context, filter domain.ListFilter) ([]domain.ActiveProxy, error)
	Stats(ctx context.Context, userID, period string) (domain.Stats, error)
}
