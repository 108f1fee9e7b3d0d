package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"proxy-checker/internal/domain"
	"proxy-checker/internal/interfaces"
	"proxy-checker/internal/worker"
)

// Service runs batches through the pool and takes care of everything
// around the probes: geolocation, persistence and export. Faults in those
// stages are logged and counted but never cost the caller its results.
type Service struct {
	pool     interfaces.BatchChecker
	geo      domain.GeoLocator
	store    domain.ResultStore
	exporter domain.Exporter
	metrics  domain.MetricsCollector
	logger   *zap.Logger

	now   func() time.Time
	newID func() string

	watchUser string
	watchList []domain.ProxyEndpoint
	watchGeo  bool
}

type Option func(*Service)

// WithGeoLocator enables geolocation of active results.
func WithGeoLocator(geo domain.GeoLocator) Option {
	return func(s *Service) { s.geo = geo }
}

func WithStore(store domain.ResultStore) Option {
	return func(s *Service) { s.store = store }
}

func WithExporter(exporter domain.Exporter) Option {
	return func(s *Service) { s.exporter = exporter }
}

// WithWatchlist sets the endpoints rechecked by RecheckWatchlist.
func WithWatchlist(userID string, endpoints []domain.ProxyEndpoint, includeGeo bool) Option {
	return func(s *Service) {
		s.watchUser = userID
		s.watchList = endpoints
		s.watchGeo = includeGeo
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(pool interfaces.BatchChecker, metrics domain.MetricsCollector, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		pool:    pool,
		metrics: metrics,
		logger:  logger.With(zap.String("component", "service")),
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CheckOne(ctx context.Context, userID string, endpoint domain.ProxyEndpoint, includeGeo bool) domain.EnrichedResult {
	report := s.CheckMany(ctx, domain.BatchRequest{
		UserID:     userID,
		Endpoints:  []domain.ProxyEndpoint{endpoint},
		IncludeGeo: includeGeo,
	})
	return report.Results[0]
}

// CheckMany probes the batch, then saves and exports it.
func (s *Service) CheckMany(ctx context.Context, req domain.BatchRequest) domain.BatchReport {
	return s.Stream(ctx, req, nil)
}

// Stream is CheckMany with onResult called for every result as soon as it
// is enriched, in completion order.
func (s *Service) Stream(ctx context.Context, req domain.BatchRequest, onResult func(index int, result domain.EnrichedResult)) domain.BatchReport {
	userID := userOrAnonymous(req.UserID)
	batchID := s.newID()

	results := make([]domain.EnrichedResult, len(req.Endpoints))
	s.pool.CheckBatchFunc(ctx, req.Endpoints, req.Options, func(i int, r domain.CheckResult) {
		results[i] = s.enrich(ctx, r, req.IncludeGeo)
		if onResult != nil {
			onResult(i, results[i])
		}
	})

	summary := domain.Summarize(batchID, userID, results, s.now())

	// the caller may be gone; whatever was measured still gets recorded
	bg := context.WithoutCancel(ctx)
	measured := domain.Measured(results)
	if n := len(results) - len(measured); n > 0 {
		s.logger.Warn("batch cut short, unmeasured results dropped",
			zap.String("batch_id", batchID),
			zap.Int("dropped", n))
	}
	s.save(bg, userID, batchID, measured)
	if summary.TotalChecked > 0 {
		s.export(bg, summary)
	}

	s.logger.Info("batch completed",
		zap.String("batch_id", batchID),
		zap.String("user_id", userID),
		zap.Int("total", summary.TotalChecked),
		zap.Int("active", summary.ActiveProxies))

	return domain.BatchReport{Summary: summary, Results: results}
}

// UpdateStatuses probes the batch and refreshes one stored row per endpoint
// for the user, reporting what happened to each.
func (s *Service) UpdateStatuses(ctx context.Context, req domain.BatchRequest) domain.UpdateReport {
	userID := userOrAnonymous(req.UserID)

	results := make([]domain.EnrichedResult, len(req.Endpoints))
	s.pool.CheckBatchFunc(ctx, req.Endpoints, req.Options, func(i int, r domain.CheckResult) {
		results[i] = s.enrich(ctx, r, req.IncludeGeo)
	})

	report := domain.UpdateReport{
		Summary: domain.UpdateSummary{TotalProxies: len(results)},
		Details: make([]domain.UpdateDetail, len(results)),
	}

	bg := context.WithoutCancel(ctx)
	for i, r := range results {
		detail := domain.UpdateDetail{EnrichedResult: r, Action: domain.ActionFailed}

		if r.Cancelled {
			// an unmeasured result must not overwrite the stored status
			detail.Action = domain.ActionSkipped
		} else if s.store == nil {
			detail.Error = "storage unavailable"
		} else if action, err := s.store.UpsertResult(bg, userID, r); err != nil {
			s.metrics.RecordStoreError("upsert")
			s.logger.Error("failed to update proxy status",
				zap.String("proxy", r.Endpoint().String()),
				zap.Error(worker.NewCheckError("store", "upsert", err)))
			detail.Error = err.Error()
		} else {
			detail.Action = action
		}

		switch detail.Action {
		case domain.ActionCreated:
			report.Summary.CreatedNew++
		case domain.ActionUpdated:
			report.Summary.UpdatedExisting++
		case domain.ActionSkipped:
			report.Summary.Skipped++
		default:
			report.Summary.FailedUpdates++
		}
		report.Details[i] = detail
	}

	return report
}

func (s *Service) ListActive(ctx context.Context, filter domain.ListFilter) ([]domain.ActiveProxy, error) {
	if s.store == nil {
		return nil, fmt.Errorf("storage unavailable")
	}
	proxies, err := s.store.ListActive(ctx, filter)
	if err != nil {
		s.metrics.RecordStoreError("list")
		return nil, fmt.Errorf("failed to list active proxies: %w", err)
	}
	return proxies, nil
}

// RecheckWatchlist refreshes the configured watch list. It is the
// scheduler's task.
func (s *Service) RecheckWatchlist(ctx context.Context) error {
	if len(s.watchList) == 0 {
		return nil
	}

	report := s.UpdateStatuses(ctx, domain.BatchRequest{
		UserID:     s.watchUser,
		Endpoints:  s.watchList,
		IncludeGeo: s.watchGeo,
	})

	if n := report.Summary.FailedUpdates; n > 0 {
		return fmt.Errorf("%d of %d watch list updates failed", n, report.Summary.TotalProxies)
	}
	return nil
}

func (s *Service) enrich(ctx context.Context, r domain.CheckResult, includeGeo bool) domain.EnrichedResult {
	enriched := domain.EnrichedResult{CheckResult: r}
	if includeGeo && r.IsActive && s.geo != nil {
		enriched.GeoInfo = s.geo.Lookup(ctx, r.IP)
	}
	return enriched
}

func (s *Service) save(ctx context.Context, userID, batchID string, results []domain.EnrichedResult) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveResults(ctx, userID, batchID, results); err != nil {
		s.metrics.RecordStoreError("save")
		s.logger.Error("failed to save batch",
			zap.String("batch_id", batchID),
			zap.Error(worker.NewCheckError("store", "save results", err)))
	}
}

func (s *Service) export(ctx context.Context, summary domain.BatchSummary) {
	if s.exporter == nil {
		return
	}
	if err := s.exporter.Export(ctx, summary); err != nil {
		s.logger.Error("failed to export batch",
			zap.String("batch_id", summary.BatchID),
			zap.Error(worker.NewCheckError("export", "batch summary", err)))
	}
}

func userOrAnonymous(userID string) string {
	if userID == "" {
		return domain.AnonymousUser
	}
	return userID
}
