package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
	"proxy-checker/internal/checker"
	"proxy-checker/internal/domain"
)

// Pool fans a batch of endpoints out to at most Concurrency concurrent
// probes and collects the results in input order.
type Pool struct {
	checker checker.Checker
	metrics domain.MetricsCollector
	logger  *zap.Logger
}

type indexedResult struct {
	index  int
	result domain.CheckResult
}

func NewPool(checker checker.Checker, metrics domain.MetricsCollector, logger *zap.Logger) *Pool {
	return &Pool{
		checker: checker,
		metrics: metrics,
		logger:  logger.With(zap.String("component", "pool")),
	}
}

// CheckBatch probes every endpoint and returns one result per endpoint,
// results[i] belonging to endpoints[i].
func (p *Pool) CheckBatch(ctx context.Context, endpoints []domain.ProxyEndpoint, opts domain.CheckOptions) []domain.CheckResult {
	return p.CheckBatchFunc(ctx, endpoints, opts, nil)
}

// CheckBatchFunc is CheckBatch with an observer called once per result, in
// completion order, from the calling goroutine.
func (p *Pool) CheckBatchFunc(
	ctx context.Context,
	endpoints []domain.ProxyEndpoint,
	opts domain.CheckOptions,
	onResult func(index int, result domain.CheckResult),
) []domain.CheckResult {
	results := make([]domain.CheckResult, len(endpoints))
	if len(endpoints) == 0 {
		return results
	}

	opts = opts.WithDefaults()
	workerCount := min(opts.Concurrency, len(endpoints))
	start := time.Now()

	jobs := make(chan int, len(endpoints))
	for i := range endpoints {
		jobs <- i
	}
	close(jobs)

	out := make(chan indexedResult, workerCount)
	for id := 0; id < workerCount; id++ {
		go p.runWorker(ctx, id, endpoints, opts.Timeout, jobs, out)
	}

	for range endpoints {
		r := <-out
		results[r.index] = r.result
		if onResult != nil {
			onResult(r.index, r.result)
		}
	}

	elapsed := time.Since(start)
	p.metrics.RecordBatch(len(endpoints), elapsed)
	p.logger.Debug("batch checked",
		zap.Int("size", len(endpoints)),
		zap.Int("workers", workerCount),
		zap.Duration("timeout", opts.Timeout),
		zap.Duration("elapsed", elapsed))

	return results
}

func (p *Pool) runWorker(
	ctx context.Context,
	id int,
	endpoints []domain.ProxyEndpoint,
	timeout time.Duration,
	jobs <-chan int,
	out chan<- indexedResult,
) {
	logger := p.logger.With(zap.Int("worker_id", id))

	for i := range jobs {
		ep := endpoints[i]

		p.metrics.RecordProbeStart()
		start := time.Now()
		result := p.checker.Check(ctx, ep, timeout)
		p.metrics.RecordProbeDone()
		p.metrics.RecordCheck(result, time.Since(start))

		if result.IsActive {
			logger.Debug("proxy active",
				zap.String("proxy", ep.String()),
				zap.Int("status_code", result.StatusCode))
		} else {
			logger.Debug("proxy inactive",
				zap.String("proxy", ep.String()),
				zap.String("error_kind", string(result.ErrorKind)),
				zap.String("error", result.ErrorMessage))
		}

		out <- indexedResult{index: i, result: result}
	}
}
