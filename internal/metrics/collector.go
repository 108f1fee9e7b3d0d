package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
	"proxy-checker/internal/domain"
)

// Module provides the metrics collector
var Module = fx.Options(
	fx.Provide(func() prometheus.Registerer { return prometheus.DefaultRegisterer }),
	fx.Provide(func() prometheus.Gatherer { return prometheus.DefaultGatherer }),
	fx.Provide(NewCollector),
	fx.Provide(func(c *Collector) domain.MetricsCollector { return c }),
)

type Collector struct {
	checksTotal    *prometheus.CounterVec
	checksDuration *prometheus.HistogramVec
	probesInFlight prometheus.Gauge
	batchesTotal   prometheus.Counter
	batchSize      prometheus.Histogram
	batchDuration  prometheus.Histogram
	geoLookups     *prometheus.CounterVec
	storeErrors    *prometheus.CounterVec
	exportsTotal   *prometheus.CounterVec
	schedulerRuns  *prometheus.CounterVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		checksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxy_checks_total",
				Help: "Total number of proxy probes performed",
			},
			[]string{"status", "error_kind"},
		),
		checksDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "proxy_check_duration_seconds",
				Help:    "Duration of proxy probes",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		probesInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "proxy_probes_in_flight",
				Help: "Number of probes currently waiting on the network",
			},
		),
		batchesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "proxy_batches_total",
				Help: "Total number of batches checked",
			},
		),
		batchSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "proxy_batch_size",
				Help:    "Number of proxies per batch",
				Buckets: []float64{1, 5, 10, 50, 100, 250, 500, 1000},
			},
		),
		batchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "proxy_batch_duration_seconds",
				Help:    "Wall-clock duration of whole batches",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			},
		),
		geoLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxy_geoip_lookups_total",
				Help: "Geolocation lookups by answering source",
			},
			[]string{"source"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxy_store_errors_total",
				Help: "Total number of failed persistence operations",
			},
			[]string{"op"},
		),
		exportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxy_exports_total",
				Help: "Total number of batch summary exports",
			},
			[]string{"exporter", "status"},
		),
		schedulerRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxy_scheduler_runs_total",
				Help: "Total number of scheduled watch list rechecks",
			},
			[]string{"status"},
		),
	}
}

func (c *Collector) RecordCheck(result domain.CheckResult, duration time.Duration) {
	status := statusLabel(result.IsActive)
	c.checksTotal.WithLabelValues(status, string(result.ErrorKind)).Inc()
	c.checksDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (c *Collector) RecordProbeStart() {
	c.probesInFlight.Inc()
}

func (c *Collector) RecordProbeDone() {
	c.probesInFlight.Dec()
}

func (c *Collector) RecordBatch(size int, duration time.Duration) {
	c.batchesTotal.Inc()
	c.batchSize.Observe(float64(size))
	c.batchDuration.Observe(duration.Seconds())
}

func (c *Collector) RecordGeoLookup(source string) {
	c.geoLookups.WithLabelValues(source).Inc()
}

func (c *Collector) RecordStoreError(op string) {
	c.storeErrors.WithLabelValues(op).Inc()
}

func (c *Collector) RecordExport(exporter string, err error) {
	c.exportsTotal.WithLabelValues(exporter, errorLabel(err)).Inc()
}

func (c *Collector) RecordSchedulerRun(err error) {
	c.schedulerRuns.WithLabelValues(errorLabel(err)).Inc()
}

func statusLabel(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}

func errorLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
