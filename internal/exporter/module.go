package exporter

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"proxy-checker/internal/config"
	"proxy-checker/internal/domain"
	"proxy-checker/internal/exporter/uptimekuma"
	"proxy-checker/internal/worker"
)

// Module exports the exporter module
var Module = fx.Options(
	fx.Provide(NewManager),
	fx.Provide(func(m *Manager) domain.Exporter { return m }),
)

const exportTimeout = 10 * time.Second

type target struct {
	name     string
	users    []string
	exporter domain.Exporter
}

// Manager fans a batch summary out to every configured exporter whose user
// filter matches. Exporter failures are logged and never returned.
type Manager struct {
	targets []target
	metrics domain.MetricsCollector
	logger  *zap.Logger
}

func NewManager(cfg *config.Config, metrics domain.MetricsCollector, logger *zap.Logger) (*Manager, error) {
	manager := &Manager{
		metrics: metrics,
		logger:  logger.With(zap.String("component", "exporter")),
	}

	client := &http.Client{Timeout: exportTimeout}
	for _, expCfg := range cfg.Exporters {
		name, exporter, err := createExporter(&expCfg, client)
		if err != nil {
			return nil, fmt.Errorf("failed to create exporter %s: %w", expCfg.Type, err)
		}

		manager.Add(name, expCfg.Users, exporter)
	}

	return manager, nil
}

// Add registers an exporter. An empty users list matches every batch.
func (m *Manager) Add(name string, users []string, exporter domain.Exporter) {
	m.targets = append(m.targets, target{name: name, users: users, exporter: exporter})
}

func (m *Manager) Len() int {
	return len(m.targets)
}

func (m *Manager) Export(ctx context.Context, summary domain.BatchSummary) error {
	for _, t := range m.targets {
		if len(t.users) > 0 && !slices.Contains(t.users, summary.UserID) {
			continue
		}

		err := t.exporter.Export(ctx, summary)
		m.metrics.RecordExport(t.name, err)
		if err != nil {
			m.logger.Error("failed to export batch",
				zap.String("exporter", t.name),
				zap.String("batch_id", summary.BatchID),
				zap.Error(worker.NewCheckError("export", t.name, err)),
			)
		}
	}

	return nil
}

// createExporter returns the exporter for cfg and the name it reports
// metrics and logs under.
func createExporter(cfg *config.ExporterConfig, client *http.Client) (string, domain.Exporter, error) {
	switch cfg.Type {
	case config.ExporterTypeUptimeKuma:
		exporter, err := uptimekuma.New(cfg.MonitorURL, client)
		return uptimekuma.Name, exporter, err
	default:
		return "", nil, fmt.Errorf("unknown exporter type: %s", cfg.Type)
	}
}
