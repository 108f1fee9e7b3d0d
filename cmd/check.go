package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"proxy-checker/internal/checker"
	"proxy-checker/internal/config"
	"proxy-checker/internal/domain"
	"proxy-checker/internal/endpoint"
	"proxy-checker/internal/metrics"
	"proxy-checker/internal/worker"
)

type checkFlags struct {
	file        string
	timeoutMs   int
	concurrency int
}

type checkOutput struct {
	Summary domain.BatchSummary  `json:"summary"`
	Results []domain.CheckResult `json:"results"`
}

func newCheckCmd() *cobra.Command {
	var flags checkFlags

	cmd := &cobra.Command{
		Use:     "check [ip:port...]",
		Short:   "Check proxies once and print the results as JSON",
		Example: "check 203.0.113.7:8080 203.0.113.8:3128 --timeout 3000",
		RunE: func(cmd *cobra.Command, args []string) error {
			targets := args
			if flags.file != "" {
				fromFile, err := readProxyFile(flags.file)
				if err != nil {
					return err
				}
				targets = append(targets, fromFile...)
			}
			if len(targets) == 0 {
				return fmt.Errorf("no proxies given; pass ip:port arguments or --file")
			}

			cfg, err := config.NewConfig(config.Path(configPath))
			if err != nil {
				return err
			}

			return runCheck(cmd.Context(), cfg, logger, targets, flags, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&flags.file, "file", "f", "", "File with one ip:port per line")
	cmd.Flags().IntVarP(&flags.timeoutMs, "timeout", "t", 0, "Per-probe timeout in milliseconds (1000-30000)")
	cmd.Flags().IntVarP(&flags.concurrency, "concurrency", "n", 0, "Probes in flight (1-50)")

	return cmd
}

// runCheck probes targets through the checker and pool directly, without
// storage, geolocation or exporters.
func runCheck(ctx context.Context, cfg *config.Config, logger *zap.Logger, targets []string, flags checkFlags, out io.Writer) error {
	opts := domain.CheckOptions{
		Timeout:     time.Duration(cfg.Checker.DefaultTimeoutMs) * time.Millisecond,
		Concurrency: cfg.Checker.DefaultConcurrency,
	}
	if flags.timeoutMs != 0 {
		if flags.timeoutMs < 1000 || flags.timeoutMs > 30000 {
			return fmt.Errorf("timeout must be between 1000 and 30000 ms")
		}
		opts.Timeout = time.Duration(flags.timeoutMs) * time.Millisecond
	}
	if flags.concurrency != 0 {
		if flags.concurrency < domain.MinConcurrency || flags.concurrency > domain.MaxConcurrency {
			return fmt.Errorf("concurrency must be between %d and %d", domain.MinConcurrency, domain.MaxConcurrency)
		}
		opts.Concurrency = flags.concurrency
	}

	endpoints, err := endpoint.ParseList(targets)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector(prometheus.NewRegistry())
	pool := worker.NewPool(checker.NewChecker(cfg), collector, logger)

	if ctx == nil {
		ctx = context.Background()
	}
	checkedAt := time.Now()
	results := pool.CheckBatch(ctx, endpoints, opts)

	enriched := make([]domain.EnrichedResult, len(results))
	for i, r := range results {
		enriched[i] = domain.EnrichedResult{CheckResult: r}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(checkOutput{
		Summary: domain.Summarize("", "", enriched, checkedAt),
		Results: results,
	})
}

// readProxyFile reads one proxy per line, skipping blanks and # comments.
func readProxyFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open proxy file: %w", err)
	}
	defer f.Close()

	var proxies []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		proxies = append(proxies, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read proxy file: %w", err)
	}

	return proxies, nil
}
