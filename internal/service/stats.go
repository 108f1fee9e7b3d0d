package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"proxy-checker/internal/domain"
)

const (
	DefaultPeriod = "24h"
	topCountries  = 10
)

var periods = map[string]time.Duration{
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
}

// NormalizePeriod maps unknown periods to the 24h default.
func NormalizePeriod(period string) string {
	if _, ok := periods[period]; ok {
		return period
	}
	return DefaultPeriod
}

// Stats aggregates the checks stored for userID (all users when empty)
// within the period.
func (s *Service) Stats(ctx context.Context, userID, period string) (domain.Stats, error) {
	if s.store == nil {
		return domain.Stats{}, fmt.Errorf("storage unavailable")
	}

	period = NormalizePeriod(period)
	now := s.now().UTC()

	checks, err := s.store.ChecksSince(ctx, userID, now.Add(-periods[period]))
	if err != nil {
		s.metrics.RecordStoreError("stats")
		return domain.Stats{}, fmt.Errorf("failed to load checks: %w", err)
	}

	stats := computeStats(checks)
	stats.Period = period
	stats.GeneratedAt = now
	return stats, nil
}

func computeStats(checks []domain.StoredCheck) domain.Stats {
	stats := domain.Stats{
		TotalProxies:    len(checks),
		CheckedInPeriod: len(checks),
		TopCountries:    []domain.CountryCount{},
	}

	var totalMs int64
	var timed int64
	countries := make(map[string]int)

	for _, c := range checks {
		if c.IsActive {
			stats.ActiveProxies++
			if c.ResponseTimeMs != nil && *c.ResponseTimeMs > 0 {
				totalMs += *c.ResponseTimeMs
				timed++
			}
		}
		if c.CountryCode != nil && *c.CountryCode != "" {
			countries[*c.CountryCode]++
		}
	}
	stats.InactiveProxies = stats.TotalProxies - stats.ActiveProxies

	rate := 0.0
	if stats.TotalProxies > 0 {
		rate = float64(stats.ActiveProxies) / float64(stats.TotalProxies) * 100
	}
	stats.SuccessRate = fmt.Sprintf("%.2f%%", rate)

	if timed > 0 {
		// round half up
		stats.AverageResponseTime = (totalMs + timed/2) / timed
	}

	for country, count := range countries {
		stats.TopCountries = append(stats.TopCountries, domain.CountryCount{Country: country, Count: count})
	}
	sort.Slice(stats.TopCountries, func(i, j int) bool {
		a, b := stats.TopCountries[i], stats.TopCountries[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Country < b.Country
	})
	if len(stats.TopCountries) > topCountries {
		stats.TopCountries = stats.TopCountries[:topCountries]
	}

	return stats
}
