package domain

import (
	"time"
)

type ErrorKind string

const (
	ErrorKindTimeout           ErrorKind = "timeout"
	ErrorKindConnectionRefused ErrorKind = "connection_refused"
	ErrorKindHostNotFound      ErrorKind = "host_not_found"
	ErrorKindUnknown           ErrorKind = "unknown"
)

// CheckResult is the outcome of one probe. Active results carry a response
// time and status code, inactive ones an error message and kind; use
// NewActiveResult and NewInactiveResult so only one shape is ever populated.
type CheckResult struct {
	IP             string    `json:"ip"`
	Port           int       `json:"port"`
	IsActive       bool      `json:"is_active"`
	ResponseTimeMs *int64    `json:"response_time_ms"`
	StatusCode     int       `json:"status_code,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	ErrorKind      ErrorKind `json:"error_kind,omitempty"`
	CheckedAt      time.Time `json:"checked_at"`

	// Cancelled marks a probe cut short by its caller. Such a result was
	// never measured and is kept out of storage, summaries and exports.
	Cancelled bool `json:"-"`
}

func NewActiveResult(endpoint ProxyEndpoint, elapsed time.Duration, statusCode int, checkedAt time.Time) CheckResult {
	ms := elapsed.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return CheckResult{
		IP:             endpoint.IP,
		Port:           endpoint.Port,
		IsActive:       true,
		ResponseTimeMs: &ms,
		StatusCode:     statusCode,
		CheckedAt:      checkedAt.UTC(),
	}
}

func NewInactiveResult(endpoint ProxyEndpoint, message string, kind ErrorKind, checkedAt time.Time) CheckResult {
	return CheckResult{
		IP:           endpoint.IP,
		Port:         endpoint.Port,
		IsActive:     false,
		ErrorMessage: message,
		ErrorKind:    kind,
		CheckedAt:    checkedAt.UTC(),
	}
}

func (r CheckResult) Endpoint() ProxyEndpoint {
	return ProxyEndpoint{IP: r.IP, Port: r.Port}
}

// EnrichedResult is a check result with geolocation flattened into the
// same JSON object.
type EnrichedResult struct {
	CheckResult
	GeoInfo
}

type BatchSummary struct {
	BatchID               string    `json:"batch_id"`
	UserID                string    `json:"user_id"`
	TotalChecked          int       `json:"total_checked"`
	ActiveProxies         int       `json:"active_proxies"`
	InactiveProxies       int       `json:"inactive_proxies"`
	AverageResponseTimeMs int64     `json:"average_response_time_ms"`
	CheckedAt             time.Time `json:"checked_at"`
}

// Summarize counts active and inactive results and averages the response
// time of the active ones. Cancelled results are not counted.
func Summarize(batchID, userID string, results []EnrichedResult, checkedAt time.Time) BatchSummary {
	summary := BatchSummary{
		BatchID:      batchID,
		UserID:       userID,
		TotalChecked: len(results),
		CheckedAt:    checkedAt.UTC(),
	}

	var total int64
	for _, r := range results {
		if r.Cancelled {
			summary.TotalChecked--
			continue
		}
		if !r.IsActive {
			continue
		}
		summary.ActiveProxies++
		if r.ResponseTimeMs != nil {
			total += *r.ResponseTimeMs
		}
	}
	summary.InactiveProxies = summary.TotalChecked - summary.ActiveProxies
	if summary.ActiveProxies > 0 {
		summary.AverageResponseTimeMs = total / int64(summary.ActiveProxies)
	}

	return summary
}

// Measured drops cancelled results.
func Measured(results []EnrichedResult) []EnrichedResult {
	out := make([]EnrichedResult, 0, len(results))
	for _, r := range results {
		if !r.Cancelled {
			out = append(out, r)
		}
	}
	return out
}
