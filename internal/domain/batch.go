package domain

import "time"

// AnonymousUser owns checks submitted without a user id.
const AnonymousUser = "anonymous"

type BatchRequest struct {
	UserID     string
	Endpoints  []ProxyEndpoint
	Options    CheckOptions
	IncludeGeo bool
}

type BatchReport struct {
	Summary BatchSummary
	Results []EnrichedResult
}

type UpdateSummary struct {
	TotalProxies    int `json:"total_proxies"`
	UpdatedExisting int `json:"updated_existing"`
	CreatedNew      int `json:"created_new"`
	FailedUpdates   int `json:"failed_updates"`
	Skipped         int `json:"skipped"`
}

// UpdateDetail is a result annotated with what happened to its stored row.
type UpdateDetail struct {
	EnrichedResult
	Action UpsertAction `json:"action"`
	Error  string       `json:"error,omitempty"`
}

type UpdateReport struct {
	Summary UpdateSummary  `json:"summary"`
	Details []UpdateDetail `json:"results"`
}

type CountryCount struct {
	Country string `json:"country"`
	Count   int    `json:"count"`
}

type Stats struct {
	Period              string         `json:"period"`
	GeneratedAt         time.Time      `json:"generated_at"`
	TotalProxies        int            `json:"total_proxies"`
	ActiveProxies       int            `json:"active_proxies"`
	InactiveProxies     int            `json:"inactive_proxies"`
	SuccessRate         string         `json:"success_rate"`
	AverageResponseTime int64          `json:"average_response_time"`
	TopCountries        []CountryCount `json:"top_countries"`
	CheckedInPeriod     int            `json:"checked_in_period"`
}
