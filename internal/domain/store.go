package domain

import (
	"context"
	"time"
)

type UpsertAction string

const (
	ActionCreated UpsertAction = "created"
	ActionUpdated UpsertAction = "updated"
	ActionFailed  UpsertAction = "failed"
	ActionSkipped UpsertAction = "skipped"
)

// StoredCheck is the persisted subset of a check that statistics are
// computed from.
type StoredCheck struct {
	IP             string
	Port           int
	IsActive       bool
	ResponseTimeMs *int64
	CountryCode    *string
	CheckedAt      time.Time
}

type ActiveProxy struct {
	IP             string    `json:"ip"`
	Port           int       `json:"port"`
	CountryCode    *string   `json:"country_code"`
	City           *string   `json:"city"`
	ResponseTimeMs *int64    `json:"response_time_ms"`
	CheckedAt      time.Time `json:"checked_at"`
}

type ListFilter struct {
	Country string
	UserID  string
	Since   time.Time
	SortBy  string
	Desc    bool
	Limit   int
}

type ResultStore interface {
	SaveResults(ctx context.Context, userID, batchID string, results []EnrichedResult) error
	UpsertResult(ctx context.Context, userID string, result EnrichedResult) (UpsertAction, error)
	ListActive(ctx context.Context, filter ListFilter) ([]ActiveProxy, error)
	ChecksSince(ctx context.Context, userID string, since time.Time) ([]StoredCheck, error)
}
