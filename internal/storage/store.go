package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"proxy-checker/internal/domain"
)

const (
	DefaultBatchSize  = 100
	DefaultListLimit  = 1000
	MaxListLimit      = 10000
	DefaultListWindow = time.Hour
)

var sortColumns = map[string]string{
	"checked_at":    "pc.checked_at",
	"response_time": "pc.response_time",
	"ip":            "pc.ip",
	"port":          "pc.port",
	"country_code":  "pc.country_code",
}

// IsSortable reports whether key names a column ListActive can sort by.
func IsSortable(key string) bool {
	_, ok := sortColumns[key]
	return ok
}

type Store struct {
	db        *DB
	batchSize int
	logger    *zap.Logger
}

func NewStore(db *DB, batchSize int, logger *zap.Logger) *Store {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Store{
		db:        db,
		batchSize: batchSize,
		logger:    logger.With(zap.String("component", "storage")),
	}
}

// SaveResults inserts one row per result, batchSize rows per statement.
func (s *Store) SaveResults(ctx context.Context, userID, batchID string, results []domain.EnrichedResult) error {
	if len(results) == 0 {
		return nil
	}

	rows := make([]*ProxyCheck, len(results))
	for i, r := range results {
		rows[i] = newProxyCheck(userID, batchID, r)
	}

	for start := 0; start < len(rows); start += s.batchSize {
		end := min(start+s.batchSize, len(rows))
		chunk := rows[start:end]

		if _, err := s.db.NewInsert().Model(&chunk).Exec(ctx); err != nil {
			return fmt.Errorf("error inserting results %d-%d: %w", start, end, err)
		}
	}

	s.logger.Debug("saved check results",
		zap.String("batch_id", batchID),
		zap.Int("count", len(rows)))

	return nil
}

// UpsertResult refreshes the latest row for (userID, ip, port) or creates one.
func (s *Store) UpsertResult(ctx context.Context, userID string, result domain.EnrichedResult) (domain.UpsertAction, error) {
	action := domain.ActionFailed
	row := newProxyCheck(userID, "", result)

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var existing ProxyCheck
		err := tx.NewSelect().
			Model(&existing).
			Column("id").
			Where("pc.user_id = ?", userID).
			Where("pc.ip = ?", result.IP).
			Where("pc.port = ?", result.Port).
			OrderExpr("pc.checked_at DESC").
			Limit(1).
			Scan(ctx)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
				return fmt.Errorf("error inserting result: %w", err)
			}
			action = domain.ActionCreated
			return nil
		case err != nil:
			return fmt.Errorf("error looking up existing result: %w", err)
		}

		row.ID = existing.ID
		_, err = tx.NewUpdate().
			Model(row).
			Column("is_active", "response_time", "status_code", "error_message", "error_kind",
				"country_code", "country_name", "city", "region", "isp", "org",
				"latitude", "longitude", "checked_at", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("error updating result: %w", err)
		}
		action = domain.ActionUpdated
		return nil
	})
	if err != nil {
		return domain.ActionFailed, err
	}

	return action, nil
}

// ListActive returns active rows checked since filter.Since (default: the
// last hour), newest first unless another sort column is requested.
func (s *Store) ListActive(ctx context.Context, filter domain.ListFilter) ([]domain.ActiveProxy, error) {
	since := filter.Since
	if since.IsZero() {
		since = time.Now().Add(-DefaultListWindow)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	column, ok := sortColumns[filter.SortBy]
	if !ok {
		column = sortColumns["checked_at"]
	}
	direction := "ASC"
	if filter.Desc {
		direction = "DESC"
	}

	var rows []ProxyCheck
	q := s.db.NewSelect().
		Model(&rows).
		Where("pc.is_active = ?", true).
		Where("pc.checked_at >= ?", since.UTC())

	if filter.Country != "" {
		q = q.Where("pc.country_code = ?", strings.ToUpper(filter.Country))
	}
	if filter.UserID != "" {
		q = q.Where("pc.user_id = ?", filter.UserID)
	}

	err := q.OrderExpr(column + " " + direction).
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing active proxies: %w", err)
	}

	proxies := make([]domain.ActiveProxy, len(rows))
	for i := range rows {
		proxies[i] = rows[i].toActiveProxy()
	}
	return proxies, nil
}

// ChecksSince returns every row checked at or after since, optionally scoped
// to one user.
func (s *Store) ChecksSince(ctx context.Context, userID string, since time.Time) ([]domain.StoredCheck, error) {
	var rows []ProxyCheck
	q := s.db.NewSelect().
		Model(&rows).
		Column("ip", "port", "is_active", "response_time", "country_code", "checked_at").
		Where("pc.checked_at >= ?", since.UTC())

	if userID != "" {
		q = q.Where("pc.user_id = ?", userID)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("error loading checks: %w", err)
	}

	checks := make([]domain.StoredCheck, len(rows))
	for i := range rows {
		checks[i] = rows[i].toStoredCheck()
	}
	return checks, nil
}
