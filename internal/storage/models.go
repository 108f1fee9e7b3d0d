package storage

import (
	"time"

	"github.com/uptrace/bun"
	"proxy-checker/internal/domain"
)

// ProxyCheck is one persisted probe outcome.
type ProxyCheck struct {
	bun.BaseModel `bun:"table:proxy_checks,alias:pc"`

	ID           int64     `bun:",pk,autoincrement"`
	BatchID      string    `bun:",nullzero"`
	UserID       string    `bun:",notnull"`
	IP           string    `bun:"ip,notnull"`
	Port         int       `bun:",notnull"`
	IsActive     bool      `bun:",notnull"`
	ResponseTime *int64    `bun:"response_time"`
	StatusCode   int       `bun:",nullzero"`
	ErrorMessage string    `bun:",nullzero"`
	ErrorKind    string    `bun:",nullzero"`
	CountryCode  *string   `bun:"country_code"`
	CountryName  *string   `bun:"country_name"`
	City         *string   `bun:"city"`
	Region       *string   `bun:"region"`
	ISP          *string   `bun:"isp"`
	Org          *string   `bun:"org"`
	Latitude     *float64  `bun:"latitude"`
	Longitude    *float64  `bun:"longitude"`
	CheckedAt    time.Time `bun:",notnull"`
	CreatedAt    time.Time `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

func newProxyCheck(userID, batchID string, r domain.EnrichedResult) *ProxyCheck {
	now := time.Now().UTC()
	return &ProxyCheck{
		BatchID:      batchID,
		UserID:       userID,
		IP:           r.IP,
		Port:         r.Port,
		IsActive:     r.IsActive,
		ResponseTime: r.ResponseTimeMs,
		StatusCode:   r.StatusCode,
		ErrorMessage: r.ErrorMessage,
		ErrorKind:    string(r.ErrorKind),
		CountryCode:  r.CountryCode,
		CountryName:  r.CountryName,
		City:         r.City,
		Region:       r.Region,
		ISP:          r.ISP,
		Org:          r.Org,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
		CheckedAt:    r.CheckedAt.UTC(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (pc *ProxyCheck) toActiveProxy() domain.ActiveProxy {
	return domain.ActiveProxy{
		IP:             pc.IP,
		Port:           pc.Port,
		CountryCode:    pc.CountryCode,
		City:           pc.City,
		ResponseTimeMs: pc.ResponseTime,
		CheckedAt:      pc.CheckedAt.UTC(),
	}
}

func (pc *ProxyCheck) toStoredCheck() domain.StoredCheck {
	return domain.StoredCheck{
		IP:             pc.IP,
		Port:           pc.Port,
		IsActive:       pc.IsActive,
		ResponseTimeMs: pc.ResponseTime,
		CountryCode:    pc.CountryCode,
		CheckedAt:      pc.CheckedAt.UTC(),
	}
}
