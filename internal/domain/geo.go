package domain

import "context"

// GeoInfo holds geolocation for an IP. Every field is nil when no provider
// could answer.
type GeoInfo struct {
	CountryCode *string  `json:"country_code"`
	CountryName *string  `json:"country_name"`
	City        *string  `json:"city"`
	Region      *string  `json:"region"`
	ISP         *string  `json:"isp"`
	Org         *string  `json:"org"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

func (g GeoInfo) IsEmpty() bool {
	return g.CountryCode == nil && g.CountryName == nil && g.City == nil &&
		g.Region == nil && g.ISP == nil && g.Org == nil &&
		g.Latitude == nil && g.Longitude == nil
}

type GeoLocator interface {
	Lookup(ctx context.Context, ip string) GeoInfo
}
