package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"proxy-checker/internal/domain"
)

// Provider answers geolocation queries for a single upstream service.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, ip string) (domain.GeoInfo, error)
}

type ipAPIResponse struct {
	Status      string  `json:"status"`
	Message     string  `json:"message"`
	CountryCode string  `json:"countryCode"`
	Country     string  `json:"country"`
	City        string  `json:"city"`
	RegionName  string  `json:"regionName"`
	ISP         string  `json:"isp"`
	Org         string  `json:"org"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

type ipAPIProvider struct {
	baseURL string
	client  *http.Client
}

// NewIPAPIProvider queries ip-api.com style endpoints: baseURL + ip.
func NewIPAPIProvider(baseURL string, client *http.Client) Provider {
	return &ipAPIProvider{baseURL: baseURL, client: client}
}

func (p *ipAPIProvider) Name() string { return "ip-api" }

func (p *ipAPIProvider) Lookup(ctx context.Context, ip string) (domain.GeoInfo, error) {
	var resp ipAPIResponse
	if err := getJSON(ctx, p.client, p.baseURL+url.PathEscape(ip), &resp); err != nil {
		return domain.GeoInfo{}, err
	}
	if resp.Status != "" && resp.Status != "success" {
		return domain.GeoInfo{}, fmt.Errorf("ip-api lookup failed: %s", resp.Message)
	}

	return domain.GeoInfo{
		CountryCode: optional(resp.CountryCode),
		CountryName: optional(resp.Country),
		City:        optional(resp.City),
		Region:      optional(resp.RegionName),
		ISP:         optional(resp.ISP),
		Org:         optional(resp.Org),
		Latitude:    &resp.Lat,
		Longitude:   &resp.Lon,
	}, nil
}

type ipInfoResponse struct {
	IP      string `json:"ip"`
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
	Loc     string `json:"loc"`
	Org     string `json:"org"`
}

type ipInfoProvider struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewIPInfoProvider queries ipinfo.io style endpoints: baseURL + ip + "/json".
func NewIPInfoProvider(baseURL, token string, client *http.Client) Provider {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &ipInfoProvider{baseURL: baseURL, token: token, client: client}
}

func (p *ipInfoProvider) Name() string { return "ipinfo" }

func (p *ipInfoProvider) Lookup(ctx context.Context, ip string) (domain.GeoInfo, error) {
	u := p.baseURL + url.PathEscape(ip) + "/json"
	if p.token != "" {
		u += "?token=" + url.QueryEscape(p.token)
	}

	var resp ipInfoResponse
	if err := getJSON(ctx, p.client, u, &resp); err != nil {
		return domain.GeoInfo{}, err
	}

	// ipinfo only reports the country code and folds the ISP into org
	info := domain.GeoInfo{
		CountryCode: optional(resp.Country),
		CountryName: optional(resp.Country),
		City:        optional(resp.City),
		Region:      optional(resp.Region),
		ISP:         optional(resp.Org),
		Org:         optional(resp.Org),
	}
	if lat, lon, ok := parseLoc(resp.Loc); ok {
		info.Latitude = &lat
		info.Longitude = &lon
	}

	return info, nil
}

func getJSON(ctx context.Context, client *http.Client, u string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func parseLoc(loc string) (float64, float64, bool) {
	latStr, lonStr, ok := strings.Cut(loc, ",")
	if !ok {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
