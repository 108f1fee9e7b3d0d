package uptimekuma

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"proxy-checker/internal/domain"
)

const Name = "uptime-kuma"

// UptimeKuma pushes a heartbeat to an Uptime Kuma push monitor after each
// batch: up when at least one proxy answered, down otherwise.
type UptimeKuma struct {
	monitorURL string
	client     *http.Client
}

func New(monitorURL string, client *http.Client) (*UptimeKuma, error) {
	if _, err := url.Parse(monitorURL); err != nil {
		return nil, fmt.Errorf("invalid uptime kuma monitor url: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &UptimeKuma{
		monitorURL: monitorURL,
		client:     client,
	}, nil
}

func (u *UptimeKuma) Export(ctx context.Context, summary domain.BatchSummary) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.pushURL(summary), nil)
	if err != nil {
		return fmt.Errorf("failed to build push request: %w", err)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("push failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("push rejected with status %d", resp.StatusCode)
	}

	return nil
}

func (u *UptimeKuma) pushURL(summary domain.BatchSummary) string {
	// validated at construction
	parsed, _ := url.Parse(u.monitorURL)

	status := "down"
	if summary.ActiveProxies > 0 {
		status = "up"
	}

	q := parsed.Query()
	q.Set("status", status)
	q.Set("msg", fmt.Sprintf("%d/%d proxies active", summary.ActiveProxies, summary.TotalChecked))
	q.Set("ping", strconv.FormatInt(summary.AverageResponseTimeMs, 10))
	parsed.RawQuery = q.Encode()

	return parsed.String()
}
