package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"proxy-checker/internal/config"
	"proxy-checker/internal/domain"
)

type stubService struct {
	mu         sync.Mutex
	lastReq    domain.BatchRequest
	lastUser   string
	lastEP     domain.ProxyEndpoint
	lastGeo    bool
	lastFilter domain.ListFilter
	lastPeriod string
	listErr    error
}

func result(ep domain.ProxyEndpoint) domain.EnrichedResult {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if ep.Port%2 == 0 {
		return domain.EnrichedResult{CheckResult: domain.NewActiveResult(ep, 150*time.Millisecond, 200, now)}
	}
	return domain.EnrichedResult{CheckResult: domain.NewInactiveResult(ep, "timed out", domain.ErrorKindTimeout, now)}
}

func (s *stubService) CheckOne(_ context.Context, userID string, ep domain.ProxyEndpoint, includeGeo bool) domain.EnrichedResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUser, s.lastEP, s.lastGeo = userID, ep, includeGeo
	return result(ep)
}

func (s *stubService) CheckMany(ctx context.Context, req domain.BatchRequest) domain.BatchReport {
	return s.Stream(ctx, req, nil)
}

func (s *stubService) Stream(_ context.Context, req domain.BatchRequest, fn func(int, domain.EnrichedResult)) domain.BatchReport {
	s.mu.Lock()
	s.lastReq = req
	s.mu.Unlock()

	results := make([]domain.EnrichedResult, len(req.Endpoints))
	for i, ep := range req.Endpoints {
		results[i] = result(ep)
		if fn != nil {
			fn(i, results[i])
		}
	}
	return domain.BatchReport{
		Summary: domain.Summarize("batch-1", req.UserID, results, time.Now()),
		Results: results,
	}
}

func (s *stubService) UpdateStatuses(_ context.Context, req domain.BatchRequest) domain.UpdateReport {
	s.mu.Lock()
	s.lastReq = req
	s.mu.Unlock()

	report := domain.UpdateReport{Summary: domain.UpdateSummary{TotalProxies: len(req.Endpoints)}}
	for _, ep := range req.Endpoints {
		report.Summary.CreatedNew++
		report.Details = append(report.Details, domain.UpdateDetail{EnrichedResult: result(ep), Action: domain.ActionCreated})
	}
	return report
}

func (s *stubService) ListActive(_ context.Context, filter domain.ListFilter) ([]domain.ActiveProxy, error) {
	s.lastFilter = filter
	if s.listErr != nil {
		return nil, s.listErr
	}
	rt := int64(120)
	return []domain.ActiveProxy{{IP: "10.0.0.1", Port: 8080, ResponseTimeMs: &rt}}, nil
}

func (s *stubService) Stats(_ context.Context, userID, period string) (domain.Stats, error) {
	s.lastUser, s.lastPeriod = userID, period
	return domain.Stats{Period: period, TotalProxies: 3, ActiveProxies: 2, SuccessRate: "66.67%"}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.Server{Listen: "127.0.0.1:0", ShutdownTimeoutSeconds: 5},
		Checker: config.Checker{
			DefaultTimeoutMs:   5000,
			DefaultConcurrency: 10,
			MaxBatchSize:       1000,
		},
	}
}

func newTestServer(t *testing.T) (*Server, *stubService) {
	t.Helper()
	svc := &stubService{}
	return NewServer(testConfig(), svc, prometheus.NewRegistry(), zap.NewNop()), svc
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "healthy", decode(t, rec)["status"])
}

func TestCheckSingle(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantEP     domain.ProxyEndpoint
		wantGeo    bool
		wantError  string
	}{
		{
			name:       "proxy query",
			target:     "/v1/check?proxy=10.0.0.1:8080&user_id=alice",
			wantStatus: http.StatusOK,
			wantEP:     domain.ProxyEndpoint{IP: "10.0.0.1", Port: 8080},
			wantGeo:    true,
		},
		{
			name:       "ip and port query",
			target:     "/v1/check?ip=10.0.0.2&port=3128&include_geoip=false",
			wantStatus: http.StatusOK,
			wantEP:     domain.ProxyEndpoint{IP: "10.0.0.2", Port: 3128},
		},
		{
			name:       "path segment",
			target:     "/v1/check/10.0.0.3:1080",
			wantStatus: http.StatusOK,
			wantEP:     domain.ProxyEndpoint{IP: "10.0.0.3", Port: 1080},
			wantGeo:    true,
		},
		{
			name:       "missing parameters",
			target:     "/v1/check",
			wantStatus: http.StatusBadRequest,
			wantError:  "Proxy parameter required",
		},
		{
			name:       "bad port",
			target:     "/v1/check?ip=10.0.0.2&port=abc",
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid proxy format",
		},
		{
			name:       "out of range port",
			target:     "/v1/check?proxy=10.0.0.1:70000",
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid proxy format",
		},
		{
			name:       "path without colon",
			target:     "/v1/check/10.0.0.3",
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid proxy format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, svc := newTestServer(t)

			rec := do(t, s, http.MethodGet, tt.target, "")
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			body := decode(t, rec)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body["error"])
				return
			}
			assert.Equal(t, tt.wantEP, svc.lastEP)
			assert.Equal(t, tt.wantGeo, svc.lastGeo)
			assert.Equal(t, tt.wantEP.IP, body["ip"])
			assert.Contains(t, body, "is_active")
			assert.Contains(t, body, "response_time_ms")
		})
	}
}

func TestCheckBatch(t *testing.T) {
	s, svc := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/v1/check", `{
		"proxies": ["10.0.0.1:8080", "10.0.0.2:8081", " 10.0.0.3:8082 "],
		"options": {"timeout": 2000, "concurrency": 5, "include_geoip": false},
		"user_id": "alice"
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp batchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Proxy check completed", resp.Message)
	assert.Equal(t, 3, resp.TotalChecked)
	assert.Equal(t, 2, resp.ActiveProxies)
	assert.Equal(t, 1, resp.InactiveProxies)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "10.0.0.3", resp.Results[2].IP)

	assert.Equal(t, "alice", svc.lastReq.UserID)
	assert.Equal(t, 2*time.Second, svc.lastReq.Options.Timeout)
	assert.Equal(t, 5, svc.lastReq.Options.Concurrency)
	assert.False(t, svc.lastReq.IncludeGeo)
}

func TestCheckBatchDefaults(t *testing.T) {
	s, svc := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/v1/check", `{"proxies": ["10.0.0.1:8080"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 5*time.Second, svc.lastReq.Options.Timeout)
	assert.Equal(t, 10, svc.lastReq.Options.Concurrency)
	assert.True(t, svc.lastReq.IncludeGeo)
	assert.Empty(t, svc.lastReq.UserID)
}

func TestCheckBatchValidation(t *testing.T) {
	tooMany := make([]string, 1001)
	for i := range tooMany {
		tooMany[i] = "10.0.0.1:8080"
	}
	tooManyBody, _ := json.Marshal(map[string]any{"proxies": tooMany})

	tests := []struct {
		name        string
		body        string
		wantError   string
		wantDetails string
		wantInvalid []any
	}{
		{
			name:      "malformed json",
			body:      `{"proxies": [`,
			wantError: "Invalid request format",
		},
		{
			name:        "empty proxies",
			body:        `{"proxies": []}`,
			wantError:   "Invalid request format",
			wantDetails: "proxies must be at least 1",
		},
		{
			name:        "missing proxies",
			body:        `{}`,
			wantError:   "Invalid request format",
			wantDetails: "proxies is required",
		},
		{
			name:        "too many proxies",
			body:        string(tooManyBody),
			wantError:   "Invalid request format",
			wantDetails: "proxies must be at most 1000",
		},
		{
			name:        "timeout too small",
			body:        `{"proxies": ["10.0.0.1:8080"], "options": {"timeout": 500}}`,
			wantError:   "Invalid request format",
			wantDetails: "timeout must be at least 1000",
		},
		{
			name:        "concurrency too large",
			body:        `{"proxies": ["10.0.0.1:8080"], "options": {"concurrency": 51}}`,
			wantError:   "Invalid request format",
			wantDetails: "concurrency must be at most 50",
		},
		{
			name:        "invalid proxies listed",
			body:        `{"proxies": ["10.0.0.1:8080", "nope", "10.0.0.1:0"]}`,
			wantError:   "Invalid proxy format",
			wantInvalid: []any{"nope", "port 0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t)

			rec := do(t, s, http.MethodPost, "/v1/check", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			body := decode(t, rec)
			assert.Equal(t, tt.wantError, body["error"])
			if tt.wantDetails != "" {
				assert.Contains(t, body["details"], tt.wantDetails)
			}
			if tt.wantInvalid != nil {
				invalid, ok := body["invalid_proxies"].([]any)
				require.True(t, ok)
				require.Len(t, invalid, len(tt.wantInvalid))
				for i, want := range tt.wantInvalid {
					assert.Contains(t, invalid[i], want)
				}
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPut, "/v1/check", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = do(t, s, http.MethodGet, "/v1/proxies/status", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestUpdateStatus(t *testing.T) {
	s, svc := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/v1/proxies/status", `{"proxies": ["10.0.0.1:8080"]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User ID is required", decode(t, rec)["error"])

	rec = do(t, s, http.MethodPost, "/v1/proxies/status", `{"proxies": ["10.0.0.1:8080", "10.0.0.2:8080"], "user_id": "bob"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "bob", svc.lastReq.UserID)

	var resp struct {
		Message string               `json:"message"`
		Summary domain.UpdateSummary `json:"summary"`
		Results []map[string]any     `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Proxy statuses updated", resp.Message)
	assert.Equal(t, 2, resp.Summary.TotalProxies)
	assert.Equal(t, 2, resp.Summary.CreatedNew)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "created", resp.Results[0]["action"])
	assert.Equal(t, "10.0.0.1", resp.Results[0]["ip"])
}

func TestListProxies(t *testing.T) {
	s, svc := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/v1/proxies?country=us&user_id=alice&sort=response_time&order=asc&limit=50000", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, domain.ListFilter{
		Country: "us",
		UserID:  "alice",
		SortBy:  "response_time",
		Desc:    false,
		Limit:   10000,
	}, svc.lastFilter)

	var resp listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Metadata.TotalProxies)
	require.Len(t, resp.Proxies, 1)
	assert.Equal(t, "10.0.0.1", resp.Proxies[0].IP)

	rec = do(t, s, http.MethodGet, "/v1/proxies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.ListFilter{SortBy: "checked_at", Desc: true, Limit: 1000}, svc.lastFilter)
}

func TestListProxiesErrors(t *testing.T) {
	s, svc := newTestServer(t)

	for _, target := range []string{
		"/v1/proxies?sort=error_message",
		"/v1/proxies?order=sideways",
		"/v1/proxies?limit=0",
		"/v1/proxies?limit=ten",
	} {
		rec := do(t, s, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}

	svc.listErr = errors.New("connection reset")
	rec := do(t, s, http.MethodGet, "/v1/proxies", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decode(t, rec)["error"])
}

func TestStats(t *testing.T) {
	s, svc := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/v1/stats?user_id=alice&period=7d", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "7d", svc.lastPeriod)
	assert.Equal(t, "alice", svc.lastUser)
	assert.Equal(t, "66.67%", decode(t, rec)["success_rate"])

	rec = do(t, s, http.MethodGet, "/v1/stats?period=forever", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "24h", svc.lastPeriod)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "proxy_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	s := NewServer(testConfig(), &stubService{}, reg, zap.NewNop())
	rec := do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "proxy_test_total 1")
}

func TestStream(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/check/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"proxies": []string{"10.0.0.1:8080", "10.0.0.2:8081"},
		"user_id": "carol",
	}))

	seen := make(map[int]string)
	for i := 0; i < 2; i++ {
		var frame struct {
			Index  int                   `json:"index"`
			Result domain.EnrichedResult `json:"result"`
		}
		require.NoError(t, conn.ReadJSON(&frame))
		seen[frame.Index] = frame.Result.IP
	}
	assert.Equal(t, map[int]string{0: "10.0.0.1", 1: "10.0.0.2"}, seen)

	var done streamDone
	require.NoError(t, conn.ReadJSON(&done))
	assert.True(t, done.Done)
	assert.Equal(t, 2, done.Summary.TotalChecked)
	assert.Equal(t, "carol", done.Summary.UserID)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestStreamInvalidRequest(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/check/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"proxies": []string{"bogus"}}))

	var reqErr requestError
	require.NoError(t, conn.ReadJSON(&reqErr))
	assert.Equal(t, "Invalid proxy format", reqErr.Message)
	assert.Len(t, reqErr.InvalidProxies, 1)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
}

func TestServerLifecycle(t *testing.T) {
	s, _ := newTestServer(t)
	assert.Empty(t, s.Addr())

	require.NoError(t, s.Start(context.Background()))
	addr := s.Addr()
	require.NotEmpty(t, addr)
	assert.Error(t, s.Start(context.Background()), "double start")

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()), "stop is idempotent")

	_, err = http.Post("http://"+addr+"/v1/check", "application/json", bytes.NewBufferString(`{}`))
	assert.Error(t, err)
}
