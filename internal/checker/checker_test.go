package checker

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"proxy-checker/internal/domain"
)

const (
	testURL   = "http://echo.test/ip"
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// newFakeProxy starts an HTTP server that answers proxied requests itself
// and records what it received.
func newFakeProxy(t *testing.T, status int) (*httptest.Server, *proxyLog) {
	t.Helper()

	log := &proxyLog{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.record(r)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"origin": "203.0.113.7"}`)
	}))
	t.Cleanup(server.Close)

	return server, log
}

type proxyLog struct {
	mu       sync.Mutex
	requests []*http.Request
}

func (l *proxyLog) record(r *http.Request) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = append(l.requests, r)
}

func (l *proxyLog) all() []*http.Request {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*http.Request(nil), l.requests...)
}

func endpointOf(t *testing.T, addr string) domain.ProxyEndpoint {
	t.Helper()

	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return domain.ProxyEndpoint{IP: host, Port: port}
}

func TestCheckActive(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "OK response", status: http.StatusOK},
		{name: "Forbidden still counts as active", status: http.StatusForbidden},
		{name: "Server error still counts as active", status: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, log := newFakeProxy(t, tt.status)
			ep := endpointOf(t, server.Listener.Addr().String())

			c := New(testURL, userAgent)
			result := c.Check(context.Background(), ep, 2*time.Second)

			require.True(t, result.IsActive, "unexpected failure: %s", result.ErrorMessage)
			assert.Equal(t, ep.IP, result.IP)
			assert.Equal(t, ep.Port, result.Port)
			assert.Equal(t, tt.status, result.StatusCode)
			require.NotNil(t, result.ResponseTimeMs)
			assert.GreaterOrEqual(t, *result.ResponseTimeMs, int64(0))
			assert.LessOrEqual(t, *result.ResponseTimeMs, int64(2200))
			assert.Empty(t, result.ErrorKind)
			assert.Empty(t, result.ErrorMessage)
			assert.WithinDuration(t, time.Now(), result.CheckedAt, 5*time.Second)

			requests := log.all()
			require.Len(t, requests, 1, "exactly one request per probe")
			assert.Equal(t, "echo.test", requests[0].Host)
			assert.Equal(t, "/ip", requests[0].URL.Path)
			assert.Equal(t, userAgent, requests[0].Header.Get("User-Agent"))
		})
	}
}

func TestCheckConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ep := endpointOf(t, ln.Addr().String())
	require.NoError(t, ln.Close())

	c := New(testURL, userAgent)
	result := c.Check(context.Background(), ep, 2*time.Second)

	assert.False(t, result.IsActive)
	assert.Equal(t, domain.ErrorKindConnectionRefused, result.ErrorKind)
	assert.Nil(t, result.ResponseTimeMs)
	assert.NotEmpty(t, result.ErrorMessage)
}

func TestCheckTimeout(t *testing.T) {
	// Accepts connections and never answers.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, conn := range conns {
			_ = conn.Close()
		}
	})

	c := New(testURL, userAgent)
	start := time.Now()
	result := c.Check(context.Background(), endpointOf(t, ln.Addr().String()), time.Second)
	elapsed := time.Since(start)

	assert.False(t, result.IsActive)
	assert.Equal(t, domain.ErrorKindTimeout, result.ErrorKind)
	assert.False(t, result.Cancelled, "own timeout is a measurement")
	assert.Nil(t, result.ResponseTimeMs)
	assert.GreaterOrEqual(t, elapsed, time.Second)
	assert.Less(t, elapsed, 1200*time.Millisecond)
}

func TestCheckHostNotFound(t *testing.T) {
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, _, _ := net.SplitHostPort(addr)
		return nil, &net.OpError{
			Op:  "dial",
			Net: network,
			Err: &net.DNSError{Err: "no such host", Name: host, IsNotFound: true},
		}
	}

	c := New(testURL, userAgent, WithDialContext(dial))
	result := c.Check(context.Background(), domain.ProxyEndpoint{IP: "proxy.invalid", Port: 8080}, time.Second)

	assert.False(t, result.IsActive)
	assert.Equal(t, domain.ErrorKindHostNotFound, result.ErrorKind)
	assert.Contains(t, result.ErrorMessage, "no such host")
}

func TestCheckParentCancelled(t *testing.T) {
	server, _ := newFakeProxy(t, http.StatusOK)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(testURL, userAgent)
	result := c.Check(ctx, endpointOf(t, server.Listener.Addr().String()), time.Second)

	assert.False(t, result.IsActive)
	assert.Equal(t, domain.ErrorKindUnknown, result.ErrorKind)
	assert.True(t, result.Cancelled)
}

func TestCheckResultShape(t *testing.T) {
	server, _ := newFakeProxy(t, http.StatusOK)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closed := endpointOf(t, ln.Addr().String())
	require.NoError(t, ln.Close())

	c := New(testURL, userAgent)
	for _, ep := range []domain.ProxyEndpoint{endpointOf(t, server.Listener.Addr().String()), closed} {
		r := c.Check(context.Background(), ep, time.Second)

		active := r.IsActive && r.StatusCode != 0 && r.ResponseTimeMs != nil && *r.ResponseTimeMs >= 0 && r.ErrorKind == ""
		inactive := !r.IsActive && r.ErrorKind != "" && r.ResponseTimeMs == nil
		assert.True(t, active != inactive, "exactly one result shape must hold: %+v", r)
	}
}
