package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"proxy-checker/internal/domain"
)

const maxDrainBytes = 4 << 10

type endpointKey struct{}

var errNoEndpoint = errors.New("request carries no proxy endpoint")

type httpChecker struct {
	testURL   string
	userAgent string
	client    *http.Client
	now       func() time.Time
}

type Option func(*options)

type options struct {
	dialContext func(ctx context.Context, network, addr string) (net.Conn, error)
	now         func() time.Time
}

// WithDialContext replaces the dialer used to reach proxies.
func WithDialContext(dial func(ctx context.Context, network, addr string) (net.Conn, error)) Option {
	return func(o *options) {
		o.dialContext = dial
	}
}

// WithClock replaces time.Now for checked_at stamps and latency.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New returns a Checker that probes every endpoint with a GET to testURL.
// All probes share a single transport; the proxy of each request is taken
// from its context.
func New(testURL, userAgent string, opts ...Option) Checker {
	o := &options{
		dialContext: (&net.Dialer{
			KeepAlive:     -1,
			FallbackDelay: -1,
		}).DialContext,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	transport := &http.Transport{
		Proxy:             proxyFromContext,
		DialContext:       o.dialContext,
		DisableKeepAlives: true,
	}

	return &httpChecker{
		testURL:   testURL,
		userAgent: userAgent,
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		now: o.now,
	}
}

func proxyFromContext(req *http.Request) (*url.URL, error) {
	ep, ok := req.Context().Value(endpointKey{}).(domain.ProxyEndpoint)
	if !ok {
		return nil, errNoEndpoint
	}
	return &url.URL{Scheme: "http", Host: ep.String()}, nil
}

func (c *httpChecker) Check(ctx context.Context, endpoint domain.ProxyEndpoint, timeout time.Duration) domain.CheckResult {
	if timeout <= 0 {
		timeout = domain.DefaultTimeout
	}

	parent := ctx
	ctx, cancel := context.WithTimeout(context.WithValue(ctx, endpointKey{}, endpoint), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.testURL, nil)
	if err != nil {
		return domain.NewInactiveResult(endpoint, fmt.Sprintf("invalid test url %q: %v", c.testURL, err), domain.ErrorKindUnknown, c.now())
	}
	req.Header.Set("User-Agent", c.userAgent)

	start := c.now()
	resp, err := c.client.Do(req)
	elapsed := c.now().Sub(start)
	if err != nil {
		result := domain.NewInactiveResult(endpoint, errorMessage(err), Classify(err), c.now())
		result.Cancelled = parent.Err() != nil
		return result
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	return domain.NewActiveResult(endpoint, elapsed, resp.StatusCode, c.now())
}

// errorMessage drops the url.Error wrapper, which only repeats the method
// and test URL.
func errorMessage(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err.Error()
	}
	return err.Error()
}
