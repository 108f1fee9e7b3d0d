package domain

import (
	"net"
	"strconv"
	"time"
)

// ProxyEndpoint is a forward proxy address. Values are built by the endpoint
// package, which validates them; nothing downstream re-validates.
type ProxyEndpoint struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

func (e ProxyEndpoint) String() string {
	return net.JoinHostPort(e.IP, strconv.Itoa(e.Port))
}

const (
	DefaultTimeout     = 5 * time.Second
	MinTimeout         = 1 * time.Second
	MaxTimeout         = 30 * time.Second
	DefaultConcurrency = 10
	MinConcurrency     = 1
	MaxConcurrency     = 50
)

// CheckOptions apply to every probe of a single batch call.
type CheckOptions struct {
	Timeout     time.Duration
	Concurrency int
}

// WithDefaults fills zero values with the package defaults.
func (o CheckOptions) WithDefaults() CheckOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	return o
}
