package geoip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"proxy-checker/internal/domain"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func strPtr(s string) *string { return &s }

func TestCache(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache := newCacheWithClock(time.Hour, clock.Now)

	info := domain.GeoInfo{CountryCode: strPtr("DE")}
	cache.Set("1.1.1.1", info)

	got, ok := cache.Get("1.1.1.1")
	require.True(t, ok)
	assert.Equal(t, "DE", *got.CountryCode)

	_, ok = cache.Get("2.2.2.2")
	assert.False(t, ok)

	clock.Advance(59 * time.Minute)
	_, ok = cache.Get("1.1.1.1")
	assert.True(t, ok, "entry still fresh")

	cache.Set("3.3.3.3", info)
	clock.Advance(time.Minute)

	_, ok = cache.Get("1.1.1.1")
	assert.False(t, ok, "entry expired at ttl")
	assert.Equal(t, 2, cache.Len(), "expired entries stay until evicted")

	assert.Equal(t, 1, cache.Evict())
	assert.Equal(t, 1, cache.Len())

	_, ok = cache.Get("3.3.3.3")
	assert.True(t, ok)
}
