package nominatim

import (
	"context"
	"errors"
	"testing"

	"github.com/regenagro/enviro-data-batch/internal/domain"
	"github.com/regenagro/enviro-data-batch/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock for cache tests ---

type countingGeocoder struct {
	calls int
	coord domain.Coordinate
	found bool
	err   error
}

func (m *countingGeocoder) Search(_ context.Context, _ string) (domain.Coordinate, bool, error) {
	m.calls++
	return m.coord, m.found, m.err
}

// --- CachedGeocoder tests ---

func TestCachedGeocoder_CacheHit(t *testing.T) {
	inner := &countingGeocoder{coord: domain.Coordinate{Lat: -0.303, Lon: 36.08}, found: true}
	cached := NewCachedGeocoder(inner, 10, observability.NewMetricsForTesting())

	c1, found, err := cached.Search(context.Background(), "Nakuru")
	require.NoError(t, err)
	require.True(t, found)

	c2, found, err := cached.Search(context.Background(), "Nakuru")
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, c1, c2)
	assert.Equal(t, 1, inner.calls, "should only call inner once")
}

func TestCachedGeocoder_KeyIsCaseInsensitive(t *testing.T) {
	inner := &countingGeocoder{coord: domain.Coordinate{Lat: 1}, found: true}
	cached := NewCachedGeocoder(inner, 10, observability.NewMetricsForTesting())

	_, _, err := cached.Search(context.Background(), "Nakuru, Kenya")
	require.NoError(t, err)
	_, _, err = cached.Search(context.Background(), "  nakuru, kenya ")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
}

func TestCachedGeocoder_NotFoundIsNotCached(t *testing.T) {
	inner := &countingGeocoder{found: false}
	cached := NewCachedGeocoder(inner, 10, observability.NewMetricsForTesting())

	_, found, err := cached.Search(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.False(t, found)

	_, _, err = cached.Search(context.Background(), "nowhere")
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls, "misses must go back to the provider")
}

func TestCachedGeocoder_ErrorPassesThrough(t *testing.T) {
	inner := &countingGeocoder{err: errors.New("boom")}
	cached := NewCachedGeocoder(inner, 10, observability.NewMetricsForTesting())

	_, _, err := cached.Search(context.Background(), "Nakuru")
	require.Error(t, err)
}

func TestLRUCache_EvictsOldest(t *testing.T) {
	cache := newLRUCache(2)
	cache.put("a", domain.Coordinate{Lat: 1})
	cache.put("b", domain.Coordinate{Lat: 2})
	cache.put("c", domain.Coordinate{Lat: 3})

	_, ok := cache.get("a")
	assert.False(t, ok, "oldest entry should be evicted")

	v, ok := cache.get("c")
	require.True(t, ok)
	assert.Equal(t, 3.0, v.Lat)
}

func TestLRUCache_GetRefreshesRecency(t *testing.T) {
	cache := newLRUCache(2)
	cache.put("a", domain.Coordinate{Lat: 1})
	cache.put("b", domain.Coordinate{Lat: 2})

	_, ok := cache.get("a") // refresh "a"
	require.True(t, ok)

	cache.put("c", domain.Coordinate{Lat: 3})

	_, ok = cache.get("a")
	assert.True(t, ok, "recently used entry should survive")
	_, ok = cache.get("b")
	assert.False(t, ok)
}
