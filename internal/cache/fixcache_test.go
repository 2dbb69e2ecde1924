package cache

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttlDays, maxSizeMB int) *FixCache {
	t.Helper()
	c, err := New(filepath.Join(t.TempDir(), "cache"), ttlDays, maxSizeMB, "model-v1")
	require.NoError(t, err)
	return c
}

func TestSetThenGetRoundTrips(t *testing.T) {
	c := newTestCache(t, 30, 100)
	payload, _ := json.Marshal(map[string]string{"fixed": "print(1)"})

	require.NoError(t, c.Set("src", "err", payload))
	entry, hit := c.Get("src", "err")
	require.True(t, hit, "expected a hit after Set")

	var got map[string]string
	require.NoError(t, json.Unmarshal(entry.Result, &got))
	require.Equal(t, "print(1)", got["fixed"])
}

func TestGetMissForUnknownKey(t *testing.T) {
	c := newTestCache(t, 30, 100)
	_, hit := c.Get("nope", "nope")
	require.False(t, hit, "expected a miss for an absent key")
}

func TestClearRemovesAllEntries(t *testing.T) {
	c := newTestCache(t, 30, 100)
	payload, _ := json.Marshal(map[string]string{"ok": "1"})
	_ = c.Set("a", "b", payload)

	c.Clear()

	_, hit := c.Get("a", "b")
	require.False(t, hit, "expected a miss after Clear")
}

func TestGetExpiresEntriesPastTTL(t *testing.T) {
	c, err := New(filepath.Join(t.TempDir(), "cache"), 0, 100, "model-v1")
	require.NoError(t, err)

	payload, _ := json.Marshal(map[string]string{"ok": "1"})
	require.NoError(t, c.Set("a", "b", payload))
	time.Sleep(10 * time.Millisecond)

	_, hit := c.Get("a", "b")
	require.False(t, hit, "expected a zero-TTL entry to be treated as expired")
}

func TestModelVersionMismatchPurgesCache(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c1, err := New(dir, 30, 100, "model-v1")
	require.NoError(t, err)
	payload, _ := json.Marshal(map[string]string{"ok": "1"})
	_ = c1.Set("a", "b", payload)

	c2, err := New(dir, 30, 100, "model-v2")
	require.NoError(t, err)

	_, hit := c2.Get("a", "b")
	require.False(t, hit, "expected a model-identity change to purge previous entries")
}

func TestStatsReportsHitMissCounts(t *testing.T) {
	c := newTestCache(t, 30, 100)
	payload, _ := json.Marshal(map[string]string{"ok": "1"})
	_ = c.Set("a", "b", payload)
	c.Get("a", "b")
	c.Get("x", "y")

	stats := c.Stats()
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
	require.Equal(t, 30, stats.TTLDays)
}
