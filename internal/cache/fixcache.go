// Package cache implements FixCache (C4): a content-addressed, TTL-bounded
// on-disk cache mapping (source, error_text) -> repaired artifact, ported
// from gemini_cache.py.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"apex-autofix/internal/logging"
)

const entrySuffix = ".json"
const modelVersionFile = ".model_version"

// Entry is the on-disk cache-entry payload (spec.md §6).
type Entry struct {
	Result     json.RawMessage `json:"result"`
	CachedAt   time.Time       `json:"cached_at"`
	CodeHash   string          `json:"code_hash"`
	CodeLength int             `json:"code_length"`
	ErrorType  string          `json:"error_type"`
}

// Stats mirrors gemini_cache.py's get_stats.
type Stats struct {
	Hits         int64
	Misses       int64
	HitRate      float64
	CacheEntries int
	CacheSizeMB  float64
	TTLDays      int
}

// FixCache is the C4 component.
type FixCache struct {
	dir         string
	ttl         time.Duration
	maxSizeByte int64
	modelID     string

	mu     sync.Mutex
	hits   int64
	misses int64
}

// New opens (creating if absent) a cache directory, checking the
// .model_version sentinel and purging all entries on a model-identity
// mismatch.
func New(dir string, ttlDays, maxSizeMB int, modelID string) (*FixCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	c := &FixCache{
		dir:         dir,
		ttl:         time.Duration(ttlDays) * 24 * time.Hour,
		maxSizeByte: int64(maxSizeMB) * 1024 * 1024,
		modelID:     modelID,
	}
	c.checkModelVersion()
	return c, nil
}

func (c *FixCache) checkModelVersion() {
	path := filepath.Join(c.dir, modelVersionFile)
	stored, err := os.ReadFile(path)
	if err == nil && string(stored) == c.modelID {
		return
	}
	if err == nil {
		logging.S().Infow("fix cache model identity changed, purging cache", "old", string(stored), "new", c.modelID)
		c.Clear()
	}
	_ = os.WriteFile(path, []byte(c.modelID), 0o644)
}

// Key computes sha256(source ||| error_text), the cache key per spec.md §3.
func Key(source, errorText string) string {
	sum := sha256.Sum256([]byte(source + "|||" + errorText))
	return hex.EncodeToString(sum[:])
}

func (c *FixCache) pathFor(key string) string {
	return filepath.Join(c.dir, key+entrySuffix)
}

// Get looks up a cache entry, returning (entry, true) on a live hit. Any
// I/O or decode failure is swallowed to a miss, per spec.md §4.4.
func (c *FixCache) Get(source, errorText string) (Entry, bool) {
	key := Key(source, errorText)
	raw, err := os.ReadFile(c.pathFor(key))
	if err != nil {
		c.recordMiss()
		return Entry{}, false
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		logging.S().Warnw("corrupt fix cache entry, treating as miss", "key", key)
		_ = os.Remove(c.pathFor(key))
		c.recordMiss()
		return Entry{}, false
	}
	if time.Since(e.CachedAt) > c.ttl {
		_ = os.Remove(c.pathFor(key))
		c.recordMiss()
		return Entry{}, false
	}
	c.recordHit()
	return e, true
}

// Set writes an entry for (source, errorText) and, on overflow, evicts the
// oldest 25% of entries by modification time.
func (c *FixCache) Set(source, errorText string, result json.RawMessage) error {
	key := Key(source, errorText)
	e := Entry{
		Result:     result,
		CachedAt:   time.Now().UTC(),
		CodeHash:   key,
		CodeLength: len(source),
		ErrorType:  errorText,
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := c.writeAtomic(c.pathFor(key), raw); err != nil {
		logging.S().Warnw("fix cache write failed", "error", err)
		return nil // cache writes are never on the correctness path
	}
	c.checkSize()
	return nil
}

// writeAtomic writes raw to path by first writing a sibling temp file and
// renaming it into place, so a reader never observes a partially-written
// entry, per spec.md §4.4's "writes the entry atomically".
func (c *FixCache) writeAtomic(path string, raw []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*"+entrySuffix)
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func (c *FixCache) checkSize() {
	entries, total, err := c.listEntries()
	if err != nil {
		return
	}
	if total <= c.maxSizeByte {
		return
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].modTime.Before(entries[j].modTime) })
	evict := len(entries) / 4
	for i := 0; i < evict; i++ {
		_ = os.Remove(entries[i].path)
	}
	logging.S().Infow("fix cache evicted oldest entries on size overflow", "evicted", evict)
}

type entryStat struct {
	path    string
	modTime time.Time
	size    int64
}

func (c *FixCache) listEntries() ([]entryStat, int64, error) {
	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, 0, err
	}
	var out []entryStat
	var total int64
	for _, de := range dirEntries {
		if de.IsDir() || filepath.Ext(de.Name()) != entrySuffix {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, entryStat{path: filepath.Join(c.dir, de.Name()), modTime: info.ModTime(), size: info.Size()})
		total += info.Size()
	}
	return out, total, nil
}

// Clear removes every cache entry.
func (c *FixCache) Clear() {
	entries, _, err := c.listEntries()
	if err != nil {
		return
	}
	for _, e := range entries {
		_ = os.Remove(e.path)
	}
}

func (c *FixCache) recordHit() {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func (c *FixCache) recordMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

// Stats reports hit/miss counters and on-disk footprint.
func (c *FixCache) Stats() Stats {
	c.mu.Lock()
	hits, misses := c.hits, c.misses
	c.mu.Unlock()

	entries, total, _ := c.listEntries()
	var rate float64
	if hits+misses > 0 {
		rate = float64(hits) / float64(hits+misses)
	}
	return Stats{
		Hits:         hits,
		Misses:       misses,
		HitRate:      rate,
		CacheEntries: len(entries),
		CacheSizeMB:  float64(total) / (1024 * 1024),
		TTLDays:      int(c.ttl / (24 * time.Hour)),
	}
}
