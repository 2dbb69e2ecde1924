// Package config collects the autofix core's environment-driven options
// into a single struct, loaded via godotenv the same way the teacher's
// cmd/main.go loads .env before reading os.Getenv.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every enumerated option from spec.md §6.
type Config struct {
	PlannerAPIKey   string
	PlannerModel    string
	CacheDir        string
	CacheTTLDays    int
	CacheMaxSizeMB  int
	SandboxTimeout  int // default timeout in seconds, clamped to [1, 30]
	MaxIterations   int // planner loop bound, default 5
	MaxSnapshots    int
	MaxChanges      int
	MemoryDBPath    string
	DebugAPIEnabled bool
	DebugAPIKey     string
}

// Load reads a .env file if present (missing file is not an error, mirroring
// the teacher's godotenv.Load() call sites) and populates Config from the
// environment, applying spec-mandated defaults.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		PlannerAPIKey:   os.Getenv("PLANNER_API_KEY"),
		PlannerModel:    envOr("PLANNER_MODEL", "claude-opus-4-5-20251101"),
		CacheDir:        envOr("FIX_CACHE_DIR", ".autofix_cache"),
		CacheTTLDays:    envInt("FIX_CACHE_TTL_DAYS", 30),
		CacheMaxSizeMB:  envInt("FIX_CACHE_MAX_SIZE_MB", 100),
		SandboxTimeout:  clamp(envInt("SANDBOX_DEFAULT_TIMEOUT", 5), 1, 30),
		MaxIterations:   envInt("PLANNER_MAX_ITERATIONS", 5),
		MaxSnapshots:    envInt("TRACKER_MAX_SNAPSHOTS", 50_000),
		MaxChanges:      envInt("TRACKER_MAX_CHANGES", 10_000),
		MemoryDBPath:    envOr("FIX_MEMORY_DB_PATH", "fix_memory.db"),
		DebugAPIEnabled: os.Getenv("DEBUG_API_ENABLED") == "true",
		DebugAPIKey:     os.Getenv("DEBUG_API_KEY"),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
