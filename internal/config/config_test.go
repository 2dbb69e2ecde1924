package config

import (
	"os"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	for _, key := range []string{
		"PLANNER_API_KEY", "PLANNER_MODEL", "FIX_CACHE_DIR", "FIX_CACHE_TTL_DAYS",
		"FIX_CACHE_MAX_SIZE_MB", "SANDBOX_DEFAULT_TIMEOUT", "PLANNER_MAX_ITERATIONS",
		"TRACKER_MAX_SNAPSHOTS", "TRACKER_MAX_CHANGES", "FIX_MEMORY_DB_PATH",
	} {
		os.Unsetenv(key)
	}

	cfg := Load()
	if cfg.CacheTTLDays != 30 {
		t.Fatalf("CacheTTLDays = %d, want 30", cfg.CacheTTLDays)
	}
	if cfg.CacheMaxSizeMB != 100 {
		t.Fatalf("CacheMaxSizeMB = %d, want 100", cfg.CacheMaxSizeMB)
	}
	if cfg.SandboxTimeout != 5 {
		t.Fatalf("SandboxTimeout = %d, want 5", cfg.SandboxTimeout)
	}
	if cfg.MaxIterations != 5 {
		t.Fatalf("MaxIterations = %d, want 5", cfg.MaxIterations)
	}
}

func TestLoadClampsSandboxTimeout(t *testing.T) {
	os.Setenv("SANDBOX_DEFAULT_TIMEOUT", "999")
	defer os.Unsetenv("SANDBOX_DEFAULT_TIMEOUT")

	cfg := Load()
	if cfg.SandboxTimeout != 30 {
		t.Fatalf("SandboxTimeout = %d, want clamped to 30", cfg.SandboxTimeout)
	}
}
