package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"SWEEP_INTERVAL_SECONDS", "TEST_CACHE_TTL_MINUTES", "TREND_THRESHOLD_PCT", "ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	if cfg.SweepInterval != 30*time.Second {
		t.Fatalf("expected 30s sweep interval, got %v", cfg.SweepInterval)
	}
	if cfg.TestCacheTTL != time.Hour {
		t.Fatalf("expected 1h test cache TTL, got %v", cfg.TestCacheTTL)
	}
	if cfg.TrendThresholdPct != 5 {
		t.Fatalf("expected threshold 5, got %v", cfg.TrendThresholdPct)
	}
	if cfg.AllowedOrigins != nil {
		t.Fatalf("expected allow-all origins, got %v", cfg.AllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL_SECONDS", "5")
	t.Setenv("TREND_THRESHOLD_PCT", "2.5")
	t.Setenv("JOIN_RATE_LIMIT_PER_MIN", "not-a-number")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg := Load()
	if cfg.SweepInterval != 5*time.Second {
		t.Fatalf("expected 5s, got %v", cfg.SweepInterval)
	}
	if cfg.TrendThresholdPct != 2.5 {
		t.Fatalf("expected 2.5, got %v", cfg.TrendThresholdPct)
	}
	if cfg.JoinRatePerMinute != 20 {
		t.Fatalf("invalid value should fall back to 20, got %d", cfg.JoinRatePerMinute)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
}

func TestCacheKeys(t *testing.T) {
	if got := CacheKey.AttemptAnswersKey("s1", "t1", 9); got != "participant:9:session:s1:test:t1:answers" {
		t.Fatalf("unexpected answers key %q", got)
	}
	if got := CacheKey.TestMetaKey("t1"); got != "test:t1:meta" {
		t.Fatalf("unexpected meta key %q", got)
	}
}
