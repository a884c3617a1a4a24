package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBBackend != DatabaseSQLite {
		t.Fatalf("expected sqlite default, got %s", cfg.DBBackend)
	}
	if cfg.DBDSN != "munin.db" {
		t.Fatalf("expected sqlite DSN default, got %q", cfg.DBDSN)
	}
	if cfg.RetryDelay != 3*time.Second {
		t.Fatalf("expected 3s retry delay, got %s", cfg.RetryDelay)
	}
	if !cfg.AnnounceDefault {
		t.Fatalf("expected announcements enabled by default")
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("MUNIN_DB_BACKEND", "oracle")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestLoadRequiresDSNForPostgres(t *testing.T) {
	t.Setenv("MUNIN_DB_BACKEND", "postgres")
	t.Setenv("MUNIN_DB_DSN", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing DSN")
	}
}

func TestLoadRejectsBadRetrySettings(t *testing.T) {
	t.Setenv("MUNIN_RETRY_DELAY_SECONDS", "-1")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for negative retry delay")
	}
	t.Setenv("MUNIN_RETRY_DELAY_SECONDS", "3")
	t.Setenv("MUNIN_MAX_RETRIES", "0")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for zero max retries")
	}
}
