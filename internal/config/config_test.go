package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	t.Setenv("QUIZ_TEST_SECRET", "s3cret")
	raw := `
server:
  port: "9090"
session:
  insert_attempts: 7
  retention: 72h
auth:
  jwt_secret: ${QUIZ_TEST_SECRET}
  admins: [root]
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port override, got %s", cfg.Server.Port)
	}
	if cfg.Session.InsertAttempts != 7 || cfg.Session.AllocationAttempts != 10 {
		t.Fatalf("unexpected session config %+v", cfg.Session)
	}
	if TTLDuration(cfg.Session.Retention, 0) != 72*time.Hour {
		t.Fatalf("expected retention override, got %s", cfg.Session.Retention)
	}
	if TTLDuration(cfg.Session.CleanupInterval, 0) != 24*time.Hour {
		t.Fatalf("expected default cleanup interval, got %s", cfg.Session.CleanupInterval)
	}
	if cfg.Auth.JWTSecret != "s3cret" || len(cfg.Auth.Admins) != 1 {
		t.Fatalf("unexpected auth config %+v", cfg.Auth)
	}
}

func TestIdentityHeaderIsUntrustedByDefault(t *testing.T) {
	if Default().Auth.TrustHeader {
		t.Fatalf("the gateway identity header must be opt-in")
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("auth:\n  trust_header: true\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Auth.TrustHeader {
		t.Fatalf("trust_header should be enabled by the file")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	cfg, err := Load("")
	if err != nil || cfg.Session.StoreRetries != 3 {
		t.Fatalf("empty path should give defaults, got %+v %v", cfg.Session, err)
	}
}

func TestTTLDuration(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("empty: %s", got)
	}
	if got := TTLDuration("garbage", time.Minute); got != time.Minute {
		t.Fatalf("garbage: %s", got)
	}
	if got := TTLDuration("90s", time.Minute); got != 90*time.Second {
		t.Fatalf("90s: %s", got)
	}
}
