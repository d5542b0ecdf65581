package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
server:
  port: "9000"
dependencies:
  postgres_url: postgres://file
  kafka_brokers: [k1:9092, k2:9092]
auth:
  token_ttl: 2h
features:
  mock_data: true
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("HTTP_PORT", "7000")
	t.Setenv("APPROVAL_TOKEN_TTL", "1h")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPPort != "7000" {
		t.Fatalf("env should override file port, got %q", cfg.HTTPPort)
	}
	if cfg.DatabaseURL != "postgres://file" {
		t.Fatalf("unexpected database url %q", cfg.DatabaseURL)
	}
	if cfg.JWTTTL != 2*time.Hour {
		t.Fatalf("unexpected ttl %v", cfg.JWTTTL)
	}
	if cfg.ApprovalTokenTTL != time.Hour {
		t.Fatalf("unexpected approval ttl %v", cfg.ApprovalTokenTTL)
	}
	if len(cfg.KafkaBrokers) != 2 {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if !cfg.MockEnabled() {
		t.Fatalf("mock data should be enabled from file")
	}
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error without JWT_SECRET")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("JWT_SECRET", "x")
	t.Setenv("JWT_EXPIRES_IN", "soon")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected duration parse error")
	}
}
