package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ODINBOOK_CONFIG", "")
	t.Setenv("ODINBOOK_STORE", "memory")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.AppPort != 8080 {
		t.Fatalf("expected default port got %d", cfg.AppPort)
	}
	if cfg.Auth.TokenTTL != 5*time.Minute {
		t.Fatalf("expected default token ttl got %v", cfg.Auth.TokenTTL)
	}
	if cfg.Auth.BcryptCost != 10 {
		t.Fatalf("expected default bcrypt cost got %d", cfg.Auth.BcryptCost)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "odinbook.yaml")
	contents := []byte(`
port: 9090
store: postgres
auth:
  jwtSecret: from-file
  tokenTtl: 30m
objectStore:
  bucket: photos
`)
	if err := os.WriteFile(path, contents, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("ODINBOOK_STORE", "")
	t.Setenv("ODINBOOK_JWT_SECRET", "")
	t.Setenv("ODINBOOK_PORT", "7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.AppPort != 7070 {
		t.Fatalf("expected env to override file port got %d", cfg.AppPort)
	}
	if cfg.StoreDriver != DriverPostgres {
		t.Fatalf("expected postgres driver got %q", cfg.StoreDriver)
	}
	if cfg.Auth.JWTSecret != "from-file" {
		t.Fatalf("expected secret from file got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Auth.TokenTTL != 30*time.Minute {
		t.Fatalf("expected ttl from file got %v", cfg.Auth.TokenTTL)
	}
	if cfg.ObjectStore.Bucket != "photos" {
		t.Fatalf("expected bucket from file got %q", cfg.ObjectStore.Bucket)
	}
	if cfg.ObjectStore.Region != "us-east-1" {
		t.Fatalf("expected default region to survive partial file got %q", cfg.ObjectStore.Region)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("ODINBOOK_CONFIG", "")
	t.Setenv("ODINBOOK_STORE", "mongo")
	t.Setenv("ODINBOOK_JWT_SECRET", "")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error without jwt secret")
	}

	t.Setenv("ODINBOOK_JWT_SECRET", "s3cret")
	if _, err := Load(""); err != nil {
		t.Fatalf("unexpected error with secret: %v", err)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("ODINBOOK_CONFIG", "")
	t.Setenv("ODINBOOK_STORE", "redis")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestGetDurationFallback(t *testing.T) {
	t.Setenv("ODINBOOK_TEST_DURATION", "not-a-duration")
	if got := getDuration("ODINBOOK_TEST_DURATION", time.Second); got != time.Second {
		t.Fatalf("expected fallback got %v", got)
	}
}
