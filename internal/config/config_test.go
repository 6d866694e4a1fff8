package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/timmy/timesheet/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Jobs.Timeout != 60*time.Second {
		t.Errorf("expected 60s job timeout, got %v", cfg.Jobs.Timeout)
	}
	if cfg.Jobs.Retention != time.Hour {
		t.Errorf("expected 1h retention, got %v", cfg.Jobs.Retention)
	}
	if cfg.Jobs.SweepInterval != 5*time.Minute {
		t.Errorf("expected 5m sweep interval, got %v", cfg.Jobs.SweepInterval)
	}
	if cfg.Signature.MaxAttempts != 3 || cfg.Signature.RetryDelay != 2*time.Second {
		t.Errorf("unexpected signature retry policy: %+v", cfg.Signature)
	}
	if cfg.Auth.RequiredRole != "supervisor" {
		t.Errorf("expected supervisor role, got %q", cfg.Auth.RequiredRole)
	}
	if cfg.Confirmation.AtomicBatch {
		t.Error("expected partial-commit batches by default")
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
jobs:
  timeout: 5s
storage:
  type: memory
confirmation:
  atomic_batch: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Jobs.Timeout != 5*time.Second {
		t.Errorf("expected 5s, got %v", cfg.Jobs.Timeout)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("expected memory storage, got %q", cfg.Storage.Type)
	}
	if !cfg.Confirmation.AtomicBatch {
		t.Error("expected atomic batches")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Auth:      AuthConfig{JWTSecret: "secret"},
			Storage:   StorageConfig{Type: "s3", Endpoint: "s3.amazonaws.com", Bucket: "b", PublicURL: "https://cdn.example.com"},
			Jobs:      JobsConfig{Timeout: time.Minute},
			Signature: SignatureConfig{MaxAttempts: 3},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing secret", func(c *Config) { c.Auth.JWTSecret = "" }, true},
		{"missing bucket", func(c *Config) { c.Storage.Bucket = "" }, true},
		{"missing public url", func(c *Config) { c.Storage.PublicURL = "" }, true},
		{"minio without public url", func(c *Config) { c.Storage.Type = "minio"; c.Storage.PublicURL = "" }, false},
		{"memory storage", func(c *Config) { c.Storage = StorageConfig{Type: "memory"} }, false},
		{"zero attempts", func(c *Config) { c.Signature.MaxAttempts = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !domain.IsKind(err, domain.KindDependencyConfig) {
				t.Errorf("expected dependency_config error, got %v", err)
			}
		})
	}
}
