package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"secure-voting/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("failed to load defaults: %v", err)
	}
	if cfg.Protocol.PrimaryKeyTTL != 5*time.Minute || cfg.Protocol.ConfirmationKeyTTL != 5*time.Minute {
		t.Fatalf("unexpected key TTLs %+v", cfg.Protocol)
	}
	if cfg.Protocol.RateLimitMax != 5 || cfg.Protocol.RateLimitWindow != 15*time.Minute {
		t.Fatalf("unexpected rate limit %+v", cfg.Protocol)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Ledger.Difficulty != 2 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Protocol.AllowKeyRedisplay {
		t.Fatalf("key redisplay must be off unless configured")
	}
	if cfg.Server.TrustedProxies != nil {
		t.Fatalf("no proxy should be trusted by default, got %v", cfg.Server.TrustedProxies)
	}
}

func TestDevelopmentConfig(t *testing.T) {
	cfg, err := config.Load(filepath.Join("..", "configs", "development.yaml"))
	if err != nil {
		t.Fatalf("failed to load development config: %v", err)
	}
	if !cfg.Protocol.AllowKeyRedisplay {
		t.Fatalf("development config should enable key redisplay")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	path := writeConfig(t, `
server:
  port: "9090"
database:
  driver: postgres
  host: db.internal
protocol:
  primary_key_ttl: 10m
  rate_limit_max: 3
ledger:
  difficulty: 4
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port override, got %s", cfg.Server.Port)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.Host != "db.internal" {
		t.Fatalf("unexpected database config %+v", cfg.Database)
	}
	if cfg.Protocol.PrimaryKeyTTL != 10*time.Minute || cfg.Protocol.RateLimitMax != 3 {
		t.Fatalf("unexpected protocol config %+v", cfg.Protocol)
	}
	if cfg.Protocol.ConfirmationKeyTTL != 5*time.Minute {
		t.Fatalf("unset fields should keep their defaults")
	}
	if cfg.Ledger.Difficulty != 4 {
		t.Fatalf("unexpected difficulty %d", cfg.Ledger.Difficulty)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := map[string]string{
		"driver":     "database:\n  driver: mysql\n",
		"ttl":        "protocol:\n  primary_key_ttl: 0s\n",
		"difficulty": "ledger:\n  difficulty: 17\n",
		"queue":      "ledger:\n  queue_size: 0\n",
		"proxy":      "server:\n  trusted_proxies: [\"not-an-ip\"]\n",
		"yaml":       "server: [",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := config.Load(writeConfig(t, content)); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}

func TestPortFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "7070")

	cfg, err := config.Load(writeConfig(t, "server:\n  port: \"9090\"\n"))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Fatalf("expected PORT to win, got %s", cfg.Server.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}
