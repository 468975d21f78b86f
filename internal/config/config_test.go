package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type mapEnv map[string]string

func (m mapEnv) Getenv(key string) string { return m[key] }

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{"AUTH_CODE": "x"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 3000 {
		t.Fatalf("expected default port 3000, got %d", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("expected default gin mode release, got %q", cfg.GinMode)
	}
	if cfg.ListenAddr() != "0.0.0.0:3000" {
		t.Fatalf("unexpected listen addr %q", cfg.ListenAddr())
	}
	if cfg.DatabaseDriver != "sqlite" || cfg.DatabasePath != "./data/health.db" {
		t.Fatalf("unexpected database defaults: %q %q", cfg.DatabaseDriver, cfg.DatabasePath)
	}
	if cfg.TokenExpiry != 24*time.Hour {
		t.Fatalf("unexpected token expiry %v", cfg.TokenExpiry)
	}
	if cfg.LoginRateLimit != 10 {
		t.Fatalf("expected login limit 10, got %d", cfg.LoginRateLimit)
	}
	if !cfg.TokenSecretGenerated || len(cfg.TokenSecret) != 64 {
		t.Fatalf("expected generated token secret, got %q", cfg.TokenSecret)
	}
}

func TestLoadConfigFromEnv_MissingCode(t *testing.T) {
	_, err := LoadConfigFromEnv(mapEnv{})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadConfigFromEnv_HashIsEnough(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{"AUTH_CODE_HASH": "$2a$10$abc"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.AuthCode != "" || cfg.AuthCodeHash == "" {
		t.Fatalf("unexpected code config: %+v", cfg)
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{
		"AUTH_CODE":            "x",
		"PORT":                 "1234",
		"ADDRESS":              "127.0.0.1",
		"TOKEN_SECRET":         "s",
		"TOKEN_EXPIRY_SECONDS": "60",
		"DATABASE_DRIVER":      "Memory",
		"STATE_FILE":           "/tmp/state.json",
		"USERS":                " Alice, ,Bob ",
		"LOGIN_RATE_LIMIT":     "0",
		"STATIC_DIR":           "web",
		"LOG_LEVEL":            "debug",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.ListenAddr() != "127.0.0.1:1234" {
		t.Fatalf("unexpected listen addr %q", cfg.ListenAddr())
	}
	if cfg.TokenSecret != "s" || cfg.TokenSecretGenerated {
		t.Fatalf("expected configured secret")
	}
	if cfg.TokenExpiry != time.Minute {
		t.Fatalf("expected 1m expiry, got %v", cfg.TokenExpiry)
	}
	if cfg.DatabaseDriver != "memory" || cfg.StateFile != "/tmp/state.json" {
		t.Fatalf("unexpected database config %+v", cfg)
	}
	if len(cfg.Users) != 2 || cfg.Users[0] != "Alice" || cfg.Users[1] != "Bob" {
		t.Fatalf("unexpected users %v", cfg.Users)
	}
	if cfg.LoginRateLimit != 0 || cfg.StaticDir != "web" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected misc config %+v", cfg)
	}
}

func TestLoadConfigFromEnv_Invalid(t *testing.T) {
	cases := map[string]mapEnv{
		"port":          {"AUTH_CODE": "x", "PORT": "70000"},
		"expiry":        {"AUTH_CODE": "x", "TOKEN_EXPIRY_SECONDS": "-1"},
		"driver":        {"AUTH_CODE": "x", "DATABASE_DRIVER": "mysql"},
		"postgres dsn":  {"AUTH_CODE": "x", "DATABASE_DRIVER": "postgres"},
		"rate limit":    {"AUTH_CODE": "x", "LOGIN_RATE_LIMIT": "many"},
		"half tls pair": {"AUTH_CODE": "x", "TLS_CERT_FILE": "cert.pem"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadConfigFromEnv(env); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadConfig_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("AUTH_CODE=from-file\nPORT=4555\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("AUTH_CODE", "")
	t.Setenv("PORT", "")
	os.Unsetenv("AUTH_CODE")
	os.Unsetenv("PORT")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.AuthCode != "from-file" || cfg.Port != 4555 {
		t.Fatalf("expected values from env file, got %+v", cfg)
	}
}

func TestLoadConfig_MissingEnvFileIsFine(t *testing.T) {
	t.Setenv("AUTH_CODE", "x")
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
}
