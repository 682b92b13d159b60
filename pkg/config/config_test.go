package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Success(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.App.Env != "dev" {
		t.Fatalf("expected App.Env to be dev, got %q", cfg.App.Env)
	}
	if cfg.App.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.App.Port)
	}
	if cfg.Checkout.MinPostalLength != 5 {
		t.Fatalf("expected min postal length 5, got %d", cfg.Checkout.MinPostalLength)
	}
	if cfg.Checkout.TotalDebounce != 500*time.Millisecond {
		t.Fatalf("expected 500ms debounce, got %v", cfg.Checkout.TotalDebounce)
	}
	if cfg.Checkout.MessageMaxLen != 200 || cfg.Checkout.InstructionsMaxLen != 100 {
		t.Fatalf("unexpected truncation limits %d/%d", cfg.Checkout.MessageMaxLen, cfg.Checkout.InstructionsMaxLen)
	}
	if cfg.Session.Normalized() != SessionBackendSQL {
		t.Fatalf("expected sql session backend by default, got %q", cfg.Session.Backend)
	}
	if cfg.Florist.BaseURL != "https://www.floristone.com/api" {
		t.Fatalf("unexpected upstream base url %q", cfg.Florist.BaseURL)
	}
	if len(cfg.Storefront.AllowedOrigins) != 2 {
		t.Fatalf("expected two default origins, got %v", cfg.Storefront.AllowedOrigins)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setMinimalEnv(t)
	if err := os.Unsetenv(EnvAppEnv); err != nil {
		t.Fatalf("failed to unset %s: %v", EnvAppEnv, err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected missing required env to return an error")
	}
}

func TestLoad_RedisBackendNeedsEndpoint(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvSessionBackend, "redis")

	if _, err := Load(); err == nil {
		t.Fatal("expected redis backend without endpoint to fail")
	}

	t.Setenv(EnvRedisURL, "redis://localhost:6379/0")
	if _, err := Load(); err != nil {
		t.Fatalf("expected redis backend with url to load, got %v", err)
	}
}

func TestLoad_UnsupportedDriver(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvDBDriver, "mysql")

	if _, err := Load(); err == nil {
		t.Fatal("expected unsupported driver to fail")
	}
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv(EnvAppEnv, "dev")
	t.Setenv(EnvSessionBackend, "sql")
	t.Setenv(EnvDBDriver, "sqlite")
	t.Setenv(EnvRedisURL, "")
	t.Setenv(EnvRedisAddr, "")
}

func TestAppConfigEnvHelpers(t *testing.T) {
	devConfig := AppConfig{Env: "DEV"}
	if !devConfig.IsDev() {
		t.Fatalf("expected IsDev true for %q", devConfig.Env)
	}
	if devConfig.IsProd() {
		t.Fatalf("expected IsProd false for %q", devConfig.Env)
	}

	prodConfig := AppConfig{Env: "prod"}
	if !prodConfig.IsProd() {
		t.Fatalf("expected IsProd true for %q", prodConfig.Env)
	}
}

func TestFloristValidate(t *testing.T) {
	if err := (FloristConfig{}).Validate(); err == nil {
		t.Fatal("expected missing credentials error")
	}
	if err := (FloristConfig{APIKey: "key", Password: "pw"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMasked(t *testing.T) {
	if got := Masked(""); got != "NOT SET" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Masked("abcdef"); got != "Set (abc...)" {
		t.Fatalf("unexpected %q", got)
	}
}
