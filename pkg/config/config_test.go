package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("CYCLE_INTERVAL", "")
	t.Setenv("BINANCE_API_KEY", "")
	t.Setenv("BINANCE_SECRET_KEY", "")
	t.Setenv("BINANCE_API_SECRET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.CycleInterval != 0 {
		t.Errorf("CycleInterval = %v", cfg.CycleInterval)
	}
	if cfg.HasCredentials() {
		t.Error("no credentials expected")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BINANCE_API_KEY", "key")
	t.Setenv("BINANCE_SECRET_KEY", "secret")
	t.Setenv("CYCLE_INTERVAL", "90")
	t.Setenv("LOG_FORMAT", "TEXT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.HasCredentials() {
		t.Error("credentials expected")
	}
	if cfg.CycleInterval != 90*time.Second {
		t.Errorf("CycleInterval = %v", cfg.CycleInterval)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q", cfg.LogFormat)
	}

	t.Setenv("CYCLE_INTERVAL", "15m")
	cfg, _ = Load()
	if cfg.CycleInterval != 15*time.Minute {
		t.Errorf("CycleInterval = %v", cfg.CycleInterval)
	}
}
