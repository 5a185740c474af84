package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mesh.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("missing config must not be an error: %v", err)
	}
	if cfg.ServiceType != "_meshkit._tcp" {
		t.Errorf("ServiceType = %q", cfg.ServiceType)
	}
	if cfg.BroadcastInterval.Duration() != 5*time.Second {
		t.Errorf("BroadcastInterval = %v", cfg.BroadcastInterval.Duration())
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RegistryTTL.Duration() != 30*time.Second {
		t.Errorf("RegistryTTL = %v", cfg.RegistryTTL.Duration())
	}
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
service_type = "_tournament._tcp"
broadcast_interval = "2s"
registry_ttl = "1m"
prefer_network = true
log_level = "DEBUG"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServiceType != "_tournament._tcp" {
		t.Errorf("ServiceType = %q", cfg.ServiceType)
	}
	if cfg.BroadcastInterval.Duration() != 2*time.Second {
		t.Errorf("BroadcastInterval = %v", cfg.BroadcastInterval.Duration())
	}
	if cfg.RegistryTTL.Duration() != time.Minute {
		t.Errorf("RegistryTTL = %v", cfg.RegistryTTL.Duration())
	}
	if !cfg.PreferNetwork {
		t.Error("PreferNetwork should be set")
	}
	// Untouched fields keep their defaults
	if cfg.CallTimeout.Duration() != 5*time.Second {
		t.Errorf("CallTimeout = %v", cfg.CallTimeout.Duration())
	}
}

func TestLoad_Malformed(t *testing.T) {
	path := writeConfig(t, `service_type = [broken`)
	if _, err := Load(path); err == nil {
		t.Error("malformed TOML should be an error")
	}
}

func TestValidate(t *testing.T) {
	bad := Default()
	bad.LogLevel = "LOUD"
	if bad.Validate() == nil {
		t.Error("bad log level should fail validation")
	}

	bad = Default()
	bad.ServiceType = ""
	if bad.Validate() == nil {
		t.Error("empty service type should fail validation")
	}

	if Default().Validate() != nil {
		t.Error("defaults must validate")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	path := writeConfig(t, `broadcast_interval = "0s"`)
	if _, err := Load(path); err == nil {
		t.Error("zero broadcast interval should fail validation")
	}
}
