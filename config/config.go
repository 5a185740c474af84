// Package config loads mesh settings from a TOML file. Every field has a
// working default; a missing config file means "run with defaults", which
// keeps the zero-configuration promise of LAN discovery.
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"

	meshErrors "github.com/vinayprograms/meshkit/errors"
)

// Mesh holds the tunables for one mesh process.
type Mesh struct {
	// ServiceType is the mDNS service type announced and browsed.
	ServiceType string `toml:"service_type"`

	// Domain is the mDNS domain.
	Domain string `toml:"domain"`

	// BroadcastInterval between announcement refresh cycles.
	BroadcastInterval duration `toml:"broadcast_interval"`

	// RegistryTTL is how long an unrefreshed announcement stays visible.
	RegistryTTL duration `toml:"registry_ttl"`

	// ProxyTTL is how long a resolved network proxy is trusted.
	ProxyTTL duration `toml:"proxy_ttl"`

	// CallTimeout bounds each remote ask/tell/do call.
	CallTimeout duration `toml:"call_timeout"`

	// CachePath is the cold-start cache file. Empty disables caching.
	CachePath string `toml:"cache_path"`

	// PreferNetwork makes the locator try network proxies before local
	// instances.
	PreferNetwork bool `toml:"prefer_network"`

	// LogLevel is one of DEBUG, INFO, WARN, ERROR.
	LogLevel string `toml:"log_level"`
}

// duration lets TOML carry values like "5s".
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

// Duration converts to time.Duration.
func (d duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns the configuration used when no file is present.
func Default() Mesh {
	return Mesh{
		ServiceType:       "_meshkit._tcp",
		Domain:            "local.",
		BroadcastInterval: duration(5 * time.Second),
		RegistryTTL:       duration(30 * time.Second),
		ProxyTTL:          duration(30 * time.Second),
		CallTimeout:       duration(5 * time.Second),
		CachePath:         "service_cache.json",
		LogLevel:          "INFO",
	}
}

// Load reads a TOML config file over the defaults. A missing file is not
// an error; a malformed one is.
func Load(path string) (Mesh, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, meshErrors.WrapWithCode(err, meshErrors.ErrCodeInvalidInput, "parsing config "+path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration is usable.
func (m Mesh) Validate() error {
	if m.ServiceType == "" {
		return meshErrors.InvalidInput("service_type is empty")
	}
	if m.BroadcastInterval.Duration() <= 0 {
		return meshErrors.InvalidInput("broadcast_interval must be positive")
	}
	if m.CallTimeout.Duration() <= 0 {
		return meshErrors.InvalidInput("call_timeout must be positive")
	}
	switch m.LogLevel {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return meshErrors.InvalidInput("log_level must be DEBUG, INFO, WARN or ERROR")
	}
	return nil
}
