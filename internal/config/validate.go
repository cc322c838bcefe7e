package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	// Embedded zone database for images without /usr/share/zoneinfo.
	_ "time/tzdata"
)

const (
	DefaultTimezone     = "Europe/Berlin"
	DefaultFetchTimeout = 30 * time.Second
	DefaultMaxBytes     = 20 << 20
	DefaultSchedule     = "0 9 * * 1-5"
	DefaultCheckinWait  = 10 * time.Second
)

// Validate checks values that cannot be caught by strict decoding.
// It does not mutate cfg.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	if u := strings.TrimSpace(cfg.Menu.URL); u != "" {
		if err := validateHTTPURL("menu.url", u); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := LoadLocation(cfg.Menu.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("menu.timezone: %w", err))
	}
	if cfg.Menu.MaxBytes < 0 {
		errs = append(errs, errors.New("menu.max_bytes must be >= 0"))
	}

	for path, raw := range map[string]string{
		"menu.fetch_timeout":    cfg.Menu.FetchTimeout,
		"schedule.timeout":      cfg.Schedule.Timeout,
		"dispatch.send_timeout": cfg.Dispatch.SendTimeout,
		"storage.busy_timeout":  cfg.Storage.BusyTimeout,
		"checkin.timeout":       cfg.Checkin.Timeout,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "memory":
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			errs = append(errs, errors.New("storage.path is required for driver "+cfg.Storage.Driver))
		}
	case "postgres", "postgresql", "pg":
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			errs = append(errs, errors.New("storage.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}

	if cfg.Checkin.Enabled {
		if err := validateHTTPURL("checkin.url", strings.TrimSpace(cfg.Checkin.URL)); err != nil {
			errs = append(errs, err)
		}
	}

	if a := cfg.Logging.Alert; a.Enabled {
		if strings.TrimSpace(a.Credential) == "" {
			errs = append(errs, errors.New("logging.alert.credential is required when alerts are enabled"))
		}
		if a.RatePerSec < 0 {
			errs = append(errs, errors.New("logging.alert.rate_per_sec must be >= 0"))
		}
	}
	return errors.Join(errs...)
}

// LoadLocation resolves an IANA zone name; empty means DefaultTimezone.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultTimezone
	}
	return time.LoadLocation(name)
}

func validateHTTPURL(path, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: want http(s) URL, got %q", path, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: missing host", path)
	}
	return nil
}
