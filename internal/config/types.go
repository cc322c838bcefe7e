package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// String values may reference environment variables as ${NAME}.
type Config struct {
	Menu     MenuConfig     `json:"menu"`
	Schedule ScheduleConfig `json:"schedule"`
	Dispatch DispatchConfig `json:"dispatch"`
	Storage  StorageConfig  `json:"storage"`
	Checkin  CheckinConfig  `json:"checkin"`
	Logging  LoggingConfig  `json:"logging"`
}

// MenuConfig controls where and how the weekly menu is fetched.
//
// Defaults (when fields are omitted/zero):
//   - url: the canteen's published PDF
//   - timezone: "Europe/Berlin"
//   - fetch_timeout: "30s"
//   - max_bytes: 20 MiB
type MenuConfig struct {
	URL          string `json:"url,omitempty"`
	Timezone     string `json:"timezone,omitempty"`
	FetchTimeout string `json:"fetch_timeout,omitempty"`
	MaxBytes     int64  `json:"max_bytes,omitempty"`
}

// ScheduleConfig controls the daemon trigger.
//
// Spec accepts a cron expression (optional seconds field, descriptors like
// "@daily"), an interval ("55m", "every:2h", "01:30") or a daily "at:HH:MM".
type ScheduleConfig struct {
	Enabled bool   `json:"enabled"`
	Spec    string `json:"spec,omitempty"`
	// Timeout bounds one whole run. "0s" disables it.
	Timeout string `json:"timeout,omitempty"`
}

type DispatchConfig struct {
	// SendTimeout bounds each subscriber send independently. "0s" disables it.
	SendTimeout string `json:"send_timeout,omitempty"`
}

// StorageConfig selects the subscriber store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/schnitzelbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"`          // postgres only (do not log)
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
	SecretKey   string `json:"secret_key,omitempty"`   // seals credentials at rest (do not log)
}

// CheckinConfig controls the cron monitor pings sent around each run.
type CheckinConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url,omitempty"`
	Timeout string `json:"timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string       `json:"level"`
	Console bool         `json:"console"`
	File    LoggingFile  `json:"file"`
	Alert   LoggingAlert `json:"alert"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingAlert forwards error-level log lines to an operator destination
// through the same transports used for subscribers.
type LoggingAlert struct {
	Enabled     bool   `json:"enabled"`
	Provider    string `json:"provider,omitempty"`
	Credential  string `json:"credential,omitempty"` // do not log
	Destination string `json:"destination,omitempty"`
	MinLevel    string `json:"min_level,omitempty"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
}
