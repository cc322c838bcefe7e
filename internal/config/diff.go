package config

import (
	"sort"
	"strings"

	logx "schnitzelbot/pkg/logx"
)

// SummarizeConfigChange returns the changed sections and safe structured attrs
// for logging. Credentials, DSNs and secret keys are reported only as "set" flags.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Menu != newCfg.Menu {
		changed = append(changed, "menu")
		attrs = append(attrs,
			logx.String("menu.url", strings.TrimSpace(newCfg.Menu.URL)),
			logx.String("menu.timezone", strings.TrimSpace(newCfg.Menu.Timezone)),
			logx.String("menu.fetch_timeout", strings.TrimSpace(newCfg.Menu.FetchTimeout)),
		)
	}

	if oldCfg.Schedule != newCfg.Schedule {
		changed = append(changed, "schedule")
		attrs = append(attrs,
			logx.Bool("schedule.enabled", newCfg.Schedule.Enabled),
			logx.String("schedule.spec", strings.TrimSpace(newCfg.Schedule.Spec)),
			logx.String("schedule.timeout", strings.TrimSpace(newCfg.Schedule.Timeout)),
		)
	}

	if oldCfg.Dispatch != newCfg.Dispatch {
		changed = append(changed, "dispatch")
		attrs = append(attrs, logx.String("dispatch.send_timeout", strings.TrimSpace(newCfg.Dispatch.SendTimeout)))
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newCfg.Storage.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(newCfg.Storage.Path) != ""),
			logx.Bool("storage.dsn_set", strings.TrimSpace(newCfg.Storage.DSN) != ""),
			logx.Bool("storage.sealed", strings.TrimSpace(newCfg.Storage.SecretKey) != ""),
		)
	}

	if oldCfg.Checkin != newCfg.Checkin {
		changed = append(changed, "checkin")
		attrs = append(attrs,
			logx.Bool("checkin.enabled", newCfg.Checkin.Enabled),
			logx.Bool("checkin.url_set", strings.TrimSpace(newCfg.Checkin.URL) != ""),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		a := newCfg.Logging.Alert
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.alert_enabled", a.Enabled),
			logx.String("logging.alert_provider", a.Provider),
			logx.Bool("logging.alert_credential_set", strings.TrimSpace(a.Credential) != ""),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

// RestartRequired reports sections that only take effect after a restart.
func RestartRequired(changed []string) []string {
	var out []string
	for _, s := range changed {
		if s == "storage" {
			out = append(out, s)
		}
	}
	return out
}
