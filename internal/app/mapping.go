package app

import (
	"strings"
	"time"

	"schnitzelbot/internal/checkin"
	"schnitzelbot/internal/config"
	"schnitzelbot/internal/dispatch"
	"schnitzelbot/internal/schedule"
	"schnitzelbot/internal/source"
	"schnitzelbot/internal/storage"
	logx "schnitzelbot/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File: logx.FileConfig{
			Enabled: l.File.Enabled,
			Path:    l.File.Path,
		},
		Alert: logx.AlertConfig{
			Enabled:    l.Alert.Enabled,
			MinLevel:   l.Alert.MinLevel,
			RatePerSec: l.Alert.RatePerSec,
		},
	}
}

func mapSourceConfig(cfg *config.Config) (source.Config, error) {
	timeout, err := config.ParseDurationOrDefault("menu.fetch_timeout", cfg.Menu.FetchTimeout, config.DefaultFetchTimeout)
	if err != nil {
		return source.Config{}, err
	}
	maxBytes := cfg.Menu.MaxBytes
	if maxBytes <= 0 {
		maxBytes = config.DefaultMaxBytes
	}
	return source.Config{
		URL:      strings.TrimSpace(cfg.Menu.URL),
		Timeout:  timeout,
		MaxBytes: maxBytes,
	}, nil
}

func mapDispatchConfig(cfg *config.Config) (dispatch.Config, error) {
	d, err := config.ParseDurationField("dispatch.send_timeout", cfg.Dispatch.SendTimeout)
	if err != nil {
		return dispatch.Config{}, err
	}
	return dispatch.Config{SendTimeout: d}, nil
}

func mapScheduleConfig(cfg *config.Config) (schedule.Config, error) {
	timeout, err := config.ParseDurationField("schedule.timeout", cfg.Schedule.Timeout)
	if err != nil {
		return schedule.Config{}, err
	}
	loc, err := config.LoadLocation(cfg.Menu.Timezone)
	if err != nil {
		return schedule.Config{}, err
	}
	spec := strings.TrimSpace(cfg.Schedule.Spec)
	if spec == "" {
		spec = config.DefaultSchedule
	}
	return schedule.Config{
		Enabled:  cfg.Schedule.Enabled,
		Spec:     spec,
		Timeout:  timeout,
		Location: loc,
	}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	s := cfg.Storage
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", s.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      strings.TrimSpace(s.Driver),
		Path:        strings.TrimSpace(s.Path),
		DSN:         strings.TrimSpace(s.DSN),
		BusyTimeout: busy,
		SecretKey:   s.SecretKey,
	}, nil
}

func mapCheckinConfig(cfg *config.Config) (checkin.Config, bool, error) {
	c := cfg.Checkin
	if !c.Enabled {
		return checkin.Config{}, false, nil
	}
	timeout, err := config.ParseDurationOrDefault("checkin.timeout", c.Timeout, config.DefaultCheckinWait)
	if err != nil {
		return checkin.Config{}, false, err
	}
	return checkin.Config{URL: strings.TrimSpace(c.URL), Timeout: timeout}, true, nil
}
