package config

import (
	"strings"

	logx "homeworkbot/pkg/logx"
)

// SummarizeChange returns the changed top-level sections and safe log fields
// describing the new values. Nothing in Config is secret, but paths and levels
// are all an operator needs.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	fields := make([]logx.Field, 0, 12)

	if oldCfg.API != newCfg.API {
		changed = append(changed, "api")
		fields = append(fields,
			logx.String("api.endpoint", newCfg.API.Endpoint),
			logx.String("api.timeout", newCfg.API.Timeout),
		)
	}
	if oldCfg.Poll != newCfg.Poll {
		changed = append(changed, "poll")
		fields = append(fields, logx.String("poll.every", strings.TrimSpace(newCfg.Poll.Every)))
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		fields = append(fields,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}
	if oldCfg.Notifier != newCfg.Notifier {
		changed = append(changed, "notifier")
		fields = append(fields,
			logx.Int("notifier.rate_per_sec", newCfg.Notifier.RatePerSec),
			logx.Int("notifier.retry_max", newCfg.Notifier.RetryMax),
		)
	}
	if oldCfg.Storage != newCfg.Storage {
		// storage is opened once at startup
		changed = append(changed, "storage(restart required)")
		fields = append(fields, logx.String("storage.driver", newCfg.Storage.Driver))
	}
	return changed, fields
}
