package config

import (
	"reflect"
	"strings"

	logx "sleepbot/pkg/logx"
)

// Sections whose changes only take effect after a restart. The deadline and
// recipient set are immutable for the life of the process.
var restartSections = map[string]bool{
	"telegram": true,
	"bedtime":  true,
	"delivery": true,
	"health":   true,
	"storage":  true,
}

// SummarizeConfigChange returns the changed sections and safe structured
// attrs for logging (never includes the token).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 12)

	if oldCfg.Telegram.Token != newCfg.Telegram.Token ||
		strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) ||
		!reflect.DeepEqual(oldCfg.Telegram.OwnerUserIDs, newCfg.Telegram.OwnerUserIDs) ||
		strings.TrimSpace(oldCfg.Telegram.GroupLog) != strings.TrimSpace(newCfg.Telegram.GroupLog) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Int("telegram.owner_count", len(newCfg.Telegram.OwnerUserIDs)),
			logx.Bool("telegram.group_log_set", strings.TrimSpace(newCfg.Telegram.GroupLog) != ""),
		)
	}

	if !reflect.DeepEqual(oldCfg.Bedtime, newCfg.Bedtime) {
		changed = append(changed, "bedtime")
		attrs = append(attrs,
			logx.String("bedtime.deadline", newCfg.Bedtime.Deadline),
			logx.Int("bedtime.recipients", len(newCfg.Bedtime.RecipientIDs)),
		)
	}

	if oldCfg.Delivery != newCfg.Delivery {
		changed = append(changed, "delivery")
	}
	if !reflect.DeepEqual(oldCfg.Health, newCfg.Health) {
		changed = append(changed, "health")
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
	}
	return changed, attrs
}

// RestartRequired filters sections that cannot be applied live.
func RestartRequired(sections []string) []string {
	var out []string
	for _, s := range sections {
		if restartSections[s] {
			out = append(out, s)
		}
	}
	return out
}
