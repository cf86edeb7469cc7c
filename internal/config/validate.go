package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	logx "sleepbot/pkg/logx"
)

// TokenEnv names the environment variable that overrides telegram.token.
const TokenEnv = "SLEEPBOT_TOKEN"

const (
	DefaultTickInterval = 30 * time.Second
	MaxTickInterval     = 60 * time.Second
)

// ErrMissingToken means no bot credential was configured. Nothing can ever be
// delivered without it, so startup must stop.
var ErrMissingToken = errors.New("telegram.token is empty (set it in config or " + TokenEnv + ")")

// applyEnv overlays environment-provided secrets onto cfg.
func applyEnv(cfg *Config) {
	if tok := strings.TrimSpace(os.Getenv(TokenEnv)); tok != "" {
		cfg.Telegram.Token = tok
	}
}

// Validate checks everything that would make the process unable to schedule.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return ErrMissingToken
	}
	if _, err := ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}

	if _, err := ParseDeadline(cfg.Bedtime.Deadline); err != nil {
		return fmt.Errorf("bedtime.deadline: %w", err)
	}
	if _, err := cfg.Bedtime.Location(); err != nil {
		return err
	}
	if _, err := cfg.Bedtime.Tick(); err != nil {
		return err
	}
	if b := cfg.Bedtime.Broadcast; b != nil && strings.TrimSpace(b.GroupID) == "" {
		return errors.New("bedtime.broadcast.group_id is required when broadcast is set")
	}

	if cfg.Delivery.RatePerSec < 0 {
		return errors.New("delivery.rate_per_sec must be >= 0")
	}
	if _, err := ParseDurationField("delivery.send_timeout", cfg.Delivery.SendTimeout); err != nil {
		return err
	}

	for path, lvl := range map[string]string{
		"logging.level":              cfg.Logging.Level,
		"logging.telegram.min_level": cfg.Logging.Telegram.MinLevel,
	} {
		if strings.TrimSpace(lvl) == "" {
			continue
		}
		if _, ok := logx.ParseLevel(lvl); !ok {
			return fmt.Errorf("%s: unknown level %q", path, lvl)
		}
	}

	if st := cfg.Storage; st != nil {
		switch strings.ToLower(strings.TrimSpace(st.Driver)) {
		case "", "none":
		case "file", "sqlite", "sqlite3":
			if strings.TrimSpace(st.Path) == "" {
				return fmt.Errorf("storage.path is required for driver %q", st.Driver)
			}
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", st.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", st.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}

// Location resolves the configured timezone; empty means time.Local.
func (b BedtimeConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(b.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("bedtime.timezone: invalid %q: %w", tz, err)
	}
	return loc, nil
}

// Tick resolves the evaluation period.
func (b BedtimeConfig) Tick() (time.Duration, error) {
	return ParseDurationUpTo("bedtime.tick_interval", b.TickInterval, DefaultTickInterval, MaxTickInterval)
}

// HealthEnabled reports whether the keep-alive endpoint should run.
func (h HealthConfig) HealthEnabled() bool {
	return h.Enabled == nil || *h.Enabled
}
