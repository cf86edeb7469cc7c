package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"sleepbot/internal/config"
	"sleepbot/internal/delivery"
	"sleepbot/internal/health"
	"sleepbot/internal/storage"
	logx "sleepbot/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Chat: logx.ChatConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

// logChatTarget parses telegram.group_log; ok is false when unset or invalid.
func logChatTarget(cfg *config.Config) (int64, bool) {
	raw := strings.TrimSpace(cfg.Telegram.GroupLog)
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "file":
		return storage.Config{Driver: driver, Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapDeliveryConfig(cfg *config.Config) (delivery.ChatConfig, error) {
	timeout, err := config.ParseDurationField("delivery.send_timeout", cfg.Delivery.SendTimeout)
	if err != nil {
		return delivery.ChatConfig{}, err
	}
	return delivery.ChatConfig{RatePerSec: cfg.Delivery.RatePerSec, SendTimeout: timeout}, nil
}

func mapDestination(cfg *config.Config) delivery.Destination {
	b := cfg.Bedtime.Broadcast
	if b == nil {
		return delivery.Destination{}
	}
	return delivery.Destination{
		GroupID:   strings.TrimSpace(b.GroupID),
		ChannelID: strings.TrimSpace(b.ChannelID),
	}
}

func mapHealthConfig(cfg *config.Config) health.Config {
	return health.Config{Enabled: cfg.Health.HealthEnabled(), Addr: cfg.Health.Addr}
}
