package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Bedtime  BedtimeConfig  `json:"bedtime"`
	Delivery DeliveryConfig `json:"delivery,omitempty"`
	Health   HealthConfig   `json:"health,omitempty"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  *StorageConfig `json:"storage,omitempty"`
}

type TelegramConfig struct {
	// Token authenticates the bot session. SLEEPBOT_TOKEN overrides it.
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	GroupLog     string  `json:"group_log"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

// BedtimeConfig describes the single tracked deadline and who gets reminded.
//
// Example:
//
//	"bedtime": {
//	  "deadline": "22:30",
//	  "timezone": "Europe/Berlin",
//	  "recipient_ids": ["123456789", 987654321],
//	  "broadcast": { "group_id": "-1001234567890", "channel_id": "42" }
//	}
type BedtimeConfig struct {
	// Deadline is a daily "HH:MM" time of day.
	Deadline string `json:"deadline"`
	// Timezone is an IANA name; empty means the process local zone.
	Timezone     string `json:"timezone,omitempty"`
	RecipientIDs IDList `json:"recipient_ids"`
	// TickInterval is a Go duration string; default "30s", max "60s".
	TickInterval string           `json:"tick_interval,omitempty"`
	Broadcast    *BroadcastConfig `json:"broadcast,omitempty"`
}

// BroadcastConfig is the shared channel where notified recipients are mentioned together.
type BroadcastConfig struct {
	GroupID   string `json:"group_id"`
	ChannelID string `json:"channel_id,omitempty"`
}

// DeliveryConfig paces outgoing reminder sends.
//
// Defaults (when fields are omitted/zero):
//   - rate_per_sec: 20
//   - send_timeout: "10s"
type DeliveryConfig struct {
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
	SendTimeout string `json:"send_timeout,omitempty"`
}

// HealthConfig controls the keep-alive HTTP endpoint.
//
// Enabled is a pointer so an omitted section still serves (default true).
// The PORT environment variable overrides the port part of Addr.
type HealthConfig struct {
	Enabled *bool  `json:"enabled,omitempty"`
	Addr    string `json:"addr,omitempty"` // default ":10000"
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig controls the optional audit store.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./data/sleepbot" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// IDList is an ordered list of opaque recipient ids.
// It accepts JSON strings and numbers so platform ids can be pasted either way.
type IDList []string

func (l *IDList) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	out := make(IDList, 0, len(raw))
	for i, v := range raw {
		var id string
		switch x := v.(type) {
		case string:
			id = strings.TrimSpace(x)
		case json.Number:
			id = x.String()
		default:
			return fmt.Errorf("recipient_ids[%d]: expected string or number, got %T", i, v)
		}
		if id == "" {
			return fmt.Errorf("recipient_ids[%d]: empty id", i)
		}
		out = append(out, id)
	}
	*l = out
	return nil
}
