package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const validJSON = `{
  "telegram": {"token": "abc", "owner_user_ids": [1]},
  "bedtime": {"deadline": "22:30", "timezone": "UTC", "recipient_ids": ["100", 200]},
  "logging": {"level": "info", "console": true}
}`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadJSON(t *testing.T) {
	t.Setenv(TokenEnv, "")
	m := NewConfigManager(writeConfig(t, "config.json", validJSON))
	cfg, err := m.Load()
	require.NoError(t, err)
	require.Equal(t, "abc", cfg.Telegram.Token)
	require.Equal(t, IDList{"100", "200"}, cfg.Bedtime.RecipientIDs)
	require.Same(t, cfg, m.Get())

	tick, err := cfg.Bedtime.Tick()
	require.NoError(t, err)
	require.Equal(t, DefaultTickInterval, tick)
	require.True(t, cfg.Health.HealthEnabled())
}

func TestLoadYAML(t *testing.T) {
	t.Setenv(TokenEnv, "")
	body := `
telegram:
  token: yaml-token
bedtime:
  deadline: "23:05"
  recipient_ids: [7, "8"]
  tick_interval: 15s
  broadcast:
    group_id: "-100123"
    channel_id: "9"
logging:
  level: debug
`
	cfg, err := NewConfigManager(writeConfig(t, "config.yaml", body)).Load()
	require.NoError(t, err)
	require.Equal(t, "yaml-token", cfg.Telegram.Token)
	require.Equal(t, IDList{"7", "8"}, cfg.Bedtime.RecipientIDs)
	require.NotNil(t, cfg.Bedtime.Broadcast)
	require.Equal(t, "-100123", cfg.Bedtime.Broadcast.GroupID)

	tick, err := cfg.Bedtime.Tick()
	require.NoError(t, err)
	require.Equal(t, 15*time.Second, tick)
}

func TestEnvTokenOverridesFile(t *testing.T) {
	t.Setenv(TokenEnv, "from-env")
	cfg, err := NewConfigManager(writeConfig(t, "config.json", validJSON)).Load()
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Telegram.Token)
}

func TestMissingTokenIsFatal(t *testing.T) {
	t.Setenv(TokenEnv, "")
	body := `{"telegram": {"token": ""}, "bedtime": {"deadline": "22:30"}, "logging": {}}`
	_, err := NewConfigManager(writeConfig(t, "config.json", body)).Load()
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestUnknownFieldRejected(t *testing.T) {
	t.Setenv(TokenEnv, "")
	body := `{"telegram": {"token": "x", "tokn": "y"}, "bedtime": {"deadline": "22:30"}, "logging": {}}`
	_, err := NewConfigManager(writeConfig(t, "config.json", body)).Parse()
	require.Error(t, err)
	require.Contains(t, err.Error(), "tokn")
}

func TestTrailingDataRejected(t *testing.T) {
	_, err := decode("config.json", []byte(validJSON+`{}`))
	require.Error(t, err)
}

func TestIDListRejectsBadEntries(t *testing.T) {
	var l IDList
	require.Error(t, l.UnmarshalJSON([]byte(`["ok", ""]`)))
	require.Error(t, l.UnmarshalJSON([]byte(`[true]`)))
	require.NoError(t, l.UnmarshalJSON([]byte(`[" 12 ", 34]`)))
	require.Equal(t, IDList{"12", "34"}, l)
}

func TestParseDeadline(t *testing.T) {
	cases := []struct {
		in      string
		want    Deadline
		wantErr bool
	}{
		{in: "22:30", want: Deadline{Hour: 22, Minute: 30}},
		{in: " 7:05 ", want: Deadline{Hour: 7, Minute: 5}},
		{in: "00:00", want: Deadline{}},
		{in: "23:59", want: Deadline{Hour: 23, Minute: 59}},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "1230", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseDeadline(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestDeadlineOnKeepsLocation(t *testing.T) {
	loc := time.FixedZone("X", 3*3600)
	now := time.Date(2024, 3, 9, 1, 2, 3, 0, loc)
	got := Deadline{Hour: 22, Minute: 30}.On(now)
	require.Equal(t, time.Date(2024, 3, 9, 22, 30, 0, 0, loc), got)
	require.Equal(t, "22:30", Deadline{Hour: 22, Minute: 30}.String())
}

func TestValidateRejects(t *testing.T) {
	base := func() *Config {
		return &Config{
			Telegram: TelegramConfig{Token: "t"},
			Bedtime:  BedtimeConfig{Deadline: "22:30"},
		}
	}
	cases := map[string]func(c *Config){
		"bad deadline":      func(c *Config) { c.Bedtime.Deadline = "25:00" },
		"bad timezone":      func(c *Config) { c.Bedtime.Timezone = "Mars/Olympus" },
		"tick too long":     func(c *Config) { c.Bedtime.TickInterval = "2m" },
		"broadcast no id":   func(c *Config) { c.Bedtime.Broadcast = &BroadcastConfig{} },
		"negative rate":     func(c *Config) { c.Delivery.RatePerSec = -1 },
		"bad send timeout":  func(c *Config) { c.Delivery.SendTimeout = "soon" },
		"bad log level":     func(c *Config) { c.Logging.Level = "loud" },
		"unknown driver":    func(c *Config) { c.Storage = &StorageConfig{Driver: "redis", Path: "x"} },
		"driver needs path": func(c *Config) { c.Storage = &StorageConfig{Driver: "sqlite"} },
	}
	require.NoError(t, Validate(base()))
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base()
			mutate(c)
			require.Error(t, Validate(c))
		})
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	oldCfg := &Config{Telegram: TelegramConfig{Token: "secret"}, Logging: LoggingConfig{Level: "info"}}
	newCfg := &Config{Telegram: TelegramConfig{Token: "secret"}, Logging: LoggingConfig{Level: "debug"}}

	sections, attrs := SummarizeConfigChange(oldCfg, newCfg)
	require.Equal(t, []string{"logging"}, sections)
	require.NotEmpty(t, attrs)
	require.Empty(t, RestartRequired(sections))

	newCfg.Bedtime.Deadline = "23:00"
	sections, _ = SummarizeConfigChange(oldCfg, newCfg)
	require.Equal(t, []string{"bedtime"}, RestartRequired(sections))
}

func TestParseDurationField(t *testing.T) {
	cases := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "", want: 0},
		{in: " 90s ", want: 90 * time.Second},
		{in: "2m", want: 2 * time.Minute},
		{in: "30", want: 30 * time.Second},
		{in: "-5s", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "soon", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseDurationField("delivery.send_timeout", tc.in)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidDuration)
				require.Contains(t, err.Error(), "delivery.send_timeout")
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestParseDurationUpTo(t *testing.T) {
	d, err := ParseDurationUpTo("bedtime.tick_interval", "", DefaultTickInterval, MaxTickInterval)
	require.NoError(t, err)
	require.Equal(t, DefaultTickInterval, d)

	d, err = ParseDurationUpTo("bedtime.tick_interval", "60", DefaultTickInterval, MaxTickInterval)
	require.NoError(t, err)
	require.Equal(t, MaxTickInterval, d)

	_, err = ParseDurationUpTo("bedtime.tick_interval", "61s", DefaultTickInterval, MaxTickInterval)
	require.ErrorIs(t, err, ErrInvalidDuration)
}
