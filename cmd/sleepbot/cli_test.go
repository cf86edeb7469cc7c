package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sleepbot/internal/config"
	"sleepbot/internal/reminder"
)

func TestPrintWindows(t *testing.T) {
	sched := reminder.NewScheduler(config.Deadline{Hour: 22, Minute: 30}, time.UTC)
	var buf bytes.Buffer
	printWindows(&buf, sched, time.Date(2024, 5, 6, 22, 40, 0, 0, time.UTC), 2)

	out := buf.String()
	require.Contains(t, out, "deadline 22:30 (UTC), 2 recipient(s)")
	require.Contains(t, out, "now: 5 min interval, 10.0 min past deadline")
	for _, at := range []string{"22:15", "22:30", "22:35", "22:45", "22:55"} {
		require.Contains(t, out, at)
	}
	require.Contains(t, out, "SPAM MODE")
}

func TestCheckCommand(t *testing.T) {
	t.Setenv(config.TokenEnv, "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "telegram:\n  token: t\nbedtime:\n  deadline: \"23:00\"\n  timezone: UTC\nlogging: {}\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	a := newApp()
	var buf bytes.Buffer
	a.Writer = &buf
	require.NoError(t, a.Run([]string{"sleepbot", "check", "--config", path}))
	require.True(t, strings.HasPrefix(buf.String(), "deadline 23:00 (UTC), 0 recipient(s)"))
}

func TestCheckCommandRejectsBadConfig(t *testing.T) {
	t.Setenv(config.TokenEnv, "")
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"telegram":{"token":"t"},"bedtime":{"deadline":"25:00"},"logging":{}}`), 0o600))

	a := newApp()
	a.Writer = &bytes.Buffer{}
	err := a.Run([]string{"sleepbot", "check", "--config", path})
	require.Error(t, err)
	require.Contains(t, err.Error(), "bedtime.deadline")
}

func TestExecuteReportsFatalOnStderr(t *testing.T) {
	t.Setenv(config.TokenEnv, "")
	var stderr bytes.Buffer
	code := execute([]string{"sleepbot", "check", "--config", filepath.Join(t.TempDir(), "missing.json")}, &stderr)
	require.Equal(t, 1, code)
	require.True(t, strings.HasPrefix(stderr.String(), "fatal: "))
}
