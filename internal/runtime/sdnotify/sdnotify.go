// Package sdnotify reports readiness and liveness to systemd when the process
// runs as a Type=notify unit. Outside systemd every call is a no-op.
package sdnotify

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "sleepbot/pkg/logx"
)

// notify is swapped in tests.
var notify = daemon.SdNotify

// Ready sends READY=1.
func Ready(log logx.Logger) { send(log, daemon.SdNotifyReady) }

// Stopping sends STOPPING=1.
func Stopping(log logx.Logger) { send(log, daemon.SdNotifyStopping) }

func send(log logx.Logger, state string) {
	sent, err := notify(false, state)
	if err != nil {
		log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		log.Debug("sd_notify sent", logx.String("state", state))
	}
}

// Watchdog pings WATCHDOG=1 at half the unit's WatchdogSec until ctx is done.
// alive gates each ping; a nil alive always pings.
func Watchdog(ctx context.Context, alive func() bool, log logx.Logger) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	watchdogLoop(ctx, interval/2, alive, log)
}

func watchdogLoop(ctx context.Context, every time.Duration, alive func() bool, log logx.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if alive != nil && !alive() {
				log.Warn("watchdog ping skipped; service not alive")
				continue
			}
			send(log, daemon.SdNotifyWatchdog)
		}
	}
}
