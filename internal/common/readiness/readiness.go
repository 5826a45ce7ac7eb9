// Package readiness notifies a process supervisor (systemd) of startup
// completion and, while running, feeds its watchdog. It is a no-op when the
// process is not supervised (NOTIFY_SOCKET unset), which is the normal case
// in development and in containers without a supervisor.
package readiness

import (
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier emits readiness/watchdog notifications to the process supervisor.
type Notifier struct {
	watchdogInterval time.Duration
	stop             chan struct{}
}

// New returns a Notifier. Supervision state is detected lazily on each call,
// matching sd_notify's own "best effort, ignore if not supervised" contract.
func New() *Notifier {
	return &Notifier{}
}

// Ready tells the supervisor that startup has completed.
func (n *Notifier) Ready() {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		slog.Warn("sd_notify READY failed", "error", err)
		return
	}
	if sent {
		slog.Info("sent readiness notification to process supervisor")
	}
}

// Stopping tells the supervisor that shutdown has begun.
func (n *Notifier) Stopping() {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		slog.Warn("sd_notify STOPPING failed", "error", err)
	}
}

// WatchdogLoop pings the supervisor's watchdog at the interval it requested,
// until stop is closed. It is a no-op (returns immediately) if the
// supervisor did not configure a watchdog.
func (n *Notifier) WatchdogLoop(stop <-chan struct{}) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}

	// Ping at half the requested interval, the customary safety margin.
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				slog.Warn("sd_notify WATCHDOG failed", "error", err)
			}
		}
	}
}
