package storage

import (
	"context"
	"errors"
	"strings"

	logx "sleepbot/pkg/logx"
)

// MaxRecent caps RecentAudit results.
const MaxRecent = 100

// Store is the persistence API used by the reminder dispatcher and /history.
type Store interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	// RecentAudit returns up to n entries, newest first.
	RecentAudit(ctx context.Context, n int) ([]AuditEntry, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

func clampRecent(n int) int {
	if n <= 0 {
		return 0
	}
	return min(n, MaxRecent)
}
