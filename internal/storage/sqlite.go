package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "sleepbot/pkg/logx"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS audit (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	at          TEXT    NOT NULL,
	dispatch_id TEXT    NOT NULL,
	actor_id    INTEGER NOT NULL DEFAULT 0,
	actor_username TEXT,
	action      TEXT    NOT NULL,
	level       INTEGER NOT NULL,
	ok          INTEGER NOT NULL,
	fail        INTEGER NOT NULL,
	broadcast   INTEGER NOT NULL DEFAULT 0,
	err         TEXT,
	took_ms     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_at ON audit(at);
`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(context.Background(), sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	log.Debug("sqlite store opened", logx.String("path", path))
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, dispatch_id, actor_id, actor_username, action, level, ok, fail, broadcast, err, took_ms)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		e.At.UTC().Format(time.RFC3339Nano), e.DispatchID, e.ActorID, nullStr(e.ActorUsername),
		e.Action, e.Level, e.OK, e.Fail, boolInt(e.Broadcast), nullStr(e.Error), e.TookMS,
	)
	return err
}

func (s *sqliteStore) RecentAudit(ctx context.Context, n int) ([]AuditEntry, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	n = clampRecent(n)
	if n == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, dispatch_id, actor_id, actor_username, action, level, ok, fail, broadcast, err, took_ms
		 FROM audit ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var (
			e         AuditEntry
			at        string
			username  sql.NullString
			errText   sql.NullString
			broadcast int
		)
		if err := rows.Scan(&at, &e.DispatchID, &e.ActorID, &username, &e.Action, &e.Level,
			&e.OK, &e.Fail, &broadcast, &errText, &e.TookMS); err != nil {
			return nil, err
		}
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		e.ActorUsername = username.String
		e.Error = errText.String
		e.Broadcast = broadcast != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
