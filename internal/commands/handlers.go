package commands

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"sleepbot/internal/escalation"
	"sleepbot/internal/reminder"
	"sleepbot/internal/storage"
	logx "sleepbot/pkg/logx"
)

const (
	historyDefault = 5
	historyMax     = 20
)

// Reminders is the slice of the reminder service the commands need.
type Reminders interface {
	Status() reminder.Status
	Test(ctx context.Context, level escalation.Level, actor reminder.Actor) (reminder.Report, error)
	RecipientCount() int
}

// History reads the audit trail. A nil History means storage is disabled.
type History interface {
	RecentAudit(ctx context.Context, n int) ([]storage.AuditEntry, error)
}

type Deps struct {
	Reminders Reminders
	History   History
	// Location renders audit times; nil means time.Local.
	Location *time.Location
}

// Register installs the bedtime commands on r.
func Register(r *Router, d Deps) error {
	return r.Register(
		Command{
			Name:        "status",
			Aliases:     []string{"sleep_status"},
			Description: "show the current escalation level",
			Handle:      statusHandler(d.Reminders),
		},
		Command{
			Name:        "test",
			Aliases:     []string{"sleep_test"},
			Usage:       "/test [level 0-4]",
			Description: "send a test reminder (default level 4)",
			Access:      AccessOwnerOnly,
			Handle:      testHandler(d.Reminders),
		},
		Command{
			Name:        "history",
			Usage:       "/history [n]",
			Description: "show recent reminder rounds",
			Access:      AccessOwnerOnly,
			Handle:      historyHandler(d.History, d.Location),
		},
		Command{
			Name:        "help",
			Aliases:     []string{"start"},
			Description: "list commands",
			Handle:      helpHandler(r),
		},
	)
}

func statusHandler(rem Reminders) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		return req.Reply(ctx, formatStatus(rem.Status()))
	}
}

func formatStatus(st reminder.Status) string {
	if !st.Active {
		return "✅ Not currently in reminder window."
	}
	return fmt.Sprintf("Current escalation: <b>%s</b> (Level %d)\nMinutes past bedtime: %d",
		html.EscapeString(st.Level.String()), int(st.Level), int(st.MinutesPast))
}

func testHandler(rem Reminders) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		level := escalation.MaxUrgency
		if len(req.Args) > 0 {
			l, err := escalation.ParseLevel(req.Args[0])
			if err != nil {
				return req.Reply(ctx, "Level must be between 0 and 4")
			}
			level = l
		}
		rep, err := rem.Test(ctx, level, reminder.Actor{ID: req.FromID, Username: req.FromUsername})
		if err != nil {
			return req.Reply(ctx, "Level must be between 0 and 4")
		}
		req.Logger.Info("test reminder sent",
			logx.Int("level", int(level)),
			logx.Int("ok", len(rep.Delivered)),
			logx.Int("fail", len(rep.Failed)),
		)
		return req.Reply(ctx, fmt.Sprintf("Sent test reminder at level %d to %d user(s)", int(level), rem.RecipientCount()))
	}
}

func historyHandler(h History, loc *time.Location) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		if h == nil {
			return req.Reply(ctx, "History is unavailable: storage is disabled.")
		}
		n := historyDefault
		if len(req.Args) > 0 {
			v, err := strconv.Atoi(req.Args[0])
			if err != nil || v <= 0 {
				return req.Reply(ctx, "Usage: /history [n]")
			}
			n = min(v, historyMax)
		}
		entries, err := h.RecentAudit(ctx, n)
		if err != nil {
			return err
		}
		return req.Reply(ctx, formatHistory(entries, loc))
	}
}

// formatHistory lists entries in loc, since drivers differ in the offset they keep.
func formatHistory(entries []storage.AuditEntry, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	if len(entries) == 0 {
		return "No reminders sent yet."
	}
	var b strings.Builder
	b.WriteString("<b>Recent reminders</b>")
	for _, e := range entries {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s · %s · L%d %s · ok %d, fail %d",
			e.At.In(loc).Format("2006-01-02 15:04:05"), e.Action, e.Level,
			html.EscapeString(escalation.Level(e.Level).String()), e.OK, e.Fail)
		if e.ActorUsername != "" {
			b.WriteString(" · @" + html.EscapeString(e.ActorUsername))
		}
	}
	return b.String()
}

func helpHandler(r *Router) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		owner := r.IsOwner(req.FromID)
		var b strings.Builder
		b.WriteString("<b>Commands</b>")
		for _, c := range r.Commands() {
			if c.Access == AccessOwnerOnly && !owner {
				continue
			}
			usage := c.Usage
			if usage == "" {
				usage = "/" + c.Name
			}
			b.WriteString("\n" + html.EscapeString(usage) + " - " + html.EscapeString(c.Description))
		}
		return req.Reply(ctx, b.String())
	}
}
