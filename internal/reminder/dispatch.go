package reminder

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"sleepbot/internal/delivery"
	"sleepbot/internal/escalation"
	"sleepbot/internal/eventbus"
	"sleepbot/internal/storage"
	logx "sleepbot/pkg/logx"
)

// Actor identifies who triggered a dispatch. The zero Actor is the tick loop.
type Actor struct {
	ID       int64
	Username string
}

func (a Actor) IsScheduler() bool { return a.ID == 0 && a.Username == "" }

// Failure is one recipient that could not be reached.
type Failure struct {
	RecipientID string
	Err         error
}

// Report describes the outcome of one dispatch.
type Report struct {
	ID        string
	Level     escalation.Level
	Forced    bool
	Delivered []string
	Failed    []Failure

	BroadcastAttempted bool
	BroadcastErr       error

	Took time.Duration
}

// DispatchEvent is published on the event bus after every dispatch.
type DispatchEvent struct {
	ID        string    `json:"id"`
	Level     int       `json:"level"`
	Forced    bool      `json:"forced"`
	OK        int       `json:"ok"`
	Fail      int       `json:"fail"`
	Broadcast bool      `json:"broadcast"`
	At        time.Time `json:"at"`
	Error     string    `json:"error,omitempty"`
}

// Dispatcher delivers an effect to every recipient, then to the broadcast
// destination. It never retries and never touches Scheduler state.
type Dispatcher struct {
	deliverer  delivery.Deliverer
	recipients []string
	dest       delivery.Destination

	log   logx.Logger
	bus   eventbus.Bus
	store storage.Store

	now func() time.Time
}

// NewDispatcher sends to recipients through d. A zero dest disables the
// broadcast; bus and store may be nil.
func NewDispatcher(d delivery.Deliverer, recipients []string, dest delivery.Destination, log logx.Logger, bus eventbus.Bus, store storage.Store) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{
		deliverer:  d,
		recipients: append([]string(nil), recipients...),
		dest:       dest,
		log:        log,
		bus:        bus,
		store:      store,
		now:        time.Now,
	}
}

// Recipients returns a copy of the configured recipient ids.
func (d *Dispatcher) Recipients() []string { return append([]string(nil), d.recipients...) }

// Dispatch delivers eff to every recipient, skipping failures, then
// broadcasts to the ones reached. It never returns an error: outcomes are in
// the Report, the log and the audit trail.
func (d *Dispatcher) Dispatch(ctx context.Context, eff Effect, actor Actor) Report {
	start := d.now()
	rep := Report{ID: uuid.NewString(), Level: eff.Level, Forced: eff.Forced}
	log := d.log.With(logx.String("dispatch_id", rep.ID), logx.Int("level", int(eff.Level)), logx.Bool("forced", eff.Forced))
	if !actor.IsScheduler() {
		log = log.With(logx.Int64("actor_id", actor.ID), logx.String("actor", actor.Username))
	}

	if len(d.recipients) == 0 {
		log.Warn("no recipients configured; reminder skipped")
		rep.Took = d.now().Sub(start)
		d.record(ctx, rep, actor, start)
		return rep
	}

	text := escalation.Message(eff.Level)
	for _, id := range d.recipients {
		if err := d.deliverer.DeliverDirect(ctx, id, text); err != nil {
			rep.Failed = append(rep.Failed, Failure{RecipientID: id, Err: err})
			log.Warn("reminder delivery failed", logx.String("recipient", id), logx.Err(err))
			continue
		}
		rep.Delivered = append(rep.Delivered, id)
		log.Debug("reminder delivered", logx.String("recipient", id))
	}

	if !d.dest.IsZero() && len(rep.Delivered) > 0 {
		rep.BroadcastAttempted = true
		if err := d.deliverer.DeliverBroadcast(ctx, rep.Delivered, d.dest, text); err != nil {
			rep.BroadcastErr = err
			log.Warn("broadcast delivery failed", logx.String("group_id", d.dest.GroupID), logx.Err(err))
		}
	}

	rep.Took = d.now().Sub(start)
	log.Info("reminder dispatched",
		logx.String("level_name", eff.Level.String()),
		logx.Int("ok", len(rep.Delivered)),
		logx.Int("fail", len(rep.Failed)),
		logx.Bool("broadcast", rep.BroadcastAttempted && rep.BroadcastErr == nil),
		logx.Duration("took", rep.Took),
	)
	d.record(ctx, rep, actor, start)
	return rep
}

func (d *Dispatcher) record(ctx context.Context, rep Report, actor Actor, at time.Time) {
	errText := ""
	if err := rep.err(); err != nil {
		errText = err.Error()
	}

	if d.bus != nil {
		d.bus.Publish(eventbus.Event{Type: eventbus.TypeReminderDispatched, Time: at, Data: DispatchEvent{
			ID:        rep.ID,
			Level:     int(rep.Level),
			Forced:    rep.Forced,
			OK:        len(rep.Delivered),
			Fail:      len(rep.Failed),
			Broadcast: rep.BroadcastAttempted && rep.BroadcastErr == nil,
			At:        at,
			Error:     errText,
		}})
	}

	if d.store == nil {
		return
	}
	action := storage.ActionReminder
	if rep.Forced {
		action = storage.ActionTest
	}
	// Audit must not be lost to a canceled tick context.
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	err := d.store.AppendAudit(sctx, storage.AuditEntry{
		At:            at,
		DispatchID:    rep.ID,
		ActorID:       actor.ID,
		ActorUsername: actor.Username,
		Action:        action,
		Level:         int(rep.Level),
		OK:            len(rep.Delivered),
		Fail:          len(rep.Failed),
		Broadcast:     rep.BroadcastAttempted && rep.BroadcastErr == nil,
		Error:         errText,
		TookMS:        rep.Took.Milliseconds(),
	})
	if err != nil {
		d.log.Warn("audit append failed", logx.String("dispatch_id", rep.ID), logx.Err(err))
	}
}

// err joins every failure of the dispatch, or nil when everything went through.
func (r Report) err() error {
	errs := make([]error, 0, len(r.Failed)+1)
	for _, f := range r.Failed {
		errs = append(errs, f.Err)
	}
	if r.BroadcastErr != nil {
		errs = append(errs, r.BroadcastErr)
	}
	return errors.Join(errs...)
}
