package reminder

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"sleepbot/internal/escalation"
	"sleepbot/internal/eventbus"
	rtsup "sleepbot/internal/runtime/supervisor"
	logx "sleepbot/pkg/logx"
)

// ServiceConfig controls the tick driver.
type ServiceConfig struct {
	// Tick is the evaluation period; it should not exceed the smallest
	// re-notification interval. Defaults to 30s.
	Tick time.Duration
}

// Service drives Scheduler ticks and dispatches due reminders.
type Service struct {
	cfg   ServiceConfig
	sched *Scheduler
	disp  *Dispatcher
	log   logx.Logger
	bus   eventbus.Bus
	now   func() time.Time

	// tickMu makes every evaluation (scheduled, first or TickNow) single-flight.
	tickMu sync.Mutex

	mu  sync.Mutex
	c   *cron.Cron
	sup *rtsup.Supervisor
}

// NewService wires the tick driver. bus may be nil.
func NewService(cfg ServiceConfig, sched *Scheduler, disp *Dispatcher, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 30 * time.Second
	}
	return &Service{cfg: cfg, sched: sched, disp: disp, log: log, bus: bus, now: time.Now}
}

// SetClock replaces the time source. Call before Start.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) Enabled() bool { return s.sched != nil && s.disp != nil }

func (s *Service) Scheduler() *Scheduler   { return s.sched }
func (s *Service) Dispatcher() *Dispatcher { return s.disp }

// RecipientCount is the number of configured recipients.
func (s *Service) RecipientCount() int { return len(s.disp.recipients) }

// Start schedules ticks every cfg.Tick and runs one evaluation right away.
// Start is idempotent.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !s.Enabled() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}

	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log.With(logx.String("comp", "reminder"))))
	runCtx := s.sup.Context()

	cl := cronLogger{log: s.log}
	job := cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(func() {
		s.TickNow(runCtx)
	}))

	s.c = cron.New(cron.WithLocation(s.sched.Location()), cron.WithLogger(cl))
	s.c.Schedule(cron.Every(s.cfg.Tick), job)
	s.c.Start()

	// First evaluation goes through the same wrapped job so it cannot overlap
	// a scheduled one.
	s.sup.Go0("reminder.first_tick", func(context.Context) { job.Run() })

	s.log.Info("service started",
		logx.String("deadline", s.sched.Deadline().String()),
		logx.String("tz", s.sched.Location().String()),
		logx.Duration("tick", s.cfg.Tick),
		logx.Int("recipients", len(s.disp.Recipients())),
	)
}

// Stop stops ticking and waits for an in-flight tick until ctx is done.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	s.mu.Lock()
	c, sup := s.c, s.sup
	s.c, s.sup = nil, nil
	s.mu.Unlock()
	if c == nil {
		return
	}

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	if sup != nil {
		_ = sup.Stop(ctx)
	}
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}

// TickNow runs one evaluation synchronously and dispatches when due.
func (s *Service) TickNow(ctx context.Context) (Report, bool) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	now := s.now()
	prev := s.sched.State().Level
	eff, due := s.sched.Tick(now)
	if !due {
		if prev != escalation.Inactive && s.sched.State().Level == escalation.Inactive {
			s.log.Info("reminder window closed; state reset", logx.String("last_level", prev.String()))
			if s.bus != nil {
				s.bus.Publish(eventbus.Event{Type: eventbus.TypeReminderReset, Time: now, Data: prev})
			}
		}
		return Report{}, false
	}
	return s.disp.Dispatch(ctx, eff, Actor{}), true
}

// Status reports the current escalation without mutating state.
func (s *Service) Status() Status { return s.sched.CurrentStatus(s.now()) }

// Test dispatches one reminder at level regardless of the rate limit.
func (s *Service) Test(ctx context.Context, level escalation.Level, actor Actor) (Report, error) {
	eff, err := s.sched.ForceNotify(level)
	if err != nil {
		return Report{}, err
	}
	eff.At = s.now()
	return s.disp.Dispatch(ctx, eff, actor), nil
}
