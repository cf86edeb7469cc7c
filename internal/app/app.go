package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sleepbot/internal/commands"
	"sleepbot/internal/config"
	"sleepbot/internal/delivery"
	"sleepbot/internal/eventbus"
	"sleepbot/internal/health"
	"sleepbot/internal/reminder"
	rtsup "sleepbot/internal/runtime/supervisor"
	"sleepbot/internal/runtime/sdnotify"
	"sleepbot/internal/storage"
	kit "sleepbot/internal/transport"
	"sleepbot/internal/transport/telegram"
	logx "sleepbot/pkg/logx"
)

// chatAdapter is the transport plus the bits the app needs beyond kit.Adapter.
type chatAdapter interface {
	kit.Adapter
	Username() string
	Running() bool
}

type App struct {
	cfgPath string

	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	adapter chatAdapter

	rem    *reminder.Service
	router *commands.Router
	health *health.Server

	updates chan kit.Update
}

// NewApp loads the config, opens the bot session and wires every component.
// Any error here is fatal: nothing has been scheduled yet.
func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, bootLog)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return build(cfgm, cfg, ad)
}

func build(cfgm *config.ConfigManager, cfg *config.Config, ad chatAdapter) (*App, error) {
	// Bootstrap with chat logging off, set the target, then apply the final
	// config so Apply does not warn about a missing log chat.
	logCfg := mapLoggingConfig(cfg)
	bootCfg := logCfg
	bootCfg.Chat.Enabled = false
	logSvc, log := logx.New(bootCfg, ad)
	if chatID, ok := logChatTarget(cfg); ok {
		logSvc.SetChatTarget(chatID, cfg.Logging.Telegram.ThreadID)
	}
	logSvc.Apply(logCfg)
	log = log.With(logx.String("comp", "app"))

	deadline, err := config.ParseDeadline(cfg.Bedtime.Deadline)
	if err != nil {
		return nil, fmt.Errorf("bedtime.deadline: %w", err)
	}
	loc, err := cfg.Bedtime.Location()
	if err != nil {
		return nil, err
	}
	tick, err := cfg.Bedtime.Tick()
	if err != nil {
		return nil, err
	}
	dcfg, err := mapDeliveryConfig(cfg)
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	recipients := []string(cfg.Bedtime.RecipientIDs)
	if len(recipients) == 0 {
		log.Warn("bedtime.recipient_ids is empty; reminders will reach nobody")
	}

	chat := delivery.NewChat(ad, dcfg, log.With(logx.String("comp", "delivery")))
	sched := reminder.NewScheduler(deadline, loc)
	disp := reminder.NewDispatcher(chat, recipients, mapDestination(cfg),
		log.With(logx.String("comp", "dispatch")), bus, store)
	rem := reminder.NewService(reminder.ServiceConfig{Tick: tick}, sched, disp,
		log.With(logx.String("comp", "reminder")), bus)

	router := commands.NewRouter(commands.Config{
		BotName: ad.Username(),
		Owners:  cfg.Telegram.OwnerUserIDs,
	}, ad, log.With(logx.String("comp", "commands")))
	deps := commands.Deps{Reminders: rem, Location: loc}
	if store != nil {
		deps.History = store
	}
	if err := commands.Register(router, deps); err != nil {
		return nil, err
	}

	hs := health.New(mapHealthConfig(cfg), ad.Running, log.With(logx.String("comp", "health")))

	return &App{
		cfgPath: cfgm.Path(),
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		adapter: ad,
		rem:     rem,
		router:  router,
		health:  hs,
		updates: make(chan kit.Update, 256),
	}, nil
}

// Reminders exposes the tick driver (used by the check command).
func (a *App) Reminders() *reminder.Service { return a.rem }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start runs every component under the app supervisor and returns once
// they are launched.
func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		_, err := mapDeliveryConfig(cfg)
		return err
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.rem.Start(a.sup.Context())
	a.health.Start(a.sup.Context())

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.router.Run(c, a.updates)
	})

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	sdnotify.Ready(a.log)
	a.sup.Go0("sdnotify.watchdog", func(c context.Context) {
		sdnotify.Watchdog(c, func() bool { return a.sup.Context().Err() == nil }, a.log)
	})

	a.log.Info("app started", logx.String("config", a.cfgPath))
	return nil
}

// applyConfig applies the logging section live. Every other section is fixed
// for the life of the process.
func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	if chatID, ok := logChatTarget(newCfg); ok {
		a.logs.SetChatTarget(chatID, newCfg.Logging.Telegram.ThreadID)
	} else {
		a.logs.SetChatTarget(0, 0)
	}
	a.logs.Apply(mapLoggingConfig(newCfg))

	if restart := config.RestartRequired(sections); len(restart) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect",
			logx.String("sections", strings.Join(restart, ",")))
	}
	a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfigReloaded, Data: sections})

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// Stop shuts components down in order, each step bounded so one stuck
// component cannot hold the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if a.sup != nil {
		sdnotify.Stopping(a.log)
		// Cancel the run context first so background loops start unwinding immediately.
		a.sup.Cancel()
	}

	var errs []error
	// step runs fn with an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			if took := time.Since(start); took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
			} else {
				a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", time.Since(start)),
			)
			go func() {
				if err := <-done; err != nil {
					a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err), logx.Duration("took", time.Since(start)))
				}
			}()
		}
	}

	if a.sup != nil {
		step("reminder", 3*time.Second, func(c context.Context) error { a.rem.Stop(c); return nil })
		step("health", time.Second, func(c context.Context) error { a.health.Stop(c); return nil })
		step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	}
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	if a.sup != nil {
		// Wait for supervised goroutines (config watch/reload, command dispatch, ...).
		step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	}

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return errors.Join(errs...)
}
