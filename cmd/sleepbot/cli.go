package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli"

	"sleepbot/internal/app"
	"sleepbot/internal/config"
	"sleepbot/internal/reminder"
)

var configFlag = cli.StringFlag{
	Name:   "config, c",
	Usage:  "path to config file (json or yaml)",
	EnvVar: "SLEEPBOT_CONFIG",
	Value:  "./config.json",
}

func newApp() *cli.App {
	a := cli.NewApp()
	a.Name = "sleepbot"
	a.HelpName = "sleepbot"
	a.Usage = "escalating bedtime reminders over Telegram"
	a.Version = fmt.Sprintf("%s (%s)", version, commit)
	a.Flags = []cli.Flag{configFlag}
	a.Action = run
	a.Commands = []cli.Command{
		{
			Name:   "run",
			Usage:  "start the bot (default)",
			Flags:  []cli.Flag{configFlag},
			Action: run,
		},
		{
			Name:  "check",
			Usage: "validate the config and print today's reminder windows",
			Flags: []cli.Flag{
				configFlag,
				cli.BoolFlag{
					Name:  "tick",
					Usage: "also run one evaluation and send whatever is due",
				},
			},
			Action: check,
		},
		{
			Name:   "version",
			Usage:  "print version information",
			Action: printVersion,
		},
	}
	return a
}

// configPath prefers the subcommand flag, then the global one.
func configPath(ctx *cli.Context) string {
	if !ctx.IsSet("config") && ctx.GlobalIsSet("config") {
		return ctx.GlobalString("config")
	}
	return ctx.String("config")
}

func run(ctx *cli.Context) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	sigCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.NewApp(configPath(ctx))
	if err != nil {
		return err
	}
	if err := a.Start(sigCtx); err != nil {
		_ = a.Stop(context.Background(), app.StopFatalError)
		return fmt.Errorf("start: %w", err)
	}

	var reason app.StopReason
	select {
	case sig := <-sigs:
		reason = app.StopSIGTERM
		if sig == os.Interrupt {
			reason = app.StopSIGINT
		}
	case <-a.Done():
		reason = app.StopFatalError
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)
	if reason == app.StopFatalError {
		return a.Err()
	}
	return nil
}

func check(ctx *cli.Context) error {
	cfg, err := config.NewConfigManager(configPath(ctx)).Load()
	if err != nil {
		return err
	}
	deadline, err := config.ParseDeadline(cfg.Bedtime.Deadline)
	if err != nil {
		return err
	}
	loc, err := cfg.Bedtime.Location()
	if err != nil {
		return err
	}
	sched := reminder.NewScheduler(deadline, loc)
	printWindows(ctx.App.Writer, sched, time.Now(), len(cfg.Bedtime.RecipientIDs))

	if !ctx.Bool("tick") {
		return nil
	}
	a, err := app.NewApp(configPath(ctx))
	if err != nil {
		return err
	}
	defer func() { _ = a.Stop(context.Background(), app.StopAppStop) }()

	rep, due := a.Reminders().TickNow(context.Background())
	if !due {
		fmt.Fprintln(ctx.App.Writer, "nothing due")
		return nil
	}
	fmt.Fprintf(ctx.App.Writer, "sent %s: %d delivered, %d failed\n", rep.Level, len(rep.Delivered), len(rep.Failed))
	return nil
}

func printWindows(w io.Writer, sched *reminder.Scheduler, now time.Time, recipients int) {
	st := sched.CurrentStatus(now)
	fmt.Fprintf(w, "deadline %s (%s), %d recipient(s)\n", sched.Deadline(), sched.Location(), recipients)
	fmt.Fprintf(w, "now: %s, %.1f min past deadline\n", st.Level, st.MinutesPast)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FROM\tLEVEL\tEVERY")
	for _, win := range sched.Windows(now) {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", win.Start.Format("15:04"), win.Level, win.Interval)
	}
	_ = tw.Flush()
}

func printVersion(ctx *cli.Context) error {
	fmt.Fprintf(ctx.App.Writer, "%s %s (%s_%s)\n", ctx.App.Name, ctx.App.Version, runtime.GOOS, runtime.GOARCH)
	return nil
}
