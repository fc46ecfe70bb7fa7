// Package app wires configuration, storage, the action core and every
// outer surface into one running bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"chirpbot/internal/action"
	"chirpbot/internal/config"
	"chirpbot/internal/control"
	"chirpbot/internal/dashboard"
	"chirpbot/internal/eventbus"
	"chirpbot/internal/mode"
	"chirpbot/internal/notifier"
	"chirpbot/internal/observability/metrics"
	"chirpbot/internal/quota"
	"chirpbot/internal/runtime/supervisor"
	"chirpbot/internal/schedule"
	"chirpbot/internal/state"
	"chirpbot/internal/storage"
	"chirpbot/internal/transport/telegram"
	logx "chirpbot/pkg/logx"
)

type App struct {
	logOut io.Writer

	cfgm *config.Manager
	set  *config.Settings
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	svc     *control.Service
	metrics *metrics.Metrics
	dash    *dashboard.Server
	bot     *telegram.Bot
	notif   *notifier.Service
}

type Option func(*App)

// WithLogOutput sends console logs to w instead of stdout.
func WithLogOutput(w io.Writer) Option { return func(a *App) { a.logOut = w } }

// New loads cfgPath and builds every component. Nothing runs until Start;
// one-shot commands can drive Service directly and then Close.
func New(cfgPath string, opts ...Option) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	set, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}

	a := &App{cfgm: cfgm, set: set, bus: eventbus.New()}
	for _, o := range opts {
		o(a)
	}
	logs, log := logx.New(a.logConfig(cfg))
	cfgm.SetLogger(log)
	a.logs, a.log = logs, log.With(logx.Component("app"))

	a.store, err = storage.Open(mapStorageConfig(cfg, set), log)
	if err != nil {
		_ = logs.Close()
		return nil, err
	}
	if err := a.build(cfg, log); err != nil {
		_ = a.store.Close()
		_ = logs.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) logConfig(cfg *config.Config) logx.Config {
	lc := cfg.LogConfig()
	lc.Output = a.logOut
	return lc
}

func (a *App) build(cfg *config.Config, log logx.Logger) error {
	set := a.set
	repo := state.NewRepo(a.store, log)
	q := quota.New(repo, set.MaxDailyFollows, set.PostCooldown, log, quota.WithLocation(set.Location))
	modes := mode.New(context.Background(), repo, cfg.Mode.Cricket, a.bus, log)

	feed, err := newContextSource(cfg, log)
	if err != nil {
		return fmt.Errorf("feeds: %w", err)
	}
	deps := action.Deps{
		Repo:      repo,
		Quota:     q,
		Publisher: newPublisher(cfg, set, log),
		Generator: newGenerator(cfg, log),
		Bus:       a.bus,
		Log:       log,
	}
	if feed != nil {
		deps.Context = feed
	}

	a.svc = &control.Service{
		Repo:      repo,
		Quota:     q,
		Mode:      modes,
		Executor:  action.New(deps, mapExecutorOptions(set)),
		Scheduler: schedule.New(repo, log, schedule.WithBus(a.bus), schedule.WithLocation(set.Location)),
		Bus:       a.bus,
		Log:       log,
	}
	if err := a.svc.RegisterJobs(set); err != nil {
		return err
	}

	a.metrics = metrics.New(metrics.Gauges{
		QuotaRemaining: func() float64 { return float64(q.Remaining(context.Background())) },
		Following: func() float64 {
			return float64(repo.Follows(context.Background()).Totals().CurrentlyFollowing)
		},
		Cricket: func() float64 {
			if modes.Enabled() {
				return 1
			}
			return 0
		},
	})

	if cfg.Telegram.Enabled {
		router := telegram.NewRouter(cfg.Telegram.OwnerUserIDs, log)
		telegram.RegisterCommands(router, a.svc)
		a.bot, err = telegram.New(mapTelegramConfig(cfg, set), router, log)
		if err != nil {
			return err
		}
		a.logs.SetSender(a.bot)
		if cfg.Notify.Enabled {
			a.notif = notifier.New(mapNotifierConfig(cfg, set), a.bot, a.bus, log)
		}
	}
	if cfg.Dashboard.Enabled {
		a.dash = dashboard.New(mapDashboardConfig(cfg, set), a.svc, a.metrics.Handler(), log)
	}
	return nil
}

// Service is the control surface shared by every operator entry point.
func (a *App) Service() *control.Service { return a.svc }

func (a *App) Logger() logx.Logger { return a.log }

// Done is closed when the app's supervisor context ends.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	rctx := a.sup.Context()

	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		_, err := cfg.Resolve()
		return err
	})

	if err := a.svc.Scheduler.Start(rctx, a.sup); err != nil {
		return err
	}
	a.sup.GoRestart("metrics", func(c context.Context) error {
		return a.metrics.Run(c, a.bus)
	}, supervisor.WithRestartBackoff(time.Second, 30*time.Second), supervisor.WithStopOnCleanExit(false))

	if a.bot != nil {
		if err := a.bot.Start(rctx); err != nil {
			return err
		}
	}
	if a.notif != nil {
		a.sup.GoRestart("notifier", a.notif.Run, supervisor.WithRestartBackoff(time.Second, 30*time.Second), supervisor.WithStopOnCleanExit(false))
	}
	if a.dash != nil {
		a.sup.GoRestart("dashboard", a.dash.Run, supervisor.WithRestartBackoff(500*time.Millisecond, 10*time.Second))
	}

	// Bus and config subscribers only return early when their channel
	// closes; restarting resubscribes.
	a.sup.GoRestart("eventbus.log", a.logEvents, supervisor.WithRestartBackoff(time.Second, 10*time.Second), supervisor.WithStopOnCleanExit(false))
	a.sup.GoRestart("config.reload", a.reloadLoop, supervisor.WithRestartBackoff(time.Second, 10*time.Second), supervisor.WithStopOnCleanExit(false))
	a.sup.Go("config.watch", func(c context.Context) error {
		err := a.cfgm.Watch(c)
		if err != nil && c.Err() == nil {
			a.log.Warn("config watch stopped; hot reload disabled", logx.Err(err))
		}
		return nil
	})

	a.notifySystemd()
	a.log.Info("app started",
		logx.String("mode", a.svc.Mode.Strategy().Name()),
		logx.Bool("telegram", a.bot != nil),
		logx.Bool("dashboard", a.dash != nil),
	)
	return nil
}

// logEvents mirrors bus traffic into debug logs.
func (a *App) logEvents(ctx context.Context) error {
	events, unsubscribe := a.bus.Subscribe(128)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
		}
	}
}

// reloadLoop applies hot-reloadable sections of committed config changes.
func (a *App) reloadLoop(ctx context.Context) error {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return nil
		case next, ok := <-sub:
			if !ok {
				return nil
			}
			// Coalesce bursts to the latest config.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						next = newer
					}
				default:
					break drain
				}
			}
			a.applyConfig(ctx, last, next)
			last = next
		}
	}
}

func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	ch := config.SummarizeConfigChange(prev, next)
	if len(ch.Sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	a.logs.Apply(a.logConfig(next))
	if prev == nil || prev.Mode.Cricket != next.Mode.Cricket {
		if err := a.svc.SetMode(ctx, next.Mode.Cricket); err != nil {
			a.log.Warn("applying mode from config failed", logx.Err(err))
		}
	}
	if len(ch.Restart) > 0 {
		a.log.Warn("config sections changed that apply after restart", logx.String("sections", strings.Join(ch.Restart, ",")))
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(ch.Sections, ","))}, ch.Fields...)
	a.log.Info("config reloaded", fields...)
}

// Stop shuts components down in reverse dependency order, bounding each
// step so one stuck component cannot stall the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return a.Close()
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	notifyStopping(a.log)
	a.sup.Cancel()

	var errs []error
	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		sctx, cancel := context.WithTimeout(ctx, limit)
		defer cancel()
		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(sctx)
		}()
		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-sctx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	if a.bot != nil {
		step("telegram", 3*time.Second, a.bot.Stop)
	}
	step("supervisor", 5*time.Second, a.sup.Wait)
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	_ = a.logs.Close()
	return errors.Join(errs...)
}

// Close releases resources for an app that was never started.
func (a *App) Close() error {
	err := a.store.Close()
	_ = a.logs.Close()
	return err
}
