// Package app wires configuration, storage, transports and the menu runner
// into a one-shot command or a long-running daemon.
package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/google/uuid"

	"schnitzelbot/internal/checkin"
	"schnitzelbot/internal/config"
	"schnitzelbot/internal/dispatch"
	"schnitzelbot/internal/eventbus"
	"schnitzelbot/internal/runner"
	"schnitzelbot/internal/runtime/supervisor"
	"schnitzelbot/internal/schedule"
	"schnitzelbot/internal/source"
	"schnitzelbot/internal/storage"
	"schnitzelbot/internal/subscriber"
	"schnitzelbot/internal/transport"
	logx "schnitzelbot/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store
	mux   *transport.Mux

	runner  atomic.Pointer[runner.Runner]
	checkin atomic.Pointer[checkinHolder]
	sched   *schedule.Service

	sup         *supervisor.Supervisor
	stopOnce    sync.Once
	stopHistory func()
	persistWG   sync.WaitGroup
}

type checkinHolder struct{ r checkin.Reporter }

// New loads the config and opens every dependency. Nothing is started.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	mux := NewTransports()

	// Bootstrap with alerts off, set the target, then apply the final config
	// so the sink never starts without a destination.
	logCfg := mapLoggingConfig(cfg)
	bootCfg := logCfg
	bootCfg.Alert.Enabled = false
	logSvc, log := logx.New(bootCfg)
	setAlertTarget(logSvc, mux, cfg, log)
	logSvc.Apply(logCfg)

	a := &App{
		cfgm: cfgm,
		log:  log.With(logx.String("comp", "app")),
		logs: logSvc,
		bus:  eventbus.New(),
		mux:  mux,
	}

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	st, err := storage.Open(ctx, sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	a.store = st
	a.log.Debug("storage opened", logx.String("driver", sc.Driver), logx.Bool("sealed", sc.SecretKey != ""))

	if err := a.rebuild(cfg); err != nil {
		_ = st.Close()
		_ = logSvc.Close()
		return nil, err
	}

	schedCfg, err := mapScheduleConfig(cfg)
	if err != nil {
		_ = st.Close()
		_ = logSvc.Close()
		return nil, err
	}
	a.sched = schedule.New("menu-check", schedCfg, a.scheduledRun, log.With(logx.String("comp", "scheduler")))
	a.startHistory()
	return a, nil
}

func (a *App) Log() logx.Logger       { return a.log }
func (a *App) Store() storage.Store   { return a.store }
func (a *App) Bus() eventbus.Bus      { return a.bus }
func (a *App) Config() *config.Config { return a.cfgm.Get() }

// rebuild swaps the runner and check-in reporter for cfg.
func (a *App) rebuild(cfg *config.Config) error {
	srcCfg, err := mapSourceConfig(cfg)
	if err != nil {
		return err
	}
	dispCfg, err := mapDispatchConfig(cfg)
	if err != nil {
		return err
	}
	loc, err := config.LoadLocation(cfg.Menu.Timezone)
	if err != nil {
		return err
	}

	var rep checkin.Reporter = checkin.Nop()
	if cc, enabled, err := mapCheckinConfig(cfg); err != nil {
		return err
	} else if enabled {
		h, err := checkin.NewHTTP(cc, nil, a.log.With(logx.String("comp", "checkin")))
		if err != nil {
			return err
		}
		rep = h
	}

	base := a.logs.Logger()
	r := runner.New(runner.Deps{
		Source:   source.NewHTTP(srcCfg, nil),
		Registry: subscriber.NewRegistry(a.store),
		Sender:   dispatch.New(dispCfg, a.mux, base.With(logx.String("comp", "dispatch")), a.bus),
		Location: loc,
		Log:      base.With(logx.String("comp", "runner")),
		Bus:      a.bus,
	})
	a.runner.Store(r)
	a.checkin.Store(&checkinHolder{r: rep})
	return nil
}

// RunOnce performs one menu check wrapped in check-in pings.
func (a *App) RunOnce(ctx context.Context) (runner.Outcome, error) {
	rep := a.checkin.Load().r
	runID := uuid.NewString()

	rep.Start(ctx, runID)
	out, err := a.runner.Load().RunOnce(ctx)
	reportRun(ctx, rep, runID, out, err)
	if err != nil {
		return out, err
	}
	a.log.Info("run finished", logx.String("run_id", runID), logx.String("summary", runner.Summary(out, nil)))
	return out, nil
}

// reportRun sends the closing ping. The run deadline may already have expired,
// so the ping is detached from ctx cancellation.
func reportRun(ctx context.Context, rep checkin.Reporter, runID string, out runner.Outcome, err error) {
	ctx = context.WithoutCancel(ctx)
	if err != nil {
		rep.Fail(ctx, runID, err)
		return
	}
	rep.OK(ctx, runID, runner.Summary(out, nil))
}

func (a *App) scheduledRun(ctx context.Context) error {
	_, err := a.RunOnce(ctx)
	return err
}

// Start launches the scheduler, config watcher and run-history writer.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		sc, err := mapScheduleConfig(cfg)
		if err != nil {
			return err
		}
		if sc.Enabled {
			return a.sched.Validate(sc)
		}
		return nil
	})

	if err := a.sched.Start(a.sup.Context()); err != nil {
		return err
	}

	updates := a.cfgm.Subscribe(1)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(updates)
		a.reloadLoop(c, updates)
	})
	a.sup.GoRestart("config.watch", a.cfgm.Watch, time.Second, 30*time.Second)
	a.sup.Go0("systemd.watchdog", func(c context.Context) { watchdogLoop(c, a.log) })

	sdNotify(a.log, daemon.SdNotifyReady)
	a.log.Info("daemon started", logx.Time("next_run", a.sched.Next()))
	return nil
}

// Done is closed when the daemon context is canceled.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) reloadLoop(ctx context.Context, updates <-chan *config.Config) {
	applied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-updates:
			if !ok {
				return
			}
			a.applyConfig(applied, cfg)
			applied = cfg
		}
	}
}

func (a *App) applyConfig(prev, cfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, cfg)
	if len(sections) == 0 {
		return
	}
	a.log.Info("config change applied", append([]logx.Field{logx.Strings("sections", sections)}, attrs...)...)

	setAlertTarget(a.logs, a.mux, cfg, a.log)
	a.logs.Apply(mapLoggingConfig(cfg))

	if err := a.rebuild(cfg); err != nil {
		a.log.Error("config reload: rebuild runner failed", logx.Err(err))
	}
	if sc, err := mapScheduleConfig(cfg); err != nil {
		a.log.Error("config reload: schedule mapping failed", logx.Err(err))
	} else if err := a.sched.Apply(sc); err != nil {
		a.log.Error("config reload: schedule apply failed", logx.Err(err))
	}
	if restart := config.RestartRequired(sections); len(restart) > 0 {
		a.log.Warn("config sections need a restart to take effect", logx.Strings("sections", restart))
	}
}

// startHistory persists every finished run to the store.
// It runs outside the supervisor so one-shot runs are recorded too, and so
// shutdown can drain it after the scheduler is gone.
func (a *App) startHistory() {
	events, unsub := a.bus.Subscribe(64)
	a.persistWG.Add(1)
	go func() {
		defer a.persistWG.Done()
		for e := range events {
			switch e.Type {
			case eventbus.TypeRunFinished:
				rec, ok := e.Data.(storage.RunRecord)
				if !ok {
					continue
				}
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := a.store.AppendRun(ctx, rec); err != nil {
					a.log.Warn("run history write failed", logx.Err(err))
				}
				cancel()
			case eventbus.TypeDispatchFailed:
				if o, ok := e.Data.(dispatch.Outcome); ok {
					a.log.Debug("event", logx.String("type", e.Type), logx.String("subscriber", o.Label))
				}
			}
		}
	}()
	a.stopHistory = unsub
}

// Stop shuts the daemon down in order: scheduler, goroutines, history, store, logging.
func (a *App) Stop(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		sdNotify(a.log, daemon.SdNotifyStopping)
		start := time.Now()

		step := func(name string, timeout time.Duration, fn func(c context.Context) error) {
			c, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			if e := fn(c); e != nil && !errors.Is(e, context.Canceled) {
				a.log.Warn("stop step failed", logx.String("step", name), logx.Err(e))
				err = errors.Join(err, e)
			}
		}

		step("scheduler", 30*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
		if a.sup != nil {
			step("supervisor", 5*time.Second, a.sup.Stop)
		}
		a.drainHistory()
		step("storage", time.Second, func(context.Context) error { return a.store.Close() })
		a.log.Info("stopped", logx.Duration("took", time.Since(start)))
		_ = a.logs.Close()
	})
	return err
}

// Close releases resources for one-shot commands that never called Start.
func (a *App) Close() error {
	var err error
	a.stopOnce.Do(func() {
		a.drainHistory()
		err = errors.Join(a.store.Close(), a.logs.Close())
	})
	return err
}

func (a *App) drainHistory() {
	if a.stopHistory == nil {
		return
	}
	a.stopHistory()
	a.persistWG.Wait()
	a.stopHistory = nil
}

func setAlertTarget(logs *logx.Service, f transport.Factory, cfg *config.Config, log logx.Logger) {
	al := cfg.Logging.Alert
	if !al.Enabled || strings.TrimSpace(al.Credential) == "" {
		logs.SetAlertTarget(nil, "")
		return
	}
	client, err := f.NewClient(al.Provider, al.Credential)
	if err != nil {
		log.Warn("alert target setup failed", logx.String("provider", al.Provider), logx.Err(err))
		logs.SetAlertTarget(nil, "")
		return
	}
	logs.SetAlertTarget(client, al.Destination)
}
