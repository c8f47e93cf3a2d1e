package app

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"homeworkbot/internal/config"
	"homeworkbot/internal/homework"
	"homeworkbot/internal/notifier"
	"homeworkbot/internal/poller"
	"homeworkbot/internal/runtime/supervisor"
	"homeworkbot/internal/storage"
	telegram "homeworkbot/internal/transport/telegram/adapter"
	logx "homeworkbot/pkg/logx"
)

// Options are the command-line inputs.
type Options struct {
	ConfigPath string // settings file; empty means defaults
	EnvFile    string // dotenv file; missing file is fine
}

type App struct {
	cfgm  *config.Manager
	creds config.Credentials

	log   logx.Logger
	logs  *logx.Service
	store storage.Store

	notif  *notifier.Notifier
	poller *poller.Poller

	sup     *supervisor.Supervisor
	polling atomic.Bool
	cycles  atomic.Uint64
}

// New builds every component. No network I/O happens here.
// A credentials failure is logged at critical level before it is returned.
func New(opt Options) (*App, error) {
	cfgm := config.NewManager(opt.ConfigPath)
	cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validateConfig(cfg)
	})
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	creds, err := config.LoadCredentials(opt.EnvFile)
	if err != nil {
		log.Critical("required environment variables are missing", logx.Err(err))
		_ = logSvc.Close()
		return nil, err
	}

	a := &App{cfgm: cfgm, creds: creds, log: log, logs: logSvc}
	if err := a.build(cfg); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(cfg *config.Config) error {
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return err
	} else if enabled {
		st, err := storage.Open(sc, a.log.With(logx.String("comp", "storage")))
		if err != nil {
			return fmt.Errorf("storage: %w", err)
		}
		a.store = st
		a.log.Info("audit storage enabled", logx.String("driver", sc.Driver))
	}

	apiTimeout, err := config.ParseDurationOrDefault("api.timeout", cfg.API.Timeout, 30*time.Second)
	if err != nil {
		return err
	}
	client, err := homework.NewClient(cfg.API.Endpoint, a.creds.PracticumToken, apiTimeout)
	if err != nil {
		return err
	}

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return err
	}
	// The HTTP client timeout is fixed here; reloads of send_timeout only move the per-attempt deadline.
	ad, err := telegram.New(telegram.Config{
		Token:   a.creds.TelegramToken,
		Timeout: ncfg.SendTimeout,
	}, a.log.With(logx.String("comp", "telegram")))
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	a.notif = notifier.New(ncfg, ad, a.creds.ChatID, a.log, a.store)

	sched, err := mapSchedule(cfg)
	if err != nil {
		return err
	}
	a.poller = poller.New(poller.Options{
		Fetcher:   client,
		Sink:      a.notif,
		Log:       a.log,
		Schedule:  sched,
		FromDate:  cfg.Poll.FromDate,
		Heartbeat: a.heartbeat,
	})
	return nil
}

// Err returns the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Done is closed once the app context is cancelled.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Start launches the poll loop, the settings watcher and the systemd watchdog.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	a.sup.GoRestart("poller", func(c context.Context) error {
		a.polling.Store(true)
		defer a.polling.Store(false)
		return a.poller.Run(c)
	}, supervisor.WithRestartBackoff(time.Second, time.Minute), supervisor.WithMaxRestarts(10))

	sub := a.cfgm.Subscribe(4)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", a.cfgm.Watch)
	a.sup.Go0("systemd.watchdog", a.watchdog)

	a.sdNotify(daemon.SdNotifyReady)
	a.log.Info("bot started",
		logx.String("chat_id", a.creds.ChatID),
		logx.String("config", a.cfgm.Path()),
		logx.String("schedule", a.poller.Schedule().String()),
	)
	return nil
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			a.applyConfig(lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

// applyConfig applies hot-reloadable sections. api and storage are fixed at startup.
func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, fields := config.SummarizeChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}

	a.logs.Apply(mapLoggingConfig(newCfg))

	if sched, err := mapSchedule(newCfg); err != nil {
		a.log.Warn("invalid schedule; keeping previous", logx.Err(err))
	} else {
		a.poller.SetSchedule(sched)
	}

	if ncfg, err := mapNotifierConfig(newCfg); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		a.notif.Apply(ncfg)
	}

	if oldCfg != nil && oldCfg.API != newCfg.API {
		a.log.Warn("api config changed; restart required for changes to take effect")
	}

	fields = append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, fields...)
	a.log.Info("config applied", fields...)
}

func (a *App) heartbeat() {
	n := a.cycles.Add(1)
	a.log.Debug("cycle finished", logx.Uint64("cycles", n))
	a.sdNotify(fmt.Sprintf("STATUS=cycles=%d from_date=%d", n, a.poller.Window().FromDate))
}

// Stop cancels all loops and waits for them, bounded by ctx.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sdNotify(daemon.SdNotifyStopping)

	var err error
	if a.sup != nil {
		wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = a.sup.Stop(wctx)
		cancel()
		if err != nil {
			a.log.Warn("supervisor stop", logx.Err(err))
		}
	}
	a.log.Info("stopped")
	a.close()
	return err
}

func (a *App) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
}
