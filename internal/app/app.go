package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"tgtrigger/internal/calendar"
	"tgtrigger/internal/config"
	"tgtrigger/internal/dispatch"
	"tgtrigger/internal/eventbus"
	"tgtrigger/internal/runtime/supervisor"
	"tgtrigger/internal/storage"
	"tgtrigger/internal/trigger"
	telegram "tgtrigger/internal/transport/telegram/adapter"
	logx "tgtrigger/pkg/logx"
)

// App wires the bot, the dispatcher and the trigger emitter.
type App struct {
	cfgm *config.ConfigManager

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	bot     *telegram.Adapter
	disp    *dispatch.Dispatcher
	src     *calendar.Source
	store   storage.Store
	emitter *trigger.Emitter
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	bot, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, logx.NewConsole("INFO").With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(logConfig(cfg), bot)
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	loc, err := calendar.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		_ = logs.Close()
		return nil, err
	}
	src := calendar.NewSource(nil, loc)

	sc, err := storageConfig(cfg)
	if err != nil {
		_ = logs.Close()
		return nil, err
	}
	store, err := storage.Open(sc, src.Now(), log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logs.Close()
		return nil, err
	}

	poll, backoff, err := cfg.Scheduler.Durations()
	if err != nil {
		_ = store.Close()
		_ = logs.Close()
		return nil, err
	}

	bus := eventbus.New()
	emitter := trigger.NewEmitter(trigger.NewRegistry(), trigger.Options{
		Source:           src,
		Store:            store,
		PollInterval:     poll,
		Bus:              bus,
		Logger:           log,
		RestartOnFailure: cfg.Scheduler.RestartOnFailure,
		RestartBackoff:   backoff,
	})
	disp := dispatch.New(dispatch.Options{
		Logger: log,
		Owners: cfg.Telegram.OwnerUserIDs,
	})

	a := &App{
		cfgm:    cfgm,
		log:     log.With(logx.String("comp", "app")),
		logs:    logs,
		bus:     bus,
		bot:     bot,
		disp:    disp,
		src:     src,
		store:   store,
		emitter: emitter,
	}
	if err := registerConfigTriggers(emitter.Registry(), log.With(logx.String("comp", "trigger.action")), cfg.Triggers); err != nil {
		_ = store.Close()
		_ = logs.Close()
		return nil, err
	}
	if err := a.registerCommands(); err != nil {
		_ = store.Close()
		_ = logs.Close()
		return nil, err
	}

	disp.OnStartup(func(ctx context.Context) error {
		return emitter.Start(ctx, trigger.Runtime{Bot: bot, Dispatcher: disp})
	})
	disp.OnShutdown(emitter.Stop)

	log.Info("storage ready", logx.String("driver", driverName(sc.Driver)), logx.String("path", sc.Path))
	return a, nil
}

// Triggers is where the program registers its own triggers before Run.
func (a *App) Triggers() *trigger.Registry { return a.emitter.Registry() }

func (a *App) Dispatcher() *dispatch.Dispatcher { return a.disp }

func (a *App) Logger() logx.Logger { return a.log }

// Run serves until ctx is cancelled, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	sup := supervisor.New(ctx, supervisor.WithLogger(a.log))
	sup.Go("config.watch", a.cfgm.Watch)
	sup.Go("config.reload", a.reloadLoop)
	sup.Go("eventbus.log", a.eventLoop)

	// Registered last so READY is sent after the emitter has started.
	a.disp.OnStartup(func(ctx context.Context) error {
		a.notifyReady()
		sup.Go("systemd.watchdog", a.watchdogLoop)
		if err := a.bot.SetCommands(a.disp.Commands()); err != nil {
			a.log.Warn("set bot commands failed", logx.Err(err))
		}
		return nil
	})

	a.log.Info("starting", logx.String("tz", a.src.Location().String()), logx.Int("triggers", a.emitter.Registry().Len()))
	err := a.disp.Run(ctx, a.bot)
	a.notifyStopping()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if serr := sup.Stop(stopCtx); serr != nil && stopCtx.Err() != nil {
		a.log.Warn("background tasks did not stop in time", logx.Err(serr))
	}
	if cerr := a.store.Close(); cerr != nil {
		a.log.Warn("storage close failed", logx.Err(cerr))
	}
	a.log.Info("stopped")
	return errors.Join(err, a.logs.Close())
}

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ChatID:     cfg.Telegram.GroupLogID(),
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func storageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      strings.TrimSpace(cfg.Storage.Driver),
		Path:        strings.TrimSpace(cfg.Storage.Path),
		BusyTimeout: busy,
	}, nil
}

func driverName(d string) string {
	if d == "" {
		return "file"
	}
	return d
}
