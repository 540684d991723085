// Package app wires the ticket watcher together: config, logging,
// storage, the Telegram transport, the broadcast pool, the per-source
// watch controllers and their schedules.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"ticketwatch/internal/broadcast"
	"ticketwatch/internal/config"
	"ticketwatch/internal/fetch"
	"ticketwatch/internal/scheduler"
	"ticketwatch/internal/sources/bili"
	"ticketwatch/internal/sources/cpp"
	"ticketwatch/internal/sources/mango"
	"ticketwatch/internal/sources/qigumi"
	"ticketwatch/internal/storage"
	kit "ticketwatch/internal/transport"
	"ticketwatch/internal/transport/telegram"
	"ticketwatch/internal/watch"
	logx "ticketwatch/pkg/logx"
	"ticketwatch/pkg/systemd"
)

const (
	defaultRebuildAfter  = 500
	defaultScheduleCPP   = "3s"
	defaultScheduleOther = "600ms"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	cfgMu sync.RWMutex
	cfg   *config.Config

	store       storage.Store
	subs        *subscriptions
	adapter     kit.Adapter
	broadcaster *broadcast.Service
	sched       *scheduler.Service
	throttle    *watch.Throttle
	controllers []*watch.Controller
}

func New(cfgPath string) *App {
	return &App{cfgMgr: config.NewManager(cfgPath)}
}

// Run brings the whole watcher up and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	cfg, err := a.cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.setConfig(cfg)

	svc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	a.logSvc = svc
	a.log = log
	defer a.logSvc.Close()
	a.cfgMgr.SetLogger(log.With(logx.String("component", "config")))

	if err := a.setup(ctx, cfg); err != nil {
		return err
	}
	return a.run(ctx)
}

func (a *App) setup(ctx context.Context, cfg *config.Config) error {
	var err error

	storeCfg, err := storageConfig(cfg)
	if err != nil {
		return err
	}
	a.store, err = storage.Open(storeCfg, a.log.With(logx.String("component", "storage")))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	a.subs = newSubscriptions(a.store, a.log.With(logx.String("component", "subs")))
	if err := a.subs.load(ctx); err != nil {
		return fmt.Errorf("load subscriptions: %w", err)
	}
	if n := len(a.subs.list()); n > 0 {
		a.log.Info("subscriptions restored", logx.Int("chats", n))
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return err
	}
	a.adapter, err = telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, a.log.With(logx.String("component", "telegram")))
	if err != nil {
		return fmt.Errorf("telegram adapter: %w", err)
	}

	a.broadcaster = broadcast.New(broadcast.Config{
		Workers:    cfg.Broadcast.Workers,
		RatePerSec: cfg.Broadcast.RatePerSec,
		RetryMax:   cfg.Broadcast.RetryMax,
	}, a.adapter, a.subs.targets, a.log.With(logx.String("component", "broadcast")))

	iv, err := throttleIntervals(cfg)
	if err != nil {
		return err
	}
	a.throttle = watch.NewThrottle(iv)

	a.sched = scheduler.New(a.log.With(logx.String("component", "scheduler")))
	if err := a.buildWatchers(cfg); err != nil {
		return err
	}
	return nil
}

// buildWatchers constructs one controller plus one scheduler job per
// enabled source. Each source gets its own HTTP client so rotation
// thresholds count per upstream.
func (a *App) buildWatchers(cfg *config.Config) error {
	rebuildAfter := int64(cfg.Watch.RebuildAfter)
	if rebuildAfter <= 0 {
		rebuildAfter = defaultRebuildAfter
	}
	newClient := func(name string) *fetch.Client {
		return fetch.New(fetch.Config{RebuildAfter: rebuildAfter},
			a.log.With(logx.String("component", "fetch"), logx.String("source", name)))
	}
	notify := func(name, text string) {
		a.broadcaster.Broadcast(name, text)
	}

	add := func(src watch.Source, schedule, fallback string) error {
		ctrl := watch.NewController(src, a.throttle, notify, a.log)
		a.controllers = append(a.controllers, ctrl)
		if strings.TrimSpace(schedule) == "" {
			schedule = fallback
		}
		return a.sched.Add("watch_"+src.Name(), schedule, ctrl.Tick)
	}

	w := cfg.Watch
	if w.CPP != nil && w.CPP.Enabled {
		src := cpp.New(cpp.Config{
			EventID:    w.CPP.EventID,
			JSessionID: w.CPP.JSessionID,
			Token:      w.CPP.Token,
		}, newClient("cpp"))
		if err := add(src, w.CPP.Schedule, defaultScheduleCPP); err != nil {
			return err
		}
	}
	if w.Bili != nil && w.Bili.Enabled {
		src := bili.New(bili.Config{
			ProjectIDs: w.Bili.ProjectIDs,
			Cookies: bili.Cookies{
				SessData:        w.Bili.Cookies.SessData,
				BiliTicket:      w.Bili.Cookies.BiliTicket,
				DedeUserID:      w.Bili.Cookies.DedeUserID,
				DedeUserIDCkMd5: w.Bili.Cookies.DedeUserIDCkMd5,
				SID:             w.Bili.Cookies.SID,
			},
		}, newClient("bili"))
		if err := add(src, w.Bili.Schedule, defaultScheduleOther); err != nil {
			return err
		}
	}
	if w.Mango != nil && w.Mango.Enabled {
		src := mango.New(mango.Config{GoodsIDs: w.Mango.GoodsIDs}, newClient("mango"))
		if err := add(src, w.Mango.Schedule, defaultScheduleOther); err != nil {
			return err
		}
	}
	if w.Qigumi != nil && w.Qigumi.Enabled {
		src := qigumi.New(qigumi.Config{GoodsIDs: w.Qigumi.GoodsIDs}, newClient("qigumi"))
		if err := add(src, w.Qigumi.Schedule, defaultScheduleOther); err != nil {
			return err
		}
	}

	if len(a.controllers) == 0 {
		a.log.Warn("no sources enabled; only commands will work")
	}
	return nil
}

func (a *App) run(ctx context.Context) error {
	msgCh := make(chan kit.Message, 64)
	if err := a.adapter.Start(ctx, msgCh); err != nil {
		return fmt.Errorf("start telegram: %w", err)
	}
	a.broadcaster.Start(ctx)
	if err := a.sched.Start(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		a.commandLoop(ctx, msgCh)
	}()
	go func() {
		defer wg.Done()
		_ = a.cfgMgr.Watch(ctx)
	}()
	go func() {
		defer wg.Done()
		a.reloadLoop(ctx)
	}()
	go systemd.RunWatchdog(ctx)

	systemd.NotifyReady()
	a.log.Info("ticket watcher up", logx.Int("sources", len(a.controllers)))

	<-ctx.Done()
	systemd.NotifyStopping()
	a.shutdown()
	wg.Wait()
	return nil
}

func (a *App) shutdown() {
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.sched.Stop(stopCtx)
	a.broadcaster.Stop(stopCtx)
	if err := a.adapter.Stop(stopCtx); err != nil {
		a.log.Warn("telegram stop", logx.Err(err))
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close", logx.Err(err))
		}
	}
	a.log.Info("ticket watcher stopped")
}

// reloadLoop applies the hot-reloadable parts of a config update:
// logging and the throttle intervals. Source sets and schedules need a
// restart and are deliberately left alone.
func (a *App) reloadLoop(ctx context.Context) {
	updates := a.cfgMgr.Subscribe(1)
	defer a.cfgMgr.Unsubscribe(updates)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-updates:
			if !ok {
				return
			}
			a.applyConfig(cfg)
		}
	}
}

func (a *App) applyConfig(cfg *config.Config) {
	a.setConfig(cfg)

	a.logSvc.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	iv, err := throttleIntervals(cfg)
	if err != nil {
		a.log.Warn("config update has invalid intervals", logx.Err(err))
		return
	}
	a.throttle.SetIntervals(iv)
	a.log.Info("config applied",
		logx.Duration("change_interval", iv.ChangeEvery),
		logx.Duration("heartbeat_interval", iv.HeartbeatEvery))
}

func (a *App) setConfig(cfg *config.Config) {
	a.cfgMu.Lock()
	a.cfg = cfg
	a.cfgMu.Unlock()
}

func (a *App) currentConfig() *config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg
}

func throttleIntervals(cfg *config.Config) (watch.Intervals, error) {
	change, err := config.ParseDurationOrDefault("watch.change_interval", cfg.Watch.ChangeInterval, 3*time.Second)
	if err != nil {
		return watch.Intervals{}, err
	}
	heartbeat, err := config.ParseDurationOrDefault("watch.heartbeat_interval", cfg.Watch.HeartbeatInterval, 9*time.Second)
	if err != nil {
		return watch.Intervals{}, err
	}
	minGap, err := config.ParseDurationOrDefault("watch.min_gap", cfg.Watch.MinGap, 100*time.Millisecond)
	if err != nil {
		return watch.Intervals{}, err
	}
	return watch.Intervals{ChangeEvery: change, HeartbeatEvery: heartbeat, MinGap: minGap}, nil
}

func storageConfig(cfg *config.Config) (storage.Config, error) {
	if cfg.Storage == nil {
		return storage.Config{}, nil
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, nil
}
