package app

import (
	"context"
	"strings"
	"time"

	"slabot/internal/config"
	"slabot/internal/eventbus"
	"slabot/internal/notify"
	"slabot/internal/reminder"
	"slabot/internal/report"
	rtsup "slabot/internal/runtime/supervisor"
	"slabot/internal/storage"
	"slabot/internal/tracker"
	kit "slabot/internal/transport"
	telegram "slabot/internal/transport/telegram/adapter"
	"slabot/internal/transport/telegram/router"
	logx "slabot/pkg/logx"
	"slabot/pkg/systemd"
)

type App struct {
	cfgPath string
	cfgm    *config.Manager
	sup     *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  *eventbus.MemBus

	store   storage.Store
	adapter *telegram.Adapter
	sink    *notify.Sink
	cycle   *reminder.Cycle
	reg     *reminder.Registry
	subs    *reminder.Subscribers
	bcast   *reminder.Broadcaster
	cmdm    *router.CommandManager
	bot     *bot
	sd      *systemd.Notifier

	updates chan kit.Update
}

// validate rejects configs the components could not map, so a bad hot
// reload never replaces a good one.
func validate(_ context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := mapSettings(cfg); err != nil {
		return err
	}
	if _, err := mapPredicate(cfg); err != nil {
		return err
	}
	if _, err := mapNotifyConfig(cfg); err != nil {
		return err
	}
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	_, err := mapRegistryConfig(cfg)
	return err
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath, config.WithValidator(validate))
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validate(context.Background(), cfg); err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: pollTimeout}, bootLog)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg), ad)
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	bus := eventbus.New()

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	tc, err := mapTrackerConfig(cfg)
	if err != nil {
		return nil, err
	}
	client := tracker.New(tc, log.With(logx.String("comp", "jira")))

	nc, err := mapNotifyConfig(cfg)
	if err != nil {
		return nil, err
	}
	sink := notify.New(ad, nc, log.With(logx.String("comp", "notify")), bus)

	pred, err := mapPredicate(cfg)
	if err != nil {
		return nil, err
	}
	cycle := reminder.NewCycle(client, report.NewRenderer(client.BrowseURL), sink, cfg.Jira.Query, pred,
		log.With(logx.String("comp", "cycle")))

	rc, err := mapRegistryConfig(cfg)
	if err != nil {
		return nil, err
	}
	reg := reminder.NewRegistry(rc, cycle, log.With(logx.String("comp", "reminder")), bus)
	subs := reminder.NewSubscribers()

	every, err := config.ParseDurationField("reminder.broadcast_interval", cfg.Reminder.BroadcastInterval)
	if err != nil {
		return nil, err
	}
	bcast := reminder.NewBroadcaster(every, rc.Location, cycle, subs, log.With(logx.String("comp", "broadcast")))

	st, err := mapSettings(cfg)
	if err != nil {
		return nil, err
	}

	cmdm := router.NewCommandManager(log.With(logx.String("comp", "commands")), ad, store, router.Config{
		DefaultTimeout: 60 * time.Second,
		BotUsername:    ad.Username(),
	})
	cmdm.SetAccess(cfg.Telegram.AdminChatIDs, cfg.Telegram.OwnerUserIDs)

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		adapter: ad,
		sink:    sink,
		cycle:   cycle,
		reg:     reg,
		subs:    subs,
		bcast:   bcast,
		cmdm:    cmdm,
		sd:      systemd.New(log.With(logx.String("comp", "systemd"))),
		updates: make(chan kit.Update, 256),
	}
	a.bot = &bot{
		registry:    reg,
		subs:        subs,
		cycle:       cycle,
		bcast:       bcast,
		store:       store,
		started:     time.Now(),
		supervisors: a.supervisors,
		dropped:     bus.Dropped,
		now:         time.Now,
	}
	a.bot.settings.Store(&st)
	cmdm.SetCommands(a.bot.commands())
	return a, nil
}

func (a *App) supervisors() map[string]*rtsup.Supervisor {
	return map[string]*rtsup.Supervisor{
		"app":              a.sup,
		"telegram.adapter": a.adapter.Supervisor(),
		"commands":         a.cmdm.Supervisor(),
	}
}

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

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	if err := a.reg.Start(a.sup.Context()); err != nil {
		return err
	}
	a.bcast.Start(a.sup.Context())

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})
	a.sup.Go0("commands.menu", func(c context.Context) {
		if err := a.cmdm.UpdateMenu(c); err != nil {
			a.log.Warn("command menu update failed", logx.Err(err))
		}
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
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time), logx.Any("data", e.Data))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
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
				a.applyConfig(last, next)
				last = next
			}
		}
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})
	a.sup.Go0("systemd.watchdog", a.sd.Watchdog)

	a.sd.Ready()
	a.sd.Status("serving")
	a.log.Info("app started", logx.String("config", a.cfgPath), logx.String("bot", a.adapter.Username()))
	return nil
}

// applyConfig pushes a validated config into the live components.
// Sections listed in NeedsRestart keep their old values.
func (a *App) applyConfig(prev, next *config.Config) {
	ch := config.Summarize(prev, next)
	if ch.Empty() {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if len(ch.NeedsRestart) > 0 {
		a.log.Warn("config changed; restart required for these sections",
			logx.String("sections", strings.Join(ch.NeedsRestart, ",")))
	}

	a.logs.Apply(mapLogConfig(next))
	a.cmdm.SetAccess(next.Telegram.AdminChatIDs, next.Telegram.OwnerUserIDs)

	if nc, err := mapNotifyConfig(next); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		a.sink.Apply(nc)
	}
	if p, err := mapPredicate(next); err != nil {
		a.log.Warn("invalid urgency config; keeping previous", logx.Err(err))
	} else {
		a.cycle.SetPredicate(p)
	}
	a.cycle.SetQuery(next.Jira.Query)
	if st, err := reloadSettings(a.bot.current(), next); err != nil {
		a.log.Warn("invalid reminder defaults; keeping previous", logx.Err(err))
	} else {
		a.bot.settings.Store(&st)
	}

	a.bus.Publish(eventbus.Event{Type: eventbus.ConfigReloaded, Time: time.Now(), Data: ch.Sections})
	fields := append([]logx.Field{logx.String("changed", strings.Join(ch.Sections, ","))}, ch.Attrs...)
	a.log.Info("config reloaded", fields...)
}
