// Package app wires forumpulse together: config, logging, storage, the chat
// adapter, the collaborator clients and the orchestrator with its fixed job
// set.
package app

import (
	"context"
	"sync"

	"forumpulse/internal/classify"
	"forumpulse/internal/config"
	"forumpulse/internal/forum"
	"forumpulse/internal/orchestrator"
	"forumpulse/internal/report"
	"forumpulse/internal/storage"
	"forumpulse/internal/transport"
	"forumpulse/internal/transport/telegram"
	"forumpulse/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger

	adapter    *telegram.Adapter
	store      storage.Store
	forum      *forum.Client
	classifier *classify.Client
	reports    *report.Service
	orch       *orchestrator.Orchestrator

	ingestBatch int

	watchCancel context.CancelFunc
	cfgSub      chan *config.Config
	wg          sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole(cfg.Logging.Level)

	sendTimeout, err := config.ParseDurationField("telegram.timeout", cfg.Telegram.Timeout)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:   cfg.Telegram.Token,
		Timeout: sendTimeout,
	}, bootLog.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Chat: logx.ChatConfig{
			Enabled:    cfg.Logging.Chat.Enabled,
			MinLevel:   cfg.Logging.Chat.MinLevel,
			RatePerSec: cfg.Logging.Chat.RatePerSec,
		},
	})
	log = log.With(logx.String("comp", "app"))

	target := transport.ChatTarget{ChatID: cfg.Telegram.ReportChat, ThreadID: cfg.Telegram.ReportThreadID}
	if cfg.Logging.Chat.Enabled && target.ChatID != 0 {
		logs.SetChatTarget(adapter, target)
	}
	cfgm.SetLogger(logs.Logger().With(logx.String("comp", "config")))

	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, logs.Logger().With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	forumTimeout, err := config.ParseDurationField("forum.timeout", cfg.Forum.Timeout)
	if err != nil {
		return nil, err
	}
	forumClient, err := forum.New(forum.Config{
		BaseURL:    cfg.Forum.BaseURL,
		RatePerSec: cfg.Forum.RatePerSec,
		Timeout:    forumTimeout,
	}, logs.Logger().With(logx.String("comp", "forum")))
	if err != nil {
		return nil, err
	}

	classifyTimeout, err := config.ParseDurationField("classifier.timeout", cfg.Classifier.Timeout)
	if err != nil {
		return nil, err
	}
	classifier, err := classify.New(classify.Config{
		URL:       cfg.Classifier.URL,
		HealthURL: cfg.Classifier.HealthURL,
		Timeout:   classifyTimeout,
	}, logs.Logger().With(logx.String("comp", "classify")))
	if err != nil {
		return nil, err
	}

	orchCfg, err := orchestratorConfig(cfg)
	if err != nil {
		return nil, err
	}
	orch := orchestrator.New(orchCfg,
		logs.Logger().With(logx.String("comp", "orchestrator")),
		store, adapter, forumClient, classifier)

	reports := report.New(store, adapter, target,
		locationOf(orchCfg.Timezone), logs.Logger().With(logx.String("comp", "report")))

	a := &App{
		cfgm:        cfgm,
		logs:        logs,
		log:         log,
		adapter:     adapter,
		store:       store,
		forum:       forumClient,
		classifier:  classifier,
		reports:     reports,
		orch:        orch,
		ingestBatch: cfg.Orchestrator.IngestBatch,
	}
	if err := a.registerJobs(cfg); err != nil {
		return nil, err
	}
	return a, nil
}

// Orchestrator exposes the orchestrator for status inspection.
func (a *App) Orchestrator() *orchestrator.Orchestrator { return a.orch }

// Start brings up the orchestrator (which runs the collaborator pre-flight
// checks) and the config watcher.
func (a *App) Start(ctx context.Context) error {
	if err := a.orch.Start(ctx); err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	a.watchCancel = cancel
	a.cfgSub = a.cfgm.Subscribe(1)

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(watchCtx)
	}()
	go func() {
		defer a.wg.Done()
		a.reloadLoop(watchCtx)
	}()

	a.log.Info("forumpulse started")
	return nil
}

// reloadLoop applies hot-reloadable settings (logging only; job schedules and
// collaborator endpoints require a process restart).
func (a *App) reloadLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-a.cfgSub:
			if !ok || cfg == nil {
				return
			}
			a.logs.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
				Chat: logx.ChatConfig{
					Enabled:    cfg.Logging.Chat.Enabled,
					MinLevel:   cfg.Logging.Chat.MinLevel,
					RatePerSec: cfg.Logging.Chat.RatePerSec,
				},
			})
			a.log.Info("logging config applied", logx.String("level", cfg.Logging.Level))
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	if a.watchCancel != nil {
		a.watchCancel()
		a.watchCancel = nil
	}
	a.orch.Stop(ctx)
	if a.cfgSub != nil {
		a.cfgm.Unsubscribe(a.cfgSub)
		a.cfgSub = nil
	}
	a.wg.Wait()

	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close failed", logx.Err(err))
	}
	a.log.Info("forumpulse stopped")
	return a.logs.Close()
}
