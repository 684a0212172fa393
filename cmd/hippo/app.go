package main

import (
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/packaginghippo/hippo/internal/assistant"
	"github.com/packaginghippo/hippo/internal/auth"
	"github.com/packaginghippo/hippo/internal/autoreply"
	"github.com/packaginghippo/hippo/internal/chat"
	"github.com/packaginghippo/hippo/internal/config"
	"github.com/packaginghippo/hippo/internal/db"
	"github.com/packaginghippo/hippo/internal/digest"
	"github.com/packaginghippo/hippo/internal/inquiry"
	"github.com/packaginghippo/hippo/internal/metrics"
	"github.com/packaginghippo/hippo/internal/notify"
	"github.com/packaginghippo/hippo/internal/presence"
	"github.com/packaginghippo/hippo/internal/redirect"
	"github.com/packaginghippo/hippo/internal/web"
	"gorm.io/gorm"
)

// app is every long-lived service built from one config.
type app struct {
	cfg       *config.Config
	db        *gorm.DB
	redis     *redis.Client
	metrics   *metrics.Metrics
	notifier  notify.Notifier
	presence  presence.Tracker
	chat      *chat.Service
	redirects *redirect.Service
	inquiries *inquiry.Service
	issuer    *auth.Issuer

	// Set only when ai.enabled.
	trigger   *autoreply.Trigger
	generator *autoreply.Generator
	worker    *autoreply.Worker

	// Set only when digest.enabled.
	scheduler *digest.Scheduler
}

// loadConfigAndDB loads the config file and opens the database it names.
func loadConfigAndDB(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

// newApp wires services together. Optional features stay nil when their
// config section is disabled.
func newApp(cfg *config.Config, gormDB *gorm.DB) (*app, error) {
	a := &app{
		cfg:       cfg,
		db:        gormDB,
		metrics:   metrics.New(),
		redirects: redirect.NewService(gormDB),
	}

	notifier, err := notify.New(cfg.Notify)
	if err != nil {
		return nil, err
	}
	a.notifier = notifier
	a.inquiries = inquiry.NewService(gormDB, notifier)

	switch cfg.Presence.Backend {
	case "redis":
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Presence.RedisAddr,
			Password: cfg.Presence.RedisPassword,
			DB:       cfg.Presence.RedisDB,
		})
		a.presence = presence.NewRedisTracker(a.redis, cfg.Chat.TypingWindow, nil)
	default:
		a.presence = presence.NewDBTracker(gormDB, cfg.Chat.TypingWindow, nil)
	}

	a.chat, err = chat.NewService(chat.Options{
		DB:       gormDB,
		Presence: a.presence,
		Roster:   chat.NewRoster(cfg.Chat.AgentNames),
	})
	if err != nil {
		return nil, err
	}

	if cfg.Admin.TokenSecret != "" {
		a.issuer, err = auth.NewIssuer(cfg.Admin.TokenSecret, cfg.Admin.TokenTTL, nil)
		if err != nil {
			return nil, err
		}
	}

	if cfg.AI.Enabled {
		if err := a.wireAI(); err != nil {
			return nil, err
		}
	}

	if cfg.Digest.Enabled {
		sender := digest.NewSender(gormDB, notifier, nil)
		a.scheduler, err = digest.NewScheduler(sender, cfg.Digest.Schedule)
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *app) wireAI() error {
	client := assistant.New(a.cfg.AI.APIKey, assistant.WithEndpoint(a.cfg.AI.Endpoint))

	trigger, err := autoreply.NewTrigger(autoreply.TriggerOpts{
		DB:   a.db,
		Chat: a.chat,
		Policy: autoreply.Policy{
			ReplyDelay: a.cfg.AI.ReplyDelay,
			Cooldown:   a.cfg.AI.Cooldown,
		},
		Metrics: a.metrics,
	})
	if err != nil {
		return err
	}
	generator, err := autoreply.NewGenerator(autoreply.GeneratorOpts{
		Chat:         a.chat,
		AI:           client,
		Notifier:     a.notifier,
		Metrics:      a.metrics,
		Model:        a.cfg.AI.Model,
		MaxTokens:    a.cfg.AI.MaxTokens,
		Temperature:  a.cfg.AI.Temperature,
		HistoryLimit: a.cfg.AI.HistoryLimit,
		SiteName:     a.cfg.Site.Name,
	})
	if err != nil {
		return err
	}
	worker, err := autoreply.NewWorker(autoreply.WorkerOpts{
		DB:           a.db,
		Generator:    generator,
		Wake:         trigger.Wake(),
		Workers:      a.cfg.AI.Workers,
		PollInterval: a.cfg.AI.PollInterval,
	})
	if err != nil {
		return err
	}
	a.trigger, a.generator, a.worker = trigger, generator, worker
	return nil
}

// webDeps maps the app onto the HTTP layer's dependencies.
func (a *app) webDeps() web.Deps {
	return web.Deps{
		DB:             a.db,
		Chat:           a.chat,
		Presence:       a.presence,
		Redirects:      a.redirects,
		Inquiries:      a.inquiries,
		Trigger:        a.trigger,
		Generator:      a.generator,
		Issuer:         a.issuer,
		Metrics:        a.metrics,
		SiteName:       a.cfg.Site.Name,
		StaticDir:      a.cfg.Server.StaticDir,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
	}
}

func (a *app) close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}
