package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"aura-bot/internal/config"
	"aura-bot/internal/database"
	"aura-bot/internal/level"
	"aura-bot/internal/lock"
	"aura-bot/internal/logger"
	"aura-bot/internal/metrics"
	"aura-bot/internal/notify"
	"aura-bot/internal/onboarding"
	"aura-bot/internal/pricing"
	"aura-bot/internal/promo"
	"aura-bot/internal/purchase"
	"aura-bot/internal/referral"
	"aura-bot/internal/remnawave"
	"aura-bot/internal/session"
	"aura-bot/internal/settings"
)

const settingsCacheTTL = 30 * time.Second

// app holds the services shared by every command.
type app struct {
	cfg      *config.Config
	db       *gorm.DB
	rdb      *redis.Client
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	notifier notify.Notifier

	settings  *settings.Store
	pricing   *pricing.Source
	gate      *onboarding.Gate
	referrals *referral.Ledger
	levels    *level.Engine
	promos    *promo.Service
	panel     *remnawave.Client
	blacklist *onboarding.Blacklist
	resolver  *onboarding.Resolver
	purchases *purchase.Machine
	locks     *lock.Redis
	sessions  session.Store
}

// loadConfig reads the environment and installs the process logger.
func loadConfig() *config.Config {
	cfg := config.LoadConfig()
	logger.Setup(cfg.Env, cfg.LogLevel)
	return cfg
}

// newApp connects the stores and builds the domain services. The notifier
// and invoicer are nil for commands that run without the Telegram bot.
func newApp(ctx context.Context, cfg *config.Config, notifier notify.Notifier, invoicer purchase.Invoicer) (*app, error) {
	// Connect to Database
	db, err := database.ConnectPostgres(cfg)
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	// Connect to Redis
	rdb, err := database.ConnectRedis(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("could not connect to redis: %w", err)
	}

	if notifier == nil {
		notifier = notify.Nop{}
	}
	a := &app{cfg: cfg, db: db, rdb: rdb, notifier: notifier}
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.MustNewMetrics(a.registry)

	a.settings = settings.NewStore(db, settingsCacheTTL)
	a.pricing = pricing.NewSource(pricing.Defaults(cfg.Pricing), a.settings)
	a.gate = onboarding.NewGate(a.settings, cfg.ClosedMode)
	a.referrals = referral.NewLedger(db)

	a.levels = level.NewEngine(db, notifier)
	a.levels.SetMetrics(a.metrics)
	a.promos = promo.NewService(db)
	a.promos.SetMetrics(a.metrics)

	a.panel = remnawave.NewClient(cfg.RemnawaveURL, cfg.RemnawaveKey, cfg.PanelTimeout)
	a.blacklist = onboarding.NewBlacklist(db, a.panel)
	a.resolver = onboarding.NewResolver(db, a.gate, a.blacklist, a.referrals, notifier)

	a.locks = lock.NewRedis(rdb, "aura:")
	a.purchases = purchase.NewMachine(purchase.Deps{
		DB:        db,
		Pricing:   a.pricing,
		Referrals: a.referrals,
		Panel:     a.panel,
		Invoicer:  invoicer,
		Notifier:  notifier,
		Guard:     a.locks,
		Metrics:   a.metrics,
	}, purchase.Options{
		Currency:     cfg.Currency,
		Squads:       cfg.RemnawaveSquads,
		PanelTimeout: cfg.PanelTimeout,
	})

	switch cfg.SessionBackend {
	case "memory":
		a.sessions = session.NewMemory(cfg.AdminSessionTTL)
	default:
		a.sessions = session.NewRedis(rdb, cfg.AdminSessionTTL)
	}

	slog.Info("Services initialised", "env", cfg.Env, "session_backend", cfg.SessionBackend)
	return a, nil
}

func (a *app) Close() {
	if err := a.rdb.Close(); err != nil {
		slog.Warn("Failed to close redis", "error", err)
	}
	if sqlDB, err := a.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Warn("Failed to close database", "error", err)
		}
	}
}
