package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/mymmrac/telego"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"aura-bot/internal/admin"
	"aura-bot/internal/bot"
	"aura-bot/internal/notify"
	"aura-bot/internal/payment"
	"aura-bot/internal/webhook"
	"aura-bot/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot, the admin API and the background sweeper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig()
	api, err := telego.NewBot(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}
	notifier := notify.NewTelegram(api, cfg.AdminChatID)

	a, err := newApp(ctx, cfg, notifier, payment.NewSender(api, cfg.PaymentProviderToken))
	if err != nil {
		return err
	}
	defer a.Close()

	auth, err := admin.NewAuth(cfg.AdminUsername, cfg.AdminPassword, cfg.AdminPasswordHash, a.sessions)
	if err != nil {
		return fmt.Errorf("admin auth: %w", err)
	}
	router := admin.NewRouter(admin.Deps{
		DB:        a.db,
		Auth:      auth,
		Limiter:   admin.NewRateLimiter(a.rdb),
		Levels:    a.levels,
		Promos:    a.promos,
		Purchases: a.purchases,
		Blacklist: a.blacklist,
		Gate:      a.gate,
		Pricing:   a.pricing,
		Settings:  a.settings,
		Referrals: a.referrals,
		Gatherer:  a.registry,
		Extra: []admin.Routes{
			webhook.NewHandler(cfg.WebhookSecret, cfg.WebhookAllowedCIDRs, a.locks, notifier, a.metrics),
		},
	}, admin.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		StaleAfter:     cfg.PurchaseStaleAfter,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	tg := bot.New(api, bot.Deps{
		Resolver:  a.resolver,
		Purchases: a.purchases,
		Promos:    a.promos,
		Levels:    a.levels,
		Referrals: a.referrals,
		Panel:     a.panel,
		Notifier:  notifier,
	}, bot.Options{OperatorID: cfg.AdminChatID, PanelTimeout: cfg.PanelTimeout})

	sweeper := worker.NewSweeper(a.purchases, a.sessions, worker.Options{
		Schedule:   cfg.SweepSchedule,
		StaleAfter: cfg.PurchaseStaleAfter,
	})
	if err := sweeper.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Admin API listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin api: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if err := tg.Start(gctx); err != nil {
			return fmt.Errorf("telegram bot: %w", err)
		}
		return nil
	})

	slog.Info("Service started successfully")
	err = g.Wait()
	slog.Info("Service stopped")
	return err
}
