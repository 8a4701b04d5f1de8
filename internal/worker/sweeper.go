// Package worker runs the periodic maintenance jobs of the bot.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type PurchaseSweeper interface {
	Sweep(ctx context.Context, olderThan time.Duration) (int64, error)
}

type SessionSweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type Options struct {
	Schedule   string
	StaleAfter time.Duration
}

// Sweeper cancels abandoned purchases and drops expired admin sessions on a
// cron schedule. Overlapping runs are skipped.
type Sweeper struct {
	purchases PurchaseSweeper
	sessions  SessionSweeper
	opts      Options
	cron      *cron.Cron
}

func NewSweeper(purchases PurchaseSweeper, sessions SessionSweeper, opts Options) *Sweeper {
	if opts.Schedule == "" {
		opts.Schedule = "0 * * * *"
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 7 * 24 * time.Hour
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Sweeper{
		purchases: purchases,
		sessions:  sessions,
		opts:      opts,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
	}
}

// Start runs one sweep immediately, then follows the schedule until ctx is done.
func (s *Sweeper) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.opts.Schedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule sweep %q: %w", s.opts.Schedule, err)
	}
	slog.InfoContext(ctx, "Background sweeper started", "schedule", s.opts.Schedule, "stale_after", s.opts.StaleAfter)

	s.RunOnce(ctx)
	s.cron.Start()
	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
		slog.Info("Background sweeper stopped")
	}()
	return nil
}

// RunOnce performs a single sweep of every job. Failures are logged.
func (s *Sweeper) RunOnce(ctx context.Context) {
	if s.purchases != nil {
		n, err := s.purchases.Sweep(ctx, s.opts.StaleAfter)
		if err != nil {
			slog.ErrorContext(ctx, "Purchase sweep failed", "error", err)
		} else {
			slog.DebugContext(ctx, "Purchase sweep finished", "cancelled", n)
		}
	}
	if s.sessions != nil {
		n, err := s.sessions.Sweep(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "Session sweep failed", "error", err)
		} else if n > 0 {
			slog.DebugContext(ctx, "Expired sessions removed", "count", n)
		}
	}
}
