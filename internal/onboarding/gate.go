// Package onboarding resolves Telegram identities into users. It owns the
// blacklist and the closed-mode gate applied on first contact.
package onboarding

import (
	"context"
	"log/slog"
	"strconv"

	"aura-bot/internal/settings"
)

const KeyClosedMode = "CLOSED_MODE_ENABLED"

type SettingsStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value, description, updatedBy string) error
}

// Gate is the closed-mode flag. A settings row overrides the environment
// default.
type Gate struct {
	store    SettingsStore
	fallback bool
}

func NewGate(store SettingsStore, fallback bool) *Gate {
	return &Gate{store: store, fallback: fallback}
}

// Enabled never fails. Store errors and unparsable values fall back to the
// environment default.
func (g *Gate) Enabled(ctx context.Context) bool {
	if g.store == nil {
		return g.fallback
	}
	raw, found, err := g.store.Get(ctx, KeyClosedMode)
	if err != nil {
		slog.WarnContext(ctx, "Closed mode lookup failed, using default", "error", err, "default", g.fallback)
		return g.fallback
	}
	if !found {
		return g.fallback
	}
	on, err := strconv.ParseBool(raw)
	if err != nil {
		slog.WarnContext(ctx, "Invalid closed mode value", "value", raw)
		return g.fallback
	}
	return on
}

func (g *Gate) SetEnabled(ctx context.Context, on bool, actor string) error {
	return g.store.Set(ctx, KeyClosedMode, strconv.FormatBool(on), "Only invited users can register", actor)
}

var _ SettingsStore = (*settings.Store)(nil)
