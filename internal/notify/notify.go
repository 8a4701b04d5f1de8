// Package notify delivers short text messages to users and to the operator chat.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

type Notifier interface {
	Notify(ctx context.Context, telegramID int64, text string) error
	NotifyOperator(ctx context.Context, text string) error
}

// Telegram sends notifications through the bot API with HTML formatting.
type Telegram struct {
	bot        *telego.Bot
	operatorID int64
}

func NewTelegram(bot *telego.Bot, operatorID int64) *Telegram {
	return &Telegram{bot: bot, operatorID: operatorID}
}

func (t *Telegram) Notify(ctx context.Context, telegramID int64, text string) error {
	_, err := t.bot.SendMessage(ctx, tu.Message(tu.ID(telegramID), text).WithParseMode(telego.ModeHTML))
	if err != nil {
		return fmt.Errorf("send message to %d: %w", telegramID, err)
	}
	return nil
}

func (t *Telegram) NotifyOperator(ctx context.Context, text string) error {
	if t.operatorID == 0 {
		slog.WarnContext(ctx, "Operator chat is not configured, dropping notification", "text", text)
		return nil
	}
	return t.Notify(ctx, t.operatorID, text)
}

// Send delivers a message and only logs failures.
func Send(ctx context.Context, n Notifier, telegramID int64, text string) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, telegramID, text); err != nil {
		slog.WarnContext(ctx, "Failed to notify user", "telegram_id", telegramID, "error", err)
	}
}

// Operator delivers a message to the operator chat and only logs failures.
func Operator(ctx context.Context, n Notifier, text string) {
	if n == nil {
		return
	}
	if err := n.NotifyOperator(ctx, text); err != nil {
		slog.ErrorContext(ctx, "Failed to notify operator", "error", err, "text", text)
	}
}

// Nop discards every notification.
type Nop struct{}

func (Nop) Notify(context.Context, int64, string) error { return nil }

func (Nop) NotifyOperator(context.Context, string) error { return nil }
