// Package bot maps Telegram updates to the onboarding, pricing, purchase,
// promo and level operations.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"

	"aura-bot/internal/level"
	"aura-bot/internal/models"
	"aura-bot/internal/notify"
	"aura-bot/internal/onboarding"
	"aura-bot/internal/promo"
	"aura-bot/internal/purchase"
	"aura-bot/internal/referral"
	"aura-bot/internal/remnawave"
)

// AccountReader fetches the panel account behind a user's AuraID.
type AccountReader interface {
	GetUser(ctx context.Context, uuid string) (*remnawave.User, error)
}

type Deps struct {
	Resolver  *onboarding.Resolver
	Purchases *purchase.Machine
	Promos    *promo.Service
	Levels    *level.Engine
	Referrals *referral.Ledger
	Panel     AccountReader
	Notifier  notify.Notifier
}

type Options struct {
	OperatorID   int64
	PanelTimeout time.Duration
}

type Bot struct {
	api      *telego.Bot
	deps     Deps
	opts     Options
	username string
}

func New(api *telego.Bot, deps Deps, opts Options) *Bot {
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if opts.PanelTimeout <= 0 {
		opts.PanelTimeout = 10 * time.Second
	}
	return &Bot{api: api, deps: deps, opts: opts}
}

// Start receives updates by long polling and blocks until ctx is done or the
// handler stops.
func (b *Bot) Start(ctx context.Context) error {
	me, err := b.api.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("get bot info: %w", err)
	}
	b.username = me.Username

	updates, err := b.api.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}
	bh, err := th.NewBotHandler(b.api, updates)
	if err != nil {
		return fmt.Errorf("create bot handler: %w", err)
	}
	b.register(bh)

	go func() {
		<-ctx.Done()
		if err := bh.Stop(); err != nil {
			slog.Error("Failed to stop bot handler", "error", err)
		}
	}()

	slog.InfoContext(ctx, "Bot started", "username", b.username)
	return bh.Start()
}

func (b *Bot) register(bh *th.BotHandler) {
	bh.Handle(b.onStart, th.CommandEqual("start"))
	bh.Handle(b.onHelp, th.CommandEqual("help"))
	bh.Handle(b.onReply, th.CommandEqual("reply"))
	bh.Handle(b.onPromo, th.CommandEqual("promo"))

	bh.Handle(b.onMenu, th.CallbackDataEqual(cbMenu))
	bh.Handle(b.onBuy, th.CallbackDataEqual(cbBuy))
	bh.Handle(b.onPlan, th.CallbackDataPrefix(cbPlanPrefix))
	bh.Handle(b.onRef, th.CallbackDataEqual(cbRef))
	bh.Handle(b.onMyRefs, th.CallbackDataEqual(cbMyRefs))
	bh.Handle(b.onManage, th.CallbackDataEqual(cbManage))
	bh.Handle(b.onPromote, th.CallbackDataPrefix(cbPromotePrefix))
	bh.Handle(b.onGrant, th.CallbackDataPrefix(cbGrantPrefix))
	bh.Handle(b.onConnect, th.CallbackDataEqual(cbConnect))

	bh.Handle(b.onPreCheckout, th.AnyPreCheckoutQuery())
	bh.Handle(b.onSuccessfulPayment, successfulPayment)
}

func successfulPayment(_ context.Context, update telego.Update) bool {
	return update.Message != nil && update.Message.SuccessfulPayment != nil
}

func identity(u telego.User) onboarding.Identity {
	return onboarding.Identity{
		TelegramID: u.ID,
		Username:   u.Username,
		FullName:   strings.TrimSpace(u.FirstName + " " + u.LastName),
		Language:   u.LanguageCode,
	}
}

// resolve loads the sender and answers with the refusal text when the
// sender may not use the bot.
func (b *Bot) resolve(ctx *th.Context, from telego.User) (*models.User, bool) {
	user, err := b.deps.Resolver.Resolve(ctx.Context(), identity(from))
	if err != nil {
		slog.WarnContext(ctx.Context(), "Failed to resolve user", "telegram_id", from.ID, "error", err)
		b.send(ctx, from.ID, errorText(err), nil)
		return nil, false
	}
	return user, true
}

func (b *Bot) send(ctx *th.Context, chatID int64, text string, markup telego.ReplyMarkup) {
	msg := tu.Message(tu.ID(chatID), text).WithParseMode(telego.ModeHTML)
	if markup != nil {
		msg = msg.WithReplyMarkup(markup)
	}
	if _, err := ctx.Bot().SendMessage(ctx.Context(), msg); err != nil {
		slog.WarnContext(ctx.Context(), "Failed to send message", "telegram_id", chatID, "error", err)
	}
}

func (b *Bot) answer(ctx *th.Context, query *telego.CallbackQuery, alert string) {
	params := tu.CallbackQuery(query.ID)
	if alert != "" {
		params = params.WithText(alert).WithShowAlert()
	}
	if err := ctx.Bot().AnswerCallbackQuery(ctx.Context(), params); err != nil {
		slog.DebugContext(ctx.Context(), "Failed to answer callback", "error", err)
	}
}

// panelAccount fetches the panel account of user. A missing AuraID or a
// panel failure yields nil.
func (b *Bot) panelAccount(ctx context.Context, user models.User) *remnawave.User {
	if b.deps.Panel == nil || user.AuraID == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, b.opts.PanelTimeout)
	defer cancel()
	account, err := b.deps.Panel.GetUser(ctx, *user.AuraID)
	if err != nil {
		slog.WarnContext(ctx, "Failed to fetch panel account", "telegram_id", user.TelegramID, "error", err)
		return nil
	}
	return account
}
