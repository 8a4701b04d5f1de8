package bot

import (
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
)

func (b *Bot) onPromo(ctx *th.Context, update telego.Update) error {
	message := update.Message
	if message.From == nil {
		return nil
	}
	code := commandArgs(message.Text)
	if code == "" {
		b.send(ctx, message.Chat.ID, msgPromoUsage, nil)
		return nil
	}
	user, ok := b.resolve(ctx, *message.From)
	if !ok {
		return nil
	}

	res, err := b.deps.Promos.Redeem(ctx.Context(), code, user.ID)
	if err != nil {
		slog.InfoContext(ctx.Context(), "Promo code refused", "telegram_id", user.TelegramID, "error", err)
		b.send(ctx, message.Chat.ID, errorText(err), nil)
		return nil
	}
	b.send(ctx, message.Chat.ID, redeemedText(res.PreviousLevel, res.Level, res.Discount, res.Code.Type), nil)
	return nil
}

// onHelp forwards the user's text to the operator.
func (b *Bot) onHelp(ctx *th.Context, update telego.Update) error {
	message := update.Message
	if message.From == nil {
		return nil
	}
	text := commandArgs(message.Text)
	if text == "" {
		b.send(ctx, message.Chat.ID, msgHelp, nil)
		return nil
	}

	from := message.From
	report := fmt.Sprintf("📨 Сообщение от пользователя:\nID: <code>%d</code>\nИмя: %s\n", from.ID,
		html.EscapeString(strings.TrimSpace(from.FirstName+" "+from.LastName)))
	if from.Username != "" {
		report += "@" + html.EscapeString(from.Username) + "\n"
	}
	report += "\n" + html.EscapeString(text)

	if err := b.deps.Notifier.NotifyOperator(ctx.Context(), report); err != nil {
		slog.ErrorContext(ctx.Context(), "Failed to forward help request", "telegram_id", from.ID, "error", err)
		b.send(ctx, message.Chat.ID, msgGeneric, nil)
		return nil
	}
	b.send(ctx, message.Chat.ID, msgHelpSent, nil)
	return nil
}

// onReply lets the operator answer a user: /reply <telegram_id> <text>.
func (b *Bot) onReply(ctx *th.Context, update telego.Update) error {
	message := update.Message
	if message.From == nil || b.opts.OperatorID == 0 || message.From.ID != b.opts.OperatorID {
		return nil
	}
	rawID, text, _ := strings.Cut(commandArgs(message.Text), " ")
	userID, err := strconv.ParseInt(rawID, 10, 64)
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		b.send(ctx, message.Chat.ID, msgReplyUsage, nil)
		return nil
	}

	if _, err := ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(userID), text)); err != nil {
		b.send(ctx, message.Chat.ID, "⚠️ Не удалось отправить сообщение: "+html.EscapeString(err.Error()), nil)
		return nil
	}
	b.send(ctx, message.Chat.ID, msgReplySent, nil)
	return nil
}
