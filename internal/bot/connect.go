package bot

import (
	"log/slog"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

func (b *Bot) onConnect(ctx *th.Context, update telego.Update) error {
	query := update.CallbackQuery
	b.answer(ctx, query, "")
	user, ok := b.resolve(ctx, query.From)
	if !ok {
		return nil
	}

	account := b.panelAccount(ctx.Context(), *user)
	if !connectable(account) {
		b.send(ctx, query.From.ID, msgNotActive, nil)
		return nil
	}

	png, err := qrcode.Encode(account.SubscriptionURL, qrcode.Medium, qrSize)
	if err != nil {
		slog.ErrorContext(ctx.Context(), "Failed to render QR code", "telegram_id", user.TelegramID, "error", err)
		b.send(ctx, query.From.ID, connectText(account.SubscriptionURL, account.ExpireAt), nil)
		return nil
	}

	kb := tu.InlineKeyboard(
		tu.InlineKeyboardRow(tu.InlineKeyboardButton("🔗 Открыть подписку").WithURL(account.SubscriptionURL)),
		tu.InlineKeyboardRow(tu.InlineKeyboardButton("⬅️ Назад").WithCallbackData(cbMenu)),
	)
	photo := tu.Photo(tu.ID(query.From.ID), tu.FileFromBytes(png, "connect.png")).
		WithCaption(connectText(account.SubscriptionURL, account.ExpireAt)).
		WithParseMode(telego.ModeHTML).
		WithReplyMarkup(kb)
	if _, err := ctx.Bot().SendPhoto(ctx.Context(), photo); err != nil {
		slog.WarnContext(ctx.Context(), "Failed to send QR code", "telegram_id", user.TelegramID, "error", err)
	}
	return nil
}
