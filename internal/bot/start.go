package bot

import (
	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"

	"aura-bot/internal/models"
	"aura-bot/internal/remnawave"
)

func (b *Bot) onStart(ctx *th.Context, update telego.Update) error {
	message := update.Message
	if message.From == nil || message.Chat.Type != telego.ChatTypePrivate {
		return nil
	}

	res, err := b.deps.Resolver.Start(ctx.Context(), identity(*message.From), commandArgs(message.Text))
	if err != nil {
		b.send(ctx, message.Chat.ID, errorText(err), nil)
		return nil
	}
	b.showMenu(ctx, message.Chat.ID, *res.User)
	return nil
}

func (b *Bot) onMenu(ctx *th.Context, update telego.Update) error {
	query := update.CallbackQuery
	b.answer(ctx, query, "")
	user, ok := b.resolve(ctx, query.From)
	if !ok {
		return nil
	}
	b.showMenu(ctx, query.From.ID, *user)
	return nil
}

func (b *Bot) showMenu(ctx *th.Context, chatID int64, user models.User) {
	account := b.panelAccount(ctx.Context(), user)
	var rows [][]telego.InlineKeyboardButton

	if user.Level != models.LevelPlatinum {
		label := "📦 Купить"
		if user.AuraID != nil {
			label = "📦 Продлить"
		}
		rows = append(rows, tu.InlineKeyboardRow(tu.InlineKeyboardButton(label).WithCallbackData(cbBuy)))
	}
	if connectable(account) {
		rows = append(rows, tu.InlineKeyboardRow(tu.InlineKeyboardButton("✨ Подключиться").WithCallbackData(cbConnect)))
	}
	rows = append(rows, tu.InlineKeyboardRow(tu.InlineKeyboardButton("👥 Пригласить друга").WithCallbackData(cbRef)))

	var text string
	if account != nil {
		text = menuText(user, &account.ExpireAt)
	} else {
		text = menuText(user, nil)
	}
	b.send(ctx, chatID, text, tu.InlineKeyboard(rows...))
}

func connectable(account *remnawave.User) bool {
	return account != nil && account.SubscriptionURL != "" &&
		account.Status != remnawave.StatusExpired && account.Status != remnawave.StatusDisabled
}
