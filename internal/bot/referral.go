package bot

import (
	"fmt"
	"html"
	"log/slog"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"

	"aura-bot/internal/level"
	"aura-bot/internal/onboarding"
)

const refListLimit = 20

func (b *Bot) onRef(ctx *th.Context, update telego.Update) error {
	query := update.CallbackQuery
	b.answer(ctx, query, "")
	user, ok := b.resolve(ctx, query.From)
	if !ok {
		return nil
	}

	thisMonth, err := b.deps.Referrals.CountThisMonth(ctx.Context(), user.ID)
	if err != nil {
		slog.ErrorContext(ctx.Context(), "Failed to count referrals", "telegram_id", user.TelegramID, "error", err)
		b.send(ctx, query.From.ID, msgGeneric, nil)
		return nil
	}
	quote, err := b.deps.Purchases.Quote(ctx.Context(), *user, 1)
	if err != nil {
		slog.ErrorContext(ctx.Context(), "Failed to quote", "telegram_id", user.TelegramID, "error", err)
		b.send(ctx, query.From.ID, msgGeneric, nil)
		return nil
	}

	row := []telego.InlineKeyboardButton{tu.InlineKeyboardButton("📈 Приглашённые").WithCallbackData(cbMyRefs)}
	if level.CanManage(user.Level) {
		row = append(row, tu.InlineKeyboardButton("🧭 Управление").WithCallbackData(cbManage))
	}
	kb := tu.InlineKeyboard(row, tu.InlineKeyboardRow(tu.InlineKeyboardButton("⬅️ Назад").WithCallbackData(cbMenu)))

	link := onboarding.RefLink(b.username, user.TelegramID)
	b.send(ctx, query.From.ID, referralText(*user, link, thisMonth, quote), kb)
	return nil
}

func (b *Bot) onMyRefs(ctx *th.Context, update telego.Update) error {
	query := update.CallbackQuery
	user, ok := b.resolve(ctx, query.From)
	if !ok {
		b.answer(ctx, query, "")
		return nil
	}
	edges, err := b.deps.Referrals.List(ctx.Context(), user.ID, refListLimit)
	if err != nil {
		slog.ErrorContext(ctx.Context(), "Failed to list referrals", "telegram_id", user.TelegramID, "error", err)
		b.answer(ctx, query, msgGeneric)
		return nil
	}
	if len(edges) == 0 {
		b.answer(ctx, query, msgNoReferrals)
		return nil
	}
	b.answer(ctx, query, "")
	b.send(ctx, query.From.ID, referralsText(edges), nil)
	return nil
}

func (b *Bot) onManage(ctx *th.Context, update telego.Update) error {
	query := update.CallbackQuery
	user, ok := b.resolve(ctx, query.From)
	if !ok {
		b.answer(ctx, query, "")
		return nil
	}
	if !level.CanManage(user.Level) {
		b.answer(ctx, query, "Недоступно для вашего уровня")
		return nil
	}
	edges, err := b.deps.Referrals.List(ctx.Context(), user.ID, refListLimit)
	if err != nil {
		slog.ErrorContext(ctx.Context(), "Failed to list referrals", "telegram_id", user.TelegramID, "error", err)
		b.answer(ctx, query, msgGeneric)
		return nil
	}
	b.answer(ctx, query, "")

	rows := make([][]telego.InlineKeyboardButton, 0, len(edges))
	for _, e := range edges {
		if e.Invited == nil {
			continue
		}
		label := fmt.Sprintf("🎓 %s (%s)", e.Invited.DisplayName(), levelName(e.Invited.Level))
		rows = append(rows, tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(label).WithCallbackData(fmt.Sprintf("%s%d", cbPromotePrefix, e.Invited.TelegramID)),
		))
	}
	b.send(ctx, query.From.ID, manageText(*user), tu.InlineKeyboard(rows...))
	return nil
}

func (b *Bot) onPromote(ctx *th.Context, update telego.Update) error {
	query := update.CallbackQuery
	target, ok := parsePromote(query.Data)
	if !ok {
		b.answer(ctx, query, "")
		return nil
	}
	user, ok := b.resolve(ctx, query.From)
	if !ok {
		b.answer(ctx, query, "")
		return nil
	}
	settable := level.Settable(user.Level)
	if len(settable) == 0 {
		b.answer(ctx, query, "Недоступно для вашего уровня")
		return nil
	}
	b.answer(ctx, query, "")

	rows := make([][]telego.InlineKeyboardButton, 0, len(settable))
	for i := len(settable) - 1; i >= 0; i-- {
		l := settable[i]
		rows = append(rows, tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(levelName(l)).WithCallbackData(fmt.Sprintf("%s%d_%s", cbGrantPrefix, target, l)),
		))
	}
	b.send(ctx, query.From.ID, "Выберите уровень, который хотите назначить пользователю:", tu.InlineKeyboard(rows...))
	return nil
}

func (b *Bot) onGrant(ctx *th.Context, update telego.Update) error {
	query := update.CallbackQuery
	target, to, ok := parseGrant(query.Data)
	if !ok {
		b.answer(ctx, query, "Недопустимый уровень")
		return nil
	}
	user, ok := b.resolve(ctx, query.From)
	if !ok {
		b.answer(ctx, query, "")
		return nil
	}

	change, err := b.deps.Levels.ChangeLevel(ctx.Context(), user.ID, target, to)
	if err != nil {
		b.answer(ctx, query, errorText(err))
		return nil
	}
	b.answer(ctx, query, "")
	b.send(ctx, query.From.ID, fmt.Sprintf("✅ Уровень пользователя <b>%s</b> изменён на <b>%s</b>.",
		html.EscapeString(change.Target.DisplayName()), levelName(change.To)), nil)
	return nil
}
