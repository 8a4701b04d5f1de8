package bot

import (
	"errors"
	"html"
	"log/slog"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"

	"aura-bot/internal/apperrors"
	"aura-bot/internal/notify"
	"aura-bot/internal/payment"
	"aura-bot/internal/pricing"
	"aura-bot/internal/purchase"
)

func (b *Bot) onBuy(ctx *th.Context, update telego.Update) error {
	query := update.CallbackQuery
	b.answer(ctx, query, "")
	user, ok := b.resolve(ctx, query.From)
	if !ok {
		return nil
	}

	quotes := make([]pricing.Breakdown, 0, len(pricing.Months))
	for _, m := range pricing.Months {
		q, err := b.deps.Purchases.Quote(ctx.Context(), *user, m)
		if err != nil {
			slog.ErrorContext(ctx.Context(), "Failed to quote plans", "telegram_id", user.TelegramID, "error", err)
			b.send(ctx, query.From.ID, "⚠️ Произошла ошибка при загрузке тарифов. Попробуйте позже.", nil)
			return nil
		}
		quotes = append(quotes, q)
	}

	kb := tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("1 месяц").WithCallbackData(cbPlanPrefix+"1"),
			tu.InlineKeyboardButton("3 месяца").WithCallbackData(cbPlanPrefix+"3"),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("6 месяцев").WithCallbackData(cbPlanPrefix+"6"),
			tu.InlineKeyboardButton("12 месяцев").WithCallbackData(cbPlanPrefix+"12"),
		),
		tu.InlineKeyboardRow(tu.InlineKeyboardButton("⬅️ Назад").WithCallbackData(cbMenu)),
	)
	b.send(ctx, query.From.ID, plansText(quotes), kb)
	return nil
}

func (b *Bot) onPlan(ctx *th.Context, update telego.Update) error {
	query := update.CallbackQuery
	months, ok := parsePlan(query.Data)
	if !ok {
		b.answer(ctx, query, errorText(apperrors.ErrInvalidMonths))
		return nil
	}
	b.answer(ctx, query, "")
	user, ok := b.resolve(ctx, query.From)
	if !ok {
		return nil
	}

	if _, err := b.deps.Purchases.CreateInvoice(ctx.Context(), *user, months); err != nil {
		text := msgOrderFailed
		if errors.Is(err, apperrors.ErrNothingToPay) || errors.Is(err, apperrors.ErrInvalidMonths) {
			text = errorText(err)
		}
		b.send(ctx, query.From.ID, text, nil)
	}
	return nil
}

func (b *Bot) onPreCheckout(ctx *th.Context, update telego.Update) error {
	query := update.PreCheckoutQuery
	if _, err := b.deps.Resolver.Resolve(ctx.Context(), identity(query.From)); err != nil {
		if err := payment.Answer(ctx.Context(), ctx.Bot(), query.ID, false, errorText(err)); err != nil {
			slog.ErrorContext(ctx.Context(), "Failed to reject pre-checkout", "error", err)
		}
		return nil
	}

	decision := b.deps.Purchases.PreCheckout(ctx.Context(), purchase.PreCheckout{
		Payload:     query.InvoicePayload,
		TelegramID:  query.From.ID,
		TotalAmount: query.TotalAmount,
		Currency:    query.Currency,
	})
	if err := payment.Answer(ctx.Context(), ctx.Bot(), query.ID, decision.OK, decision.ErrorMessage); err != nil {
		slog.ErrorContext(ctx.Context(), "Failed to answer pre-checkout", "purchase_id", query.InvoicePayload, "error", err)
		if decision.OK {
			notify.Operator(ctx.Context(), b.deps.Notifier,
				"⚠️ Аккаунт подготовлен, но ответ на pre_checkout не доставлен\n<b>Purchase:</b> <code>"+html.EscapeString(query.InvoicePayload)+"</code>")
		}
	}
	return nil
}

func (b *Bot) onSuccessfulPayment(ctx *th.Context, update telego.Update) error {
	message := update.Message
	paid := message.SuccessfulPayment
	if message.From == nil {
		return nil
	}

	_, err := b.deps.Purchases.Settle(ctx.Context(), purchase.Settlement{
		Payload:          paid.InvoicePayload,
		TelegramID:       message.From.ID,
		TelegramChargeID: paid.TelegramPaymentChargeID,
		ProviderChargeID: paid.ProviderPaymentChargeID,
	})
	if err != nil {
		b.send(ctx, message.Chat.ID, msgPaymentFailed, nil)
	}
	return nil
}
