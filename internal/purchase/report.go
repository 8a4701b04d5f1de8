package purchase

import (
	"fmt"
	"html"
	"time"

	"aura-bot/internal/models"
)

const dateLayout = "02.01.2006"

// failureReport is the operator message used for manual reconciliation.
func failureReport(title string, user models.User, p models.Purchase, err error) string {
	return fmt.Sprintf("%s\n<b>User:</b> %d (id %d)\n<b>Purchase:</b> <code>%s</code>\n<b>Months:</b> %d\n<pre>%s</pre>",
		title, user.TelegramID, user.ID, p.ID, p.Month, html.EscapeString(errText(err)))
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

func settledReport(user models.User, p models.Purchase, extended bool) string {
	kind := "Новая"
	if extended {
		kind = "Продление"
	}
	until := "неизвестно"
	if p.SubscriptionUntil != nil {
		until = p.SubscriptionUntil.Format(dateLayout)
	}
	return fmt.Sprintf("💰 %s подписка\n\n👤 Пользователь: <b>%s</b> (ID: %d)\n📅 Уровень: %s\n💵 Сумма: %s %s\n📦 Период: %s\n📆 Подписка до: %s\n🆔 Purchase ID: <code>%s</code>",
		kind, html.EscapeString(user.DisplayName()), user.TelegramID, user.Level,
		p.Amount.StringFixed(2), p.Currency, PeriodLabel(p.Month), until, p.ID)
}

func paidMessage(until *time.Time) string {
	if until == nil {
		return "✅ Оплата прошла успешно."
	}
	return "✅ Оплата прошла успешно. Подписка активна до " + until.Format(dateLayout)
}

func inviterMessage(invited models.User) string {
	return fmt.Sprintf("🎉 Пользователь <b>%s</b>, приглашённый по вашей ссылке, оформил первую подписку!",
		html.EscapeString(invited.DisplayName()))
}

// PeriodLabel renders a month count with the right Russian plural.
func PeriodLabel(months int) string {
	switch {
	case months%10 == 1 && months%100 != 11:
		return fmt.Sprintf("%d месяц", months)
	case months%10 >= 2 && months%10 <= 4 && (months%100 < 10 || months%100 >= 20):
		return fmt.Sprintf("%d месяца", months)
	default:
		return fmt.Sprintf("%d месяцев", months)
	}
}
