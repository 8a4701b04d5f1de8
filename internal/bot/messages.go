package bot

import (
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"aura-bot/internal/apperrors"
	"aura-bot/internal/level"
	"aura-bot/internal/models"
	"aura-bot/internal/pricing"
	"aura-bot/internal/purchase"
)

// Callback data.
const (
	cbMenu          = "menu"
	cbBuy           = "buy"
	cbPlanPrefix    = "buy_plan_"
	cbRef           = "ref"
	cbMyRefs        = "my_refs"
	cbManage        = "ref_manage"
	cbPromotePrefix = "promote_"
	cbGrantPrefix   = "grant_"
	cbConnect       = "con"
)

const (
	msgGeneric       = "⚠️ Произошла ошибка. Попробуйте позже."
	msgBlacklisted   = "🚫 Доступ запрещен"
	msgClosedMode    = "👋 Добро пожаловать!\n\nК сожалению, на данный момент проект работает в закрытом режиме. Доступ только по приглашениям участников."
	msgOrderFailed   = "⚠️ Не удалось сформировать заказ. Попробуйте позже."
	msgPaymentFailed = "⚠️ Оплата прошла, но при активации произошла ошибка. Мы решим вопрос в ближайшее время."
	msgNoReferrals   = "У вас нет приглашённых пользователей."
	msgNotActive     = "⏳ Подписка не активна. Оформите её через меню."
	msgPromoUsage    = "Использование: /promo <код>"
	msgHelp          = "📖 Вы можете написать разработчикам через команду:\n<code>/help ваш_текст</code>\n\nПример:\n<code>/help Не работает оплата</code>"
	msgHelpSent      = "✅ Ваше сообщение отправлено разработчикам."
	msgReplyUsage    = "Использование: /reply <user_id> <текст>"
	msgReplySent     = "✅ Сообщение отправлено пользователю."
)

var levelNames = map[models.Level]string{
	models.LevelFerrum:   "🥉 Базовый",
	models.LevelArgentum: "🥈 Серебряный",
	models.LevelAurum:    "🥇 Золотой",
	models.LevelPlatinum: "💎 Платиновый",
}

func levelName(l models.Level) string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return string(l)
}

// errorText maps domain failures to the reply a user sees.
func errorText(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, apperrors.ErrBlacklisted):
		return msgBlacklisted
	case errors.Is(err, apperrors.ErrClosedMode):
		return msgClosedMode
	case errors.Is(err, apperrors.ErrPromoMalformed), errors.Is(err, apperrors.ErrPromoNotFound):
		return "❌ Промокод не найден"
	case errors.Is(err, apperrors.ErrPromoExpired):
		return "❌ Промокод истек"
	case errors.Is(err, apperrors.ErrPromoInactive):
		return "❌ Промокод неактивен"
	case errors.Is(err, apperrors.ErrPromoLimitReached):
		return "❌ Достигнут лимит использования промокода"
	case errors.Is(err, apperrors.ErrPromoAlreadyUsed):
		return "❌ Вы уже использовали этот промокод"
	case errors.Is(err, apperrors.ErrInsufficientLevel):
		return "Недоступно для вашего уровня"
	case errors.Is(err, apperrors.ErrLevelNotAllowed):
		return "Вы не можете назначить этот уровень"
	case errors.Is(err, apperrors.ErrNotYourReferral):
		return "Этот пользователь не является вашим приглашённым"
	case errors.Is(err, apperrors.ErrAlreadyAtLevel):
		return "Пользователь уже на этом уровне"
	case errors.Is(err, apperrors.ErrQuotaExhausted):
		return "Достигнут лимит назначений для этого уровня"
	case errors.Is(err, apperrors.ErrConcurrentLevelSet):
		return "Уровень уже изменён, обновите список"
	case errors.Is(err, apperrors.ErrUnknownLevel):
		return "Недопустимый уровень"
	case errors.Is(err, apperrors.ErrUserNotFound):
		return "Пользователь не найден"
	case errors.Is(err, apperrors.ErrInvalidMonths):
		return "Недопустимый срок подписки"
	case errors.Is(err, apperrors.ErrNothingToPay):
		return "🎉 Для вашего уровня подписка бесплатна"
	default:
		return msgGeneric
	}
}

func menuText(user models.User, expireAt *time.Time) string {
	name := user.FullName
	if name == "" {
		name = user.DisplayName()
	}
	sub := "не активна"
	if expireAt != nil {
		sub = "до " + expireAt.Format("02.01.2006")
	}
	return fmt.Sprintf("👋 Добро пожаловать, %s!\n\n🔹 Уровень: <b>%s</b>\n⏳ Подписка: <code>%s</code>\n\nВыберите действие:",
		html.EscapeString(name), levelName(user.Level), sub)
}

func plansText(quotes []pricing.Breakdown) string {
	var b strings.Builder
	b.WriteString("📦 Выберите тариф для покупки:\n<code>\n")
	for _, q := range quotes {
		fmt.Fprintf(&b, "%-11s %sр", purchase.PeriodLabel(q.Months), q.Price.StringFixed(2))
		if pct := bulkPercent(q); pct > 0 {
			fmt.Fprintf(&b, " (-%d%%)", pct)
		}
		b.WriteString("\n")
	}
	b.WriteString("</code>")
	if len(quotes) > 0 {
		fmt.Fprintf(&b, "\n🎁 Ваша скидка: %d%%", quotes[0].TotalDiscount)
	}
	return b.String()
}

func bulkPercent(q pricing.Breakdown) int {
	return 100 - int(q.Multiplier.Shift(2).Round(0).IntPart())
}

func referralText(user models.User, link string, thisMonth int64, quote pricing.Breakdown) string {
	var b strings.Builder
	b.WriteString("👥 Пригласите друзей и получите бонус!\n\n")
	fmt.Fprintf(&b, "Ваш уровень: <b>%s</b>\n\n", levelName(user.Level))
	fmt.Fprintf(&b, "🔗 Ваша ссылка: <code>%s</code>\n", html.EscapeString(link))
	fmt.Fprintf(&b, "👤 Приглашено в этом месяце: <code>%d</code>\n", thisMonth)
	fmt.Fprintf(&b, "📉 Текущая скидка: <code>%d%%</code>\n\n", quote.TotalDiscount)
	b.WriteString("<i>Скидка по приглашениям учитывается только за текущий месяц</i>")
	return b.String()
}

func referralsText(edges []models.Referral) string {
	if len(edges) == 0 {
		return msgNoReferrals
	}
	var b strings.Builder
	b.WriteString("📋 Ваши приглашённые:\n\n")
	for _, e := range edges {
		if e.Invited == nil {
			continue
		}
		fmt.Fprintf(&b, "• %s (%s)\n", html.EscapeString(e.Invited.DisplayName()), levelName(e.Invited.Level))
	}
	return b.String()
}

func manageText(granter models.User) string {
	var b strings.Builder
	b.WriteString("🧭 Управление рефералами:\n\nВы можете изменить уровень доступа для своих приглашённых.\n\n")
	for _, u := range level.Quotas(granter) {
		fmt.Fprintf(&b, "%s: %d / %d\n", levelName(u.Level), u.Remaining(), u.Limit)
	}
	b.WriteString("\n🎓 Для изменения нажмите на имя реферала ниже:")
	return b.String()
}

func redeemedText(previous, current models.Level, discount int, kind models.PromoType) string {
	if kind == models.PromoLevel {
		if previous == current {
			return fmt.Sprintf("✅ Промокод активирован. Ваш уровень: %s", levelName(current))
		}
		return fmt.Sprintf("🎉 Вам назначен уровень %s!", levelName(current))
	}
	return fmt.Sprintf("🎉 Промокод применён! Ваша персональная скидка: %d%%", discount)
}

func connectText(url string, expireAt time.Time) string {
	return fmt.Sprintf("✨ Ваша подписка активна до %s\n\n🔗 Ссылка для подключения:\n<code>%s</code>\n\nОтсканируйте QR-код или импортируйте ссылку в приложение.",
		expireAt.Format("02.01.2006"), html.EscapeString(url))
}

func parsePlan(data string) (int, bool) {
	months, err := strconv.Atoi(strings.TrimPrefix(data, cbPlanPrefix))
	if err != nil || !pricing.ValidMonths(months) {
		return 0, false
	}
	return months, true
}

func parsePromote(data string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(data, cbPromotePrefix), 10, 64)
	return id, err == nil && id > 0
}

// parseGrant decodes grant_<telegramId>_<level>.
func parseGrant(data string) (int64, models.Level, bool) {
	rest := strings.TrimPrefix(data, cbGrantPrefix)
	idx := strings.LastIndexByte(rest, '_')
	if idx <= 0 {
		return 0, "", false
	}
	id, err := strconv.ParseInt(rest[:idx], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	l, ok := models.ParseLevel(rest[idx+1:])
	return id, l, ok
}

// commandArgs returns the text after the command word.
func commandArgs(text string) string {
	_, args, _ := strings.Cut(strings.TrimSpace(text), " ")
	return strings.TrimSpace(args)
}
