package purchase

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"aura-bot/internal/logger"
	"aura-bot/internal/models"
	"aura-bot/internal/notify"
	"aura-bot/internal/remnawave"
)

// Payer-facing rejection texts. Internal error details never reach the payer.
const (
	MsgNotFound   = "Платёж не найден или уже обработан"
	MsgInProgress = "Платёж уже обрабатывается, подождите немного"
	MsgRetryLater = "Не удалось подготовить аккаунт. Попробуйте позже."
)

// PreCheckout is the provider's question whether the payment may proceed.
type PreCheckout struct {
	Payload     string
	TelegramID  int64
	TotalAmount int
	Currency    string
}

type Decision struct {
	OK           bool
	ErrorMessage string
	Until        time.Time
}

func reject(msg string) Decision {
	return Decision{OK: false, ErrorMessage: msg}
}

// PreCheckout prepares the panel account for the prospective expiry and
// moves the purchase from new to pending. Any failure leaves it in new.
func (m *Machine) PreCheckout(ctx context.Context, q PreCheckout) Decision {
	ctx = logger.WithPurchaseID(logger.WithTelegramID(ctx, q.TelegramID), q.Payload)
	log := logger.FromContext(ctx)

	if m.guard != nil {
		lease, ok, err := m.guard.Acquire(ctx, "precheckout:"+q.Payload, m.opts.PanelTimeout+15*time.Second)
		if err != nil {
			log.ErrorContext(ctx, "Pre-checkout guard unavailable", "error", err)
			m.metrics.PreCheckoutRejected("guard")
			notify.Operator(ctx, m.notifier, queryFailure(q, err))
			return reject(MsgRetryLater)
		}
		if !ok {
			m.metrics.PreCheckoutRejected("in_progress")
			return reject(MsgInProgress)
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				log.WarnContext(ctx, "Failed to release pre-checkout guard", "error", err)
			}
		}()
	}

	var p models.Purchase
	err := m.db.WithContext(ctx).Preload("User").Where("id = ?", q.Payload).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		m.metrics.PreCheckoutRejected("not_found")
		return reject(MsgNotFound)
	}
	if err != nil {
		log.ErrorContext(ctx, "Failed to load purchase", "error", err)
		m.metrics.PreCheckoutRejected("internal")
		notify.Operator(ctx, m.notifier, queryFailure(q, err))
		return reject(MsgRetryLater)
	}

	if p.User == nil {
		m.metrics.PreCheckoutRejected("not_found")
		return reject(MsgNotFound)
	}
	user := *p.User
	if user.TelegramID != q.TelegramID {
		log.WarnContext(ctx, "Pre-checkout from a different payer", "owner", user.TelegramID)
		m.metrics.PreCheckoutRejected("payer_mismatch")
		return reject(MsgNotFound)
	}
	if p.Status != models.PurchaseNew {
		m.metrics.PreCheckoutRejected("status")
		return reject(MsgNotFound)
	}
	if q.TotalAmount != minorUnits(p) || !strings.EqualFold(q.Currency, p.Currency) {
		err := fmt.Errorf("amount mismatch: invoice %d %s, purchase %s %s", q.TotalAmount, q.Currency, p.Amount.StringFixed(2), p.Currency)
		log.ErrorContext(ctx, "Pre-checkout rejected", "error", err)
		m.metrics.PreCheckoutRejected("amount")
		notify.Operator(ctx, m.notifier, failureReport("❌ Сумма счёта не совпадает с заказом", user, p, err))
		return reject(MsgNotFound)
	}

	until, extended, err := m.prepareAccount(ctx, &user, p.Month)
	if err != nil {
		log.ErrorContext(ctx, "Failed to prepare panel account", "error", err, "months", p.Month)
		m.metrics.PreCheckoutRejected("panel")
		notify.Operator(ctx, m.notifier, failureReport("❌ Ошибка подготовки аккаунта в Aura", user, p, err))
		return reject(MsgRetryLater)
	}

	res := m.db.WithContext(ctx).Model(&models.Purchase{}).
		Where("id = ? AND status = ?", p.ID, models.PurchaseNew).
		Updates(map[string]any{"status": models.PurchasePending, "subscription_until": until})
	if res.Error != nil || res.RowsAffected == 0 {
		err := res.Error
		if err == nil {
			err = fmt.Errorf("purchase left status new concurrently, account already extended to %s", until.Format(time.RFC3339))
		}
		log.ErrorContext(ctx, "Failed to move purchase to pending", "error", err)
		m.metrics.PreCheckoutRejected("transition")
		notify.Operator(ctx, m.notifier, failureReport("❌ Аккаунт подготовлен, но заказ не переведён в pending", user, p, err))
		return reject(MsgRetryLater)
	}

	m.metrics.PurchaseTransition(string(models.PurchaseNew), string(models.PurchasePending))
	log.InfoContext(ctx, "Pre-checkout accepted", "until", until, "extended", extended)
	return Decision{OK: true, Until: until}
}

// prepareAccount creates the panel account with expiry today+months, or
// extends an existing one to max(current, today)+months. extended reports
// which branch ran.
func (m *Machine) prepareAccount(ctx context.Context, user *models.User, months int) (time.Time, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.PanelTimeout)
	defer cancel()

	today := startOfDay(m.now())

	if user.AuraID != nil && *user.AuraID != "" {
		started := time.Now()
		account, err := m.panel.GetUser(ctx, *user.AuraID)
		m.metrics.ObservePanel("get", err, time.Since(started))
		switch {
		case errors.Is(err, remnawave.ErrNotFound):
			slog.WarnContext(ctx, "Panel account vanished, creating a new one", "aura_id", *user.AuraID)
		case err != nil:
			return time.Time{}, false, err
		default:
			base := today
			if account.ExpireAt.After(base) {
				base = account.ExpireAt
			}
			until := base.AddDate(0, months, 0)

			started = time.Now()
			_, err = m.panel.UpdateUser(ctx, remnawave.UpdateUserRequest{
				UUID:                 account.UUID,
				Status:               remnawave.StatusActive,
				ExpireAt:             &until,
				Description:          describe(*user),
				Tag:                  tag(*user),
				TelegramID:           user.TelegramID,
				ActiveInternalSquads: m.opts.Squads,
			})
			m.metrics.ObservePanel("update", err, time.Since(started))
			if err != nil {
				return time.Time{}, false, err
			}
			return until, true, nil
		}
	}

	until := today.AddDate(0, months, 0)
	started := time.Now()
	account, err := m.panel.CreateUser(ctx, remnawave.CreateUserRequest{
		Username:             fmt.Sprintf("tg_%d", user.TelegramID),
		Status:               remnawave.StatusActive,
		ExpireAt:             until,
		Description:          describe(*user),
		Tag:                  tag(*user),
		TelegramID:           user.TelegramID,
		ActiveInternalSquads: m.opts.Squads,
	})
	m.metrics.ObservePanel("create", err, time.Since(started))
	if err != nil {
		return time.Time{}, false, err
	}

	if err := m.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Update("aura_id", account.UUID).Error; err != nil {
		return time.Time{}, false, fmt.Errorf("link panel account %s: %w", account.UUID, err)
	}
	user.AuraID = &account.UUID
	return until, false, nil
}

func queryFailure(q PreCheckout, err error) string {
	return fmt.Sprintf("💥 Ошибка pre_checkout\n<b>User:</b> %d\n<b>Purchase:</b> <code>%s</code>\n<pre>%s</pre>",
		q.TelegramID, html.EscapeString(q.Payload), html.EscapeString(errText(err)))
}

func describe(u models.User) string {
	return fmt.Sprintf("%s @%s id:%d:%d", u.FullName, u.Username, u.TelegramID, u.ID)
}

func tag(u models.User) string {
	return strings.ToUpper(string(u.Level))
}

func minorUnits(p models.Purchase) int {
	return int(p.Amount.Shift(2).Round(0).IntPart())
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
