package purchase

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"aura-bot/internal/apperrors"
	"aura-bot/internal/logger"
	"aura-bot/internal/models"
	"aura-bot/internal/notify"
)

// Settlement is the provider's confirmation that money was captured.
type Settlement struct {
	Payload          string
	TelegramID       int64
	TelegramChargeID string
	ProviderChargeID string
}

type Settled struct {
	Purchase  models.Purchase
	Duplicate bool
	FirstPaid bool
}

// Settle moves pending to paid exactly once. The panel account was prepared
// during pre-checkout, so settlement only persists payment metadata and
// sends notifications. A repeated confirmation is reported as Duplicate and
// has no side effects.
func (m *Machine) Settle(ctx context.Context, s Settlement) (*Settled, error) {
	ctx = logger.WithPurchaseID(logger.WithTelegramID(ctx, s.TelegramID), s.Payload)
	log := logger.FromContext(ctx)
	now := m.now()

	var (
		out      Settled
		opErr    error
		dbErr    error
		purchase models.Purchase
	)
	dbErr = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Purchase{}).
			Where("id = ? AND status = ?", s.Payload, models.PurchasePending).
			Updates(map[string]any{
				"status":             models.PurchasePaid,
				"telegram_charge_id": s.TelegramChargeID,
				"provider_charge_id": s.ProviderChargeID,
				"paid_at":            now,
			})
		if res.Error != nil {
			return fmt.Errorf("settle purchase: %w", res.Error)
		}

		err := tx.Preload("User").Where("id = ?", s.Payload).Take(&purchase).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			opErr = apperrors.ErrPurchaseNotFound
			return nil
		}
		if err != nil {
			return fmt.Errorf("load purchase: %w", err)
		}
		if purchase.User == nil {
			return fmt.Errorf("purchase %s has no owner", purchase.ID)
		}

		if res.RowsAffected == 0 {
			if purchase.Status == models.PurchasePaid {
				out = Settled{Purchase: purchase, Duplicate: true}
				return nil
			}
			opErr = apperrors.ErrPurchaseNotPending
			return nil
		}

		// The marker is claimed by exactly one settlement per user, even when
		// two purchases settle at once. The count keeps users who paid before
		// the marker existed from being treated as first-time payers.
		claim := tx.Model(&models.User{}).
			Where("id = ? AND first_paid_at IS NULL", purchase.UserID).
			Update("first_paid_at", now)
		if claim.Error != nil {
			return fmt.Errorf("mark first payment: %w", claim.Error)
		}
		var paid int64
		if err := tx.Model(&models.Purchase{}).
			Where("user_id = ? AND status = ?", purchase.UserID, models.PurchasePaid).
			Count(&paid).Error; err != nil {
			return fmt.Errorf("count paid purchases: %w", err)
		}
		out = Settled{Purchase: purchase, FirstPaid: claim.RowsAffected == 1 && paid == 1}
		return nil
	})

	if dbErr != nil {
		log.ErrorContext(ctx, "Settlement failed", "error", dbErr)
		notify.Operator(ctx, m.notifier, fmt.Sprintf("💥 Ошибка при обработке платежа\n<b>User:</b> %d\n<b>Purchase:</b> <code>%s</code>\n<b>Charge:</b> %s\n<pre>%s</pre>",
			s.TelegramID, html.EscapeString(s.Payload), html.EscapeString(s.ProviderChargeID), html.EscapeString(dbErr.Error())))
		return nil, dbErr
	}
	if opErr != nil {
		log.ErrorContext(ctx, "Settlement for a purchase that is not pending", "error", opErr, "status", purchase.Status)
		notify.Operator(ctx, m.notifier, fmt.Sprintf("⚠️ Оплата прошла, но заказ не в статусе pending\n<b>User:</b> %d\n<b>Purchase:</b> <code>%s</code>\n<b>Status:</b> %s\n<b>Charge:</b> %s",
			s.TelegramID, html.EscapeString(s.Payload), purchase.Status, html.EscapeString(s.ProviderChargeID)))
		return nil, opErr
	}
	if out.Duplicate {
		log.InfoContext(ctx, "Duplicate settlement ignored")
		return &out, nil
	}

	m.metrics.PurchaseTransition(string(models.PurchasePending), string(models.PurchasePaid))
	log.InfoContext(ctx, "Purchase settled", "amount", purchase.Amount.StringFixed(2), "first", out.FirstPaid)

	user := *purchase.User
	if out.FirstPaid {
		m.notifyInviter(ctx, user)
	}
	notify.Send(ctx, m.notifier, user.TelegramID, paidMessage(purchase.SubscriptionUntil))
	notify.Operator(ctx, m.notifier, settledReport(user, purchase, !out.FirstPaid))
	return &out, nil
}

func (m *Machine) notifyInviter(ctx context.Context, invited models.User) {
	inviter, err := m.referrals.InviterOf(ctx, invited.ID)
	if err != nil {
		slog.WarnContext(ctx, "Failed to look up inviter", "user_id", invited.ID, "error", err)
		return
	}
	if inviter == nil {
		return
	}
	notify.Send(ctx, m.notifier, inviter.TelegramID, inviterMessage(invited))
}

// Sweep cancels new and pending purchases created before now-olderThan.
func (m *Machine) Sweep(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := m.now().Add(-olderThan)
	res := m.db.WithContext(ctx).Model(&models.Purchase{}).
		Where("status IN ? AND created_at < ?", []models.PurchaseStatus{models.PurchaseNew, models.PurchasePending}, cutoff).
		Update("status", models.PurchaseCancel)
	if res.Error != nil {
		return 0, fmt.Errorf("sweep purchases: %w", res.Error)
	}
	m.metrics.PurchasesSwept(res.RowsAffected)
	if res.RowsAffected > 0 {
		slog.InfoContext(ctx, "Stale purchases cancelled", "count", res.RowsAffected, "cutoff", cutoff)
	}
	return res.RowsAffected, nil
}
