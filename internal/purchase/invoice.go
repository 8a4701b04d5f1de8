package purchase

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"aura-bot/internal/apperrors"
	"aura-bot/internal/logger"
	"aura-bot/internal/models"
	"aura-bot/internal/notify"
	"aura-bot/internal/payment"
	"aura-bot/internal/pricing"
)

// Invoice is a created purchase with the price it was computed from.
type Invoice struct {
	Purchase  models.Purchase
	Breakdown pricing.Breakdown
}

// CreateInvoice locks the current price into a new purchase row and sends
// the payer an invoice whose payload is the purchase id.
func (m *Machine) CreateInvoice(ctx context.Context, user models.User, months int) (*Invoice, error) {
	if !pricing.ValidMonths(months) {
		return nil, apperrors.ErrInvalidMonths
	}

	breakdown, err := m.Quote(ctx, user, months)
	if err != nil {
		return nil, err
	}
	if breakdown.Free() {
		return nil, apperrors.ErrNothingToPay
	}

	p := models.Purchase{
		ID:       uuid.NewString(),
		UserID:   user.ID,
		Type:     m.opts.Rail,
		Status:   models.PurchaseNew,
		Amount:   breakdown.Price,
		Currency: m.opts.Currency,
		Month:    months,
	}
	if err := m.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, fmt.Errorf("create purchase: %w", err)
	}

	ctx = logger.WithPurchaseID(logger.WithTelegramID(ctx, user.TelegramID), p.ID)
	log := logger.FromContext(ctx).With("months", months)
	title := fmt.Sprintf("Подписка на %d мес", months)
	err = m.invoicer.SendInvoice(ctx, payment.Invoice{
		ChatID:      user.TelegramID,
		Title:       title,
		Description: "Защита интернет-соединения",
		Label:       title,
		Payload:     p.ID,
		Currency:    p.Currency,
		Amount:      breakdown.MinorUnits(),
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send invoice", "error", err)
		notify.Operator(ctx, m.notifier, failureReport("💥 Не удалось выставить счёт", user, p, err))
		return nil, apperrors.Upstream("payment", err)
	}

	log.InfoContext(ctx, "Invoice sent", "amount", p.Amount.StringFixed(2), "currency", p.Currency)
	return &Invoice{Purchase: p, Breakdown: breakdown}, nil
}
