package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"aura-bot/internal/apperrors"
	"aura-bot/internal/database"
	"aura-bot/internal/models"
)

// AccountDisabler turns off the panel account of a blacklisted user.
type AccountDisabler interface {
	DisableUser(ctx context.Context, uuid string) error
}

type Blacklist struct {
	db    *gorm.DB
	panel AccountDisabler
}

func NewBlacklist(db *gorm.DB, panel AccountDisabler) *Blacklist {
	return &Blacklist{db: db, panel: panel}
}

type BlacklistInput struct {
	TelegramID *int64  `json:"telegram_id"`
	AuraID     *string `json:"aura_id"`
	Reason     string  `json:"reason"`
}

// IsBlocked matches active entries by telegram id or by the panel account
// linked to that telegram id.
func (b *Blacklist) IsBlocked(ctx context.Context, telegramID int64) (bool, error) {
	linked := b.db.Model(&models.User{}).Select("aura_id").
		Where("telegram_id = ? AND aura_id IS NOT NULL", telegramID)

	var count int64
	err := b.db.WithContext(ctx).Model(&models.Blacklist{}).
		Where("is_active = ?", true).
		Where(b.db.Where("telegram_id = ?", telegramID).Or("aura_id IN (?)", linked)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return count > 0, nil
}

// Add stores an active entry and disables the linked panel account. A panel
// failure is logged; the entry still blocks the bot side.
func (b *Blacklist) Add(ctx context.Context, in BlacklistInput, actor string) (*models.Blacklist, error) {
	if in.TelegramID == nil && (in.AuraID == nil || *in.AuraID == "") {
		return nil, apperrors.ErrBlacklistInvalid
	}

	entry := models.Blacklist{
		TelegramID: in.TelegramID,
		AuraID:     in.AuraID,
		Reason:     in.Reason,
		IsActive:   true,
		CreatedBy:  actor,
	}
	if entry.AuraID == nil {
		var user models.User
		err := b.db.WithContext(ctx).Where("telegram_id = ?", *in.TelegramID).Take(&user).Error
		switch {
		case err == nil:
			entry.AuraID = user.AuraID
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, fmt.Errorf("load user: %w", err)
		}
	}

	if err := b.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("add blacklist entry: %w", err)
	}

	if entry.AuraID != nil && b.panel != nil {
		if err := b.panel.DisableUser(ctx, *entry.AuraID); err != nil {
			slog.WarnContext(ctx, "Failed to disable panel account", "aura_id", *entry.AuraID, "error", err)
		}
	}
	slog.InfoContext(ctx, "Blacklist entry added", "id", entry.ID, "actor", actor)
	return &entry, nil
}

// Remove deactivates an entry. The row is kept for the audit trail.
func (b *Blacklist) Remove(ctx context.Context, id uint) error {
	res := b.db.WithContext(ctx).Model(&models.Blacklist{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if res.Error != nil {
		return fmt.Errorf("remove blacklist entry: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrBlacklistNotFound
	}
	return nil
}

func (b *Blacklist) List(ctx context.Context, page, limit int, activeOnly bool) (database.Page[models.Blacklist], error) {
	q := b.db.WithContext(ctx).Model(&models.Blacklist{})
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return database.Page[models.Blacklist]{}, fmt.Errorf("count blacklist: %w", err)
	}
	var rows []models.Blacklist
	if err := q.Order("created_at DESC").Scopes(database.Paginate(page, limit)).Find(&rows).Error; err != nil {
		return database.Page[models.Blacklist]{}, fmt.Errorf("list blacklist: %w", err)
	}
	return database.NewPage(rows, total, page, limit), nil
}
