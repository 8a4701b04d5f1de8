// Package referral stores inviter to invited edges and answers the counting
// questions the pricing and level engines ask about them.
package referral

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"aura-bot/internal/apperrors"
	"aura-bot/internal/models"
)

type Ledger struct {
	db  *gorm.DB
	now func() time.Time
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// Record stores the edge inviter -> invited. A user keeps the first inviter
// ever recorded; later attempts return created=false without error.
func (l *Ledger) Record(ctx context.Context, inviterID, invitedID uint) (bool, error) {
	return l.RecordTx(l.db.WithContext(ctx), inviterID, invitedID)
}

// RecordTx is Record inside the caller's transaction.
func (l *Ledger) RecordTx(tx *gorm.DB, inviterID, invitedID uint) (bool, error) {
	if inviterID == invitedID {
		return false, apperrors.ErrSelfReferral
	}

	var exists int64
	if err := tx.Model(&models.User{}).Where("id = ?", inviterID).Count(&exists).Error; err != nil {
		return false, fmt.Errorf("check inviter: %w", err)
	}
	if exists == 0 {
		return false, apperrors.ErrInviterNotFound
	}

	edge := models.Referral{InviterID: inviterID, InvitedID: invitedID, CreatedAt: l.now()}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edge)
	if res.Error != nil {
		return false, fmt.Errorf("record referral: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// CountThisMonth counts edges created since the first day of the current
// local calendar month. The count resets itself when the month turns.
func (l *Ledger) CountThisMonth(ctx context.Context, inviterID uint) (int64, error) {
	var count int64
	err := l.db.WithContext(ctx).Model(&models.Referral{}).
		Where("inviter_id = ? AND created_at >= ?", inviterID, StartOfMonth(l.now())).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count referrals: %w", err)
	}
	return count, nil
}

func (l *Ledger) CountAll(ctx context.Context, inviterID uint) (int64, error) {
	var count int64
	if err := l.db.WithContext(ctx).Model(&models.Referral{}).Where("inviter_id = ?", inviterID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count referrals: %w", err)
	}
	return count, nil
}

// InviterOf returns nil when the user joined without an invitation.
func (l *Ledger) InviterOf(ctx context.Context, invitedID uint) (*models.User, error) {
	var edge models.Referral
	err := l.db.WithContext(ctx).Preload("Inviter").Where("invited_id = ?", invitedID).Take(&edge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find inviter: %w", err)
	}
	return edge.Inviter, nil
}

// List returns the newest edges of inviterID with the invited users loaded.
func (l *Ledger) List(ctx context.Context, inviterID uint, limit int) ([]models.Referral, error) {
	q := l.db.WithContext(ctx).Preload("Invited").Where("inviter_id = ?", inviterID).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var edges []models.Referral
	if err := q.Find(&edges).Error; err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	return edges, nil
}

// Edge returns the inviterID to invitedID edge, or nil when invitedID was not
// invited by inviterID.
func Edge(tx *gorm.DB, inviterID, invitedID uint) (*models.Referral, error) {
	var edge models.Referral
	err := tx.Where("inviter_id = ? AND invited_id = ?", inviterID, invitedID).Take(&edge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load referral: %w", err)
	}
	return &edge, nil
}

func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
