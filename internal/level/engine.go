// Package level moves users between tiers. Peers with enough standing may
// change the tier of users they invited, spending a per-tier quota.
package level

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"aura-bot/internal/apperrors"
	"aura-bot/internal/metrics"
	"aura-bot/internal/models"
	"aura-bot/internal/notify"
	"aura-bot/internal/referral"
)

type Engine struct {
	db       *gorm.DB
	notifier notify.Notifier
	metrics  *metrics.Metrics
}

func NewEngine(db *gorm.DB, notifier notify.Notifier) *Engine {
	return &Engine{db: db, notifier: notifier}
}

func (e *Engine) SetMetrics(m *metrics.Metrics) {
	e.metrics = m
}

// Change is a committed level transition.
type Change struct {
	Target  models.User
	From    models.Level
	To      models.Level
	Granter *models.User
}

// ChangeLevel sets the level of a referral of granterID. Quota counters of
// the granter and the target's level are updated in one transaction.
func (e *Engine) ChangeLevel(ctx context.Context, granterID uint, targetTelegramID int64, to models.Level) (*Change, error) {
	if !to.Valid() {
		return nil, apperrors.ErrUnknownLevel
	}

	var change Change
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var granter models.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&granter, granterID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("lock granter: %w", err)
		}
		if !CanManage(granter.Level) {
			return apperrors.ErrInsufficientLevel
		}

		var target models.User
		err = tx.Where("telegram_id = ?", targetTelegramID).Take(&target).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("load target: %w", err)
		}

		edge, err := referral.Edge(tx, granter.ID, target.ID)
		if err != nil {
			return err
		}
		if edge == nil {
			return apperrors.ErrNotYourReferral
		}

		from := target.Level
		if !canSet(granter.Level, to) || !canSet(granter.Level, from) {
			return apperrors.ErrLevelNotAllowed
		}
		if from == to {
			return apperrors.ErrAlreadyAtLevel
		}

		var granted any
		if q, ok := quotaFor(to); ok {
			if err := spend(tx, &granter, q); err != nil {
				return err
			}
			granted = to
		}
		// Only a tier this granter paid for is given back.
		if edge.GrantedLevel != nil {
			if q, ok := quotaFor(*edge.GrantedLevel); ok {
				if err := release(tx, &granter, q); err != nil {
					return err
				}
			}
		}
		if err := tx.Model(&models.Referral{}).Where("id = ?", edge.ID).Update("granted_level", granted).Error; err != nil {
			return fmt.Errorf("record grant: %w", err)
		}

		if err := updateLevel(tx, &target, to); err != nil {
			return err
		}

		change = Change{Target: target, From: from, To: to, Granter: &granter}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.LevelChange(string(change.To), "peer")
	slog.InfoContext(ctx, "Level changed by referrer",
		"granter_id", granterID, "telegram_id", targetTelegramID, "from", change.From, "to", change.To)
	notify.Send(ctx, e.notifier, change.Target.TelegramID, ChangedMessage(change.To))
	return &change, nil
}

// SetLevel is the administrative override. It ignores quotas and referral edges.
func (e *Engine) SetLevel(ctx context.Context, userID uint, to models.Level, actor string) (*Change, error) {
	if !to.Valid() {
		return nil, apperrors.ErrUnknownLevel
	}

	var change Change
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target models.User
		err := tx.First(&target, userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if target.Level == to {
			return apperrors.ErrAlreadyAtLevel
		}
		from := target.Level
		if err := ReleaseGrant(tx, target.ID); err != nil {
			return err
		}
		if err := updateLevel(tx, &target, to); err != nil {
			return err
		}
		change = Change{Target: target, From: from, To: to}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.LevelChange(string(change.To), "admin")
	slog.InfoContext(ctx, "Level set by admin", "user_id", userID, "actor", actor, "from", change.From, "to", change.To)
	notify.Send(ctx, e.notifier, change.Target.TelegramID, ChangedMessage(change.To))
	return &change, nil
}

// ReleaseGrant gives the inviter of invitedID back the quota they spent on
// them. Level changes that bypass the inviter call it inside their transaction.
func ReleaseGrant(tx *gorm.DB, invitedID uint) error {
	var edge models.Referral
	err := tx.Where("invited_id = ? AND granted_level IS NOT NULL", invitedID).Take(&edge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load grant: %w", err)
	}
	if q, ok := quotaFor(*edge.GrantedLevel); ok {
		if err := release(tx, &models.User{ID: edge.InviterID}, q); err != nil {
			return err
		}
	}
	if err := tx.Model(&models.Referral{}).Where("id = ?", edge.ID).Update("granted_level", nil).Error; err != nil {
		return fmt.Errorf("clear grant: %w", err)
	}
	return nil
}

// spend succeeds only while the stored counter is below the limit, whatever
// the loaded copy of the granter says.
func spend(tx *gorm.DB, granter *models.User, q quota) error {
	res := tx.Model(&models.User{}).
		Where("id = ? AND "+q.column+" < ?", granter.ID, q.limit).
		Update(q.column, gorm.Expr(q.column+" + 1"))
	if res.Error != nil {
		return fmt.Errorf("spend quota: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrQuotaExhausted
	}
	*q.field(granter)++
	return nil
}

func release(tx *gorm.DB, granter *models.User, q quota) error {
	res := tx.Model(&models.User{}).
		Where("id = ? AND "+q.column+" > 0", granter.ID).
		Update(q.column, gorm.Expr(q.column+" - 1"))
	if res.Error != nil {
		return fmt.Errorf("release quota: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		*q.field(granter)--
	}
	return nil
}

// updateLevel only succeeds while the stored level still equals the one read.
func updateLevel(tx *gorm.DB, target *models.User, to models.Level) error {
	res := tx.Model(&models.User{}).
		Where("id = ? AND level = ?", target.ID, target.Level).
		Update("level", to)
	if res.Error != nil {
		return fmt.Errorf("update level: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrConcurrentLevelSet
	}
	target.Level = to
	return nil
}

func ChangedMessage(to models.Level) string {
	return fmt.Sprintf("🔔 Ваш уровень изменён на <b>%s</b>", to.Title())
}
