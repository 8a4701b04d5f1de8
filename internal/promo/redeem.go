// Package promo validates and consumes promo codes and manages their lifecycle.
package promo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"aura-bot/internal/apperrors"
	"aura-bot/internal/level"
	"aura-bot/internal/metrics"
	"aura-bot/internal/models"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9_-]{3,32}$`)

type Service struct {
	db      *gorm.DB
	now     func() time.Time
	metrics *metrics.Metrics
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Redemption is the outcome of a successful redeem.
type Redemption struct {
	Code          models.PromoCode
	PreviousLevel models.Level
	Level         models.Level
	Discount      int
}

// Normalize trims and upper-cases a code and checks its charset.
func Normalize(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if !codePattern.MatchString(code) {
		return "", apperrors.ErrPromoMalformed
	}
	return code, nil
}

// Redeem consumes one use of code for the user and applies its effect in the
// same transaction. A user redeems a given code at most once.
func (s *Service) Redeem(ctx context.Context, raw string, userID uint) (*Redemption, error) {
	code, err := Normalize(raw)
	if err != nil {
		return nil, err
	}

	var out Redemption
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var promo models.PromoCode
		err := tx.Where("code = ?", code).Take(&promo).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrPromoNotFound
		}
		if err != nil {
			return fmt.Errorf("load promo code: %w", err)
		}

		switch {
		case !promo.IsActive:
			return apperrors.ErrPromoInactive
		case promo.ExpiredAt(s.now()):
			return apperrors.ErrPromoExpired
		case promo.Exhausted():
			return apperrors.ErrPromoLimitReached
		}

		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrUserNotFound
			}
			return fmt.Errorf("load user: %w", err)
		}

		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.PromoRedemption{PromoCodeID: promo.ID, UserID: userID, CreatedAt: s.now()})
		if res.Error != nil {
			return fmt.Errorf("record redemption: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrPromoAlreadyUsed
		}

		res = tx.Model(&models.PromoCode{}).
			Where("id = ? AND is_active = ? AND (max_uses IS NULL OR used_count < max_uses)", promo.ID, true).
			Update("used_count", gorm.Expr("used_count + 1"))
		if res.Error != nil {
			return fmt.Errorf("consume promo code: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrPromoLimitReached
		}
		promo.UsedCount++

		out = Redemption{Code: promo, PreviousLevel: user.Level, Level: user.Level, Discount: user.Discount}
		switch promo.Type {
		case models.PromoLevel:
			if promo.Level != user.Level {
				if err := level.ReleaseGrant(tx, userID); err != nil {
					return err
				}
			}
			if err := tx.Model(&models.User{}).Where("id = ?", userID).Update("level", promo.Level).Error; err != nil {
				return fmt.Errorf("apply level: %w", err)
			}
			out.Level = promo.Level
		case models.PromoDiscount:
			err := tx.Model(&models.User{}).Where("id = ?", userID).
				Update("discount", gorm.Expr("CASE WHEN discount + ? > 100 THEN 100 ELSE discount + ? END", promo.Discount, promo.Discount)).Error
			if err != nil {
				return fmt.Errorf("apply discount: %w", err)
			}
			out.Discount = min(user.Discount+promo.Discount, 100)
		default:
			return apperrors.ErrPromoInvalid
		}
		return nil
	})
	if err != nil {
		s.metrics.PromoRedemption(string(apperrors.CodeOf(err)))
		return nil, err
	}

	s.metrics.PromoRedemption("ok")
	slog.InfoContext(ctx, "Promo code redeemed", "code", code, "user_id", userID, "type", out.Code.Type)
	return &out, nil
}
