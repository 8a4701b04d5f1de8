package promo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"aura-bot/internal/apperrors"
	"aura-bot/internal/database"
	"aura-bot/internal/models"
)

type CreateInput struct {
	Code        string           `json:"code"`
	Type        models.PromoType `json:"type"`
	Discount    int              `json:"discount"`
	Level       models.Level     `json:"level"`
	MaxUses     *int             `json:"max_uses"`
	ExpiresAt   *time.Time       `json:"expires_at"`
	IsActive    *bool            `json:"is_active"`
	Description string           `json:"description"`
}

// UpdateInput changes only the fields that are set.
type UpdateInput struct {
	Discount     *int          `json:"discount"`
	Level        *models.Level `json:"level"`
	MaxUses      *int          `json:"max_uses"`
	ClearMaxUses bool          `json:"clear_max_uses"`
	ExpiresAt    *time.Time    `json:"expires_at"`
	ClearExpiry  bool          `json:"clear_expires_at"`
	IsActive     *bool         `json:"is_active"`
	Description  *string       `json:"description"`
}

// Details is a code with its redemption count.
type Details struct {
	models.PromoCode
	Redemptions int64 `json:"redemptions"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*models.PromoCode, error) {
	code, err := Normalize(in.Code)
	if err != nil {
		return nil, err
	}
	if in.Type == "" {
		in.Type = models.PromoDiscount
	}

	promo := models.PromoCode{
		Code:        code,
		Type:        in.Type,
		Discount:    in.Discount,
		Level:       in.Level,
		MaxUses:     in.MaxUses,
		ExpiresAt:   in.ExpiresAt,
		IsActive:    in.IsActive == nil || *in.IsActive,
		Description: in.Description,
	}
	if err := validate(promo); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.PromoCode{}).Where("code = ?", code).Count(&count).Error; err != nil {
			return fmt.Errorf("check promo code: %w", err)
		}
		if count > 0 {
			return apperrors.ErrPromoExists
		}
		if err := tx.Create(&promo).Error; err != nil {
			return fmt.Errorf("create promo code: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

func (s *Service) Update(ctx context.Context, id uint, in UpdateInput) (*models.PromoCode, error) {
	var promo models.PromoCode
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&promo, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrPromoNotFound
			}
			return fmt.Errorf("load promo code: %w", err)
		}

		if in.Discount != nil {
			promo.Discount = *in.Discount
		}
		if in.Level != nil {
			promo.Level = *in.Level
		}
		if in.ClearMaxUses {
			promo.MaxUses = nil
		} else if in.MaxUses != nil {
			promo.MaxUses = in.MaxUses
		}
		if in.ClearExpiry {
			promo.ExpiresAt = nil
		} else if in.ExpiresAt != nil {
			promo.ExpiresAt = in.ExpiresAt
		}
		if in.IsActive != nil {
			promo.IsActive = *in.IsActive
		}
		if in.Description != nil {
			promo.Description = *in.Description
		}
		if err := validate(promo); err != nil {
			return err
		}

		// Save writes the nil pointers and false booleans as well.
		if err := tx.Save(&promo).Error; err != nil {
			return fmt.Errorf("update promo code: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.PromoCode{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete promo code: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrPromoNotFound
		}
		if err := tx.Where("promo_code_id = ?", id).Delete(&models.PromoRedemption{}).Error; err != nil {
			return fmt.Errorf("delete redemptions: %w", err)
		}
		return nil
	})
}

func (s *Service) Get(ctx context.Context, id uint) (*Details, error) {
	var d Details
	db := s.db.WithContext(ctx)
	if err := db.First(&d.PromoCode, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPromoNotFound
		}
		return nil, fmt.Errorf("load promo code: %w", err)
	}
	if err := db.Model(&models.PromoRedemption{}).Where("promo_code_id = ?", id).Count(&d.Redemptions).Error; err != nil {
		return nil, fmt.Errorf("count redemptions: %w", err)
	}
	return &d, nil
}

func (s *Service) List(ctx context.Context, page, limit int, search string) (database.Page[models.PromoCode], error) {
	q := s.db.WithContext(ctx).Model(&models.PromoCode{})
	if search != "" {
		q = q.Where("code LIKE ?", "%"+normalizeSearch(search)+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return database.Page[models.PromoCode]{}, fmt.Errorf("count promo codes: %w", err)
	}
	var codes []models.PromoCode
	if err := q.Scopes(database.Paginate(page, limit)).Order("created_at DESC, id DESC").Find(&codes).Error; err != nil {
		return database.Page[models.PromoCode]{}, fmt.Errorf("list promo codes: %w", err)
	}
	return database.NewPage(codes, total, page, limit), nil
}

func validate(p models.PromoCode) error {
	switch p.Type {
	case models.PromoDiscount:
		if p.Discount < 1 || p.Discount > 100 {
			return apperrors.Wrap(apperrors.ErrPromoInvalid, fmt.Errorf("discount %d out of [1,100]", p.Discount))
		}
	case models.PromoLevel:
		if !p.Level.Valid() {
			return apperrors.Wrap(apperrors.ErrPromoInvalid, fmt.Errorf("unknown level %q", p.Level))
		}
	default:
		return apperrors.Wrap(apperrors.ErrPromoInvalid, fmt.Errorf("unknown type %q", p.Type))
	}
	if p.MaxUses != nil && *p.MaxUses < 1 {
		return apperrors.Wrap(apperrors.ErrPromoInvalid, fmt.Errorf("max uses %d must be positive", *p.MaxUses))
	}
	return nil
}

var likeEscaper = strings.NewReplacer("%", "", "_", "")

func normalizeSearch(s string) string {
	return strings.ToUpper(likeEscaper.Replace(strings.TrimSpace(s)))
}
