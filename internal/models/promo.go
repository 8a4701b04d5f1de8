package models

import (
	"time"
)

type PromoType string

const (
	PromoDiscount PromoType = "discount"
	PromoLevel    PromoType = "level"
)

type PromoCode struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Code        string     `gorm:"size:64;uniqueIndex;not null" json:"code"`
	Type        PromoType  `gorm:"size:16;not null" json:"type"`
	Discount    int        `gorm:"not null;default:0" json:"discount"`
	Level       Level      `gorm:"size:16" json:"level,omitempty"`
	MaxUses     *int       `json:"max_uses"`
	UsedCount   int        `gorm:"not null;default:0" json:"used_count"`
	ExpiresAt   *time.Time `json:"expires_at"`
	IsActive    bool       `gorm:"not null" json:"is_active"`
	Description string     `gorm:"size:512" json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (p PromoCode) Exhausted() bool {
	return p.MaxUses != nil && p.UsedCount >= *p.MaxUses
}

func (p PromoCode) ExpiredAt(now time.Time) bool {
	return p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}

// PromoRedemption records that a user consumed a code.
type PromoRedemption struct {
	PromoCodeID uint      `gorm:"primaryKey" json:"promo_code_id"`
	UserID      uint      `gorm:"primaryKey" json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}
