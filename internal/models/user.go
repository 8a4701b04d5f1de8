package models

import (
	"time"
)

type User struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	TelegramID      int64      `gorm:"uniqueIndex;not null" json:"telegram_id"`
	AuraID          *string    `gorm:"size:64;uniqueIndex" json:"aura_id,omitempty"`
	Username        string     `gorm:"size:255" json:"username"`
	FullName        string     `gorm:"size:255" json:"full_name"`
	Language        string     `gorm:"size:16" json:"language"`
	Level           Level      `gorm:"size:16;not null;default:ferrum" json:"level"`
	Discount        int        `gorm:"not null;default:0" json:"discount"`
	GrantedArgentum int        `gorm:"not null;default:0" json:"granted_argentum"`
	GrantedAurum    int        `gorm:"not null;default:0" json:"granted_aurum"`
	FirstPaidAt     *time.Time `json:"first_paid_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// EffectiveDiscount never goes below zero even if an admin stored a negative value.
func (u User) EffectiveDiscount() int {
	if u.Discount < 0 {
		return 0
	}
	return u.Discount
}

func (u User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.FullName != "" {
		return u.FullName
	}
	return "user"
}
