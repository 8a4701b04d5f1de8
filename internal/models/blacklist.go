package models

import (
	"time"
)

type Blacklist struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TelegramID *int64    `gorm:"index" json:"telegram_id,omitempty"`
	AuraID     *string   `gorm:"size:64;index" json:"aura_id,omitempty"`
	Reason     string    `gorm:"size:512" json:"reason"`
	IsActive   bool      `gorm:"not null" json:"is_active"`
	CreatedBy  string    `gorm:"size:64" json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Blacklist) TableName() string {
	return "blacklist"
}
