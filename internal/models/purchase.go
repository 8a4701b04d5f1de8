package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PurchaseStatus string

const (
	PurchaseNew     PurchaseStatus = "new"
	PurchasePending PurchaseStatus = "pending"
	PurchasePaid    PurchaseStatus = "paid"
	PurchaseCancel  PurchaseStatus = "cancel"
)

const RailYooKassa = "yookassa"

// Purchase is one checkout attempt. The ID doubles as the invoice payload.
type Purchase struct {
	ID                string          `gorm:"primaryKey;size:36" json:"id"`
	UserID            uint            `gorm:"not null;index" json:"user_id"`
	User              *User           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user,omitempty"`
	Type              string          `gorm:"size:32;not null" json:"type"`
	Status            PurchaseStatus  `gorm:"size:16;not null;index" json:"status"`
	Amount            decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency          string          `gorm:"size:8;not null" json:"currency"`
	Month             int             `gorm:"not null" json:"month"`
	TelegramChargeID  string          `gorm:"size:255" json:"telegram_charge_id,omitempty"`
	ProviderChargeID  string          `gorm:"size:255" json:"provider_charge_id,omitempty"`
	SubscriptionUntil *time.Time      `json:"subscription_until,omitempty"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
	CreatedAt         time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
