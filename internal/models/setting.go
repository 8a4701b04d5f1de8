package models

import (
	"time"
)

type Setting struct {
	Key         string    `gorm:"primaryKey;size:64" json:"key"`
	Value       string    `gorm:"size:255;not null" json:"value"`
	Description string    `gorm:"size:512" json:"description"`
	UpdatedBy   string    `gorm:"size:64" json:"updated_by"`
	UpdatedAt   time.Time `json:"updated_at"`
}
