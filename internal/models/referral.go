package models

import (
	"time"
)

// Referral is an inviter to invited edge. A user has at most one inviter, ever.
// GrantedLevel is the quota tier the inviter spent on the invited user, if any.
type Referral struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	InviterID    uint      `gorm:"not null;index;uniqueIndex:idx_referral_pair" json:"inviter_id"`
	InvitedID    uint      `gorm:"not null;uniqueIndex;uniqueIndex:idx_referral_pair" json:"invited_id"`
	Inviter      *User     `gorm:"foreignKey:InviterID;constraint:OnDelete:CASCADE;" json:"-"`
	Invited      *User     `gorm:"foreignKey:InvitedID;constraint:OnDelete:CASCADE;" json:"invited,omitempty"`
	GrantedLevel *Level    `gorm:"size:16" json:"granted_level,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}
