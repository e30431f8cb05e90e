package models

import (
	"time"

	"gorm.io/gorm"
)

// PlayerProfile is the local snapshot of a player that the arena service owns:
// currencies, prestige and equipment state. Identity fields are populated by the
// profile sync worker; balances are mutated only inside economic transactions.
type PlayerProfile struct {
	ID       string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID   string `gorm:"uniqueIndex;not null" json:"user_id"` // links to profile service
	Username string `gorm:"index;not null" json:"username"`

	Coins     int64 `json:"coins" gorm:"default:0"`
	Fragments int64 `json:"fragments" gorm:"default:0"`
	Prestige  int64 `json:"prestige" gorm:"default:0;index"`
	Level     int   `json:"level" gorm:"default:1"`

	EquippedAvatarID *string `json:"equipped_avatar_id,omitempty" gorm:"type:uuid"`
	AvatarSlots      int     `json:"avatar_slots" gorm:"default:30"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
