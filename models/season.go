package models

import "time"

// Season is a bounded competitive period. Exactly one season is active at a
// time; a temporary zero-active state is tolerated between close and create.
type Season struct {
	ID        string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Slug      string    `gorm:"uniqueIndex;not null" json:"slug"`
	StartDate time.Time `json:"start_date" gorm:"not null"`
	EndDate   time.Time `json:"end_date" gorm:"not null"`
	Active    bool      `json:"active" gorm:"default:true;index"`

	Timestamps
}

// SeasonHistory freezes one player's final standing for a closed season.
// Created only by the season-close transaction.
type SeasonHistory struct {
	ID        string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	SeasonID  string `gorm:"type:uuid;not null;index" json:"season_id"`
	UserID    string `gorm:"index;not null" json:"user_id"`
	Prestige  int64  `json:"prestige"`
	Placement int    `json:"placement" gorm:"not null"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// PendingReward is generated at season close for top placements and claimed
// exactly once; Collected only ever flips false -> true.
type PendingReward struct {
	ID       string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	SeasonID string `gorm:"type:uuid;not null;index" json:"season_id"`
	UserID   string `gorm:"index;not null" json:"user_id"`

	Placement int   `json:"placement"`
	Coins     int64 `json:"coins" gorm:"default:0"`
	Fragments int64 `json:"fragments" gorm:"default:0"`

	Collected   bool       `json:"collected" gorm:"default:false"`
	CollectedAt *time.Time `json:"collected_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

// Title is a permanent badge granted to the top 10 of a closed season.
type Title struct {
	ID       string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	SeasonID string `gorm:"type:uuid;not null;index" json:"season_id"`
	UserID   string `gorm:"index;not null" json:"user_id"`

	Name      string    `gorm:"not null" json:"name"`
	Placement int       `json:"placement"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
