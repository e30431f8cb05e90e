package models

import "time"

type QueueStatus string

const (
	QueueStatusWaiting QueueStatus = "waiting"
	QueueStatusMatched QueueStatus = "matched"
)

// QueueEntry is one player waiting for a ranked opponent. There is at most one
// entry per user; entries are deleted on match consumption or explicit leave.
type QueueEntry struct {
	ID       string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID   string `gorm:"uniqueIndex;not null" json:"user_id"`
	AvatarID string `gorm:"type:uuid;not null" json:"avatar_id"`

	Level      int   `json:"level" gorm:"default:1"`
	TotalPower int64 `json:"total_power" gorm:"not null"`
	Prestige   int64 `json:"prestige" gorm:"default:0"`

	Status QueueStatus `json:"status" gorm:"type:varchar(16);default:'waiting';index"`
	// MatchID is set when a joining player pairs with this waiting entry; the
	// entry owner picks it up on their next poll and the entry is deleted.
	MatchID    *string   `json:"match_id,omitempty" gorm:"type:uuid"`
	EnqueuedAt time.Time `json:"enqueued_at" gorm:"autoCreateTime;index"`
}
