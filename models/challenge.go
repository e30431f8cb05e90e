package models

import "time"

type ChallengeStatus string

const (
	ChallengeStatusPending  ChallengeStatus = "pending"
	ChallengeStatusAccepted ChallengeStatus = "accepted"
	ChallengeStatusRejected ChallengeStatus = "rejected"
	ChallengeStatusExpired  ChallengeStatus = "expired"
)

// Challenge is a direct PvP invitation between two specific players. It makes
// exactly one terminal transition (accepted/rejected/expired) and is deleted
// once the challenger has claimed the resulting match.
type Challenge struct {
	ID string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`

	ChallengerUserID   string  `gorm:"index;not null" json:"challenger_user_id"`
	ChallengerAvatarID string  `gorm:"type:uuid;not null" json:"challenger_avatar_id"`
	ChallengedUserID   string  `gorm:"index;not null" json:"challenged_user_id"`
	ChallengedAvatarID *string `gorm:"type:uuid" json:"challenged_avatar_id,omitempty"`

	// Stat snapshot taken at creation time so the challenged player sees the
	// numbers the invitation was based on, not live values.
	ChallengerLevel    int   `json:"challenger_level"`
	ChallengerPower    int64 `json:"challenger_power"`
	ChallengerPrestige int64 `json:"challenger_prestige"`

	Status      ChallengeStatus `json:"status" gorm:"type:varchar(16);default:'pending';index"`
	MatchID     *string         `json:"match_id,omitempty" gorm:"type:uuid"`
	CreatedAt   time.Time       `json:"created_at" gorm:"autoCreateTime"`
	ExpiresAt   time.Time       `json:"expires_at" gorm:"index;not null"`
	RespondedAt *time.Time      `json:"responded_at,omitempty"`
}

// TimeRemaining returns the whole seconds left before expiry, never negative.
// Computed on every read, not cached.
func (c *Challenge) TimeRemaining(now time.Time) int64 {
	remaining := int64(c.ExpiresAt.Sub(now).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}
