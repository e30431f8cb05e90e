package models

// Avatar is a collectible monster owned by a player. The arena service only
// tracks the fields that matchmaking and the marketplace need; cosmetic and
// story-mode data live in the inventory service.
type Avatar struct {
	ID      string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	OwnerID string `gorm:"index;not null" json:"owner_id"`
	Name    string `gorm:"not null" json:"name"`

	Level      int   `json:"level" gorm:"default:1"`
	TotalPower int64 `json:"total_power" gorm:"default:0"` // sum of core stats, matchmaking metric
	CurrentHP  int   `json:"current_hp" gorm:"default:100"`
	MaxHP      int   `json:"max_hp" gorm:"default:100"`
	Exhaustion int   `json:"exhaustion" gorm:"default:0"`

	// DeathMarked avatars are queued for permadeath cleanup and cannot be traded.
	DeathMarked bool `json:"death_marked" gorm:"default:false"`

	Timestamps
}

// Alive reports whether the avatar can fight or be listed on the market.
func (a *Avatar) Alive() bool {
	return a.CurrentHP > 0
}
