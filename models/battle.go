package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

type BattleStatus string

const (
	BattleStatusWaiting  BattleStatus = "waiting"
	BattleStatusActive   BattleStatus = "active"
	BattleStatusFinished BattleStatus = "finished"
)

// Battle types an ActiveBattle record can be tagged with.
const (
	BattleTypePvP      = "pvp"
	BattleTypeTraining = "training"
	BattleTypeSurvival = "survival"
)

// ActionPayload is the opaque action body submitted by a client. The server
// only interprets "type" and "damage"; everything else is carried through to
// the opponent untouched.
type ActionPayload map[string]interface{}

const ActionTypeAttack = "attack"

func (p ActionPayload) Type() string {
	t, _ := p["type"].(string)
	return t
}

// Damage extracts the attack damage. JSON numbers decode as float64.
func (p ActionPayload) Damage() int {
	switch v := p["damage"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// ActionEntry is one appended action in a battle's log. The log is append-only
// and its order is the total order the sync clients use to detect new actions.
type ActionEntry struct {
	Player    int           `json:"player"` // 1 or 2
	UserID    string        `json:"user_id"`
	Turn      int           `json:"turn"`
	Action    ActionPayload `json:"action"`
	Timestamp time.Time     `json:"timestamp"`
}

// BattleHP holds both sides' hit points, always within [0, max].
type BattleHP struct {
	Player1 int `json:"player1"`
	Player2 int `json:"player2"`
}

// BattleData is the JSONB document embedded in a BattleRoom row: the ordered
// action log plus current HP.
type BattleData struct {
	Actions []ActionEntry `json:"actions"`
	HP      BattleHP      `json:"hp"`
}

func (d BattleData) Value() (driver.Value, error) {
	return json.Marshal(d)
}

func (d *BattleData) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	case nil:
		*d = BattleData{}
		return nil
	}
	return errors.New("unsupported type for BattleData")
}

// BattleRoom is the single shared mutable resource per match. Both players'
// writes target this row; currentPlayer is the turn-exclusion token.
type BattleRoom struct {
	ID string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`

	Player1UserID string `gorm:"index;not null" json:"player1_user_id"`
	Player2UserID string `gorm:"index;not null" json:"player2_user_id"`

	Status        BattleStatus `json:"status" gorm:"type:varchar(16);default:'waiting';index"`
	CurrentPlayer int          `json:"current_player" gorm:"default:1"` // 1 or 2
	CurrentTurn   int          `json:"current_turn" gorm:"default:0"`

	BattleData BattleData `json:"battle_data" gorm:"type:jsonb"`

	Player1Ready     bool `json:"player1_ready" gorm:"default:false"`
	Player2Ready     bool `json:"player2_ready" gorm:"default:false"`
	Player1Connected bool `json:"player1_connected" gorm:"default:false"`
	Player2Connected bool `json:"player2_connected" gorm:"default:false"`

	Player1LastActionAt *time.Time `json:"player1_last_action_at,omitempty"`
	Player2LastActionAt *time.Time `json:"player2_last_action_at,omitempty"`

	WinnerUserID *string    `json:"winner_user_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// PlayerNumber resolves a user to their slot, or 0 if they are not in the room.
func (r *BattleRoom) PlayerNumber(userID string) int {
	switch userID {
	case r.Player1UserID:
		return 1
	case r.Player2UserID:
		return 2
	}
	return 0
}

// OpponentUserID returns the other side's user, or "" for a non-participant.
func (r *BattleRoom) OpponentUserID(userID string) string {
	switch userID {
	case r.Player1UserID:
		return r.Player2UserID
	case r.Player2UserID:
		return r.Player1UserID
	}
	return ""
}

// ActiveBattle marks a user as being in an in-progress battle of any type.
// Created at battle start and deleted on normal finish; a record whose last
// activity is older than the abandonment window is treated as a disconnect
// and penalized lazily on the next check; there is no server-side timer.
type ActiveBattle struct {
	ID         string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID     string `gorm:"uniqueIndex;not null" json:"user_id"`
	MatchID    string `gorm:"type:uuid;not null" json:"match_id"`
	BattleType string `json:"battle_type" gorm:"type:varchar(16);default:'pvp'"`

	StartedAt time.Time `json:"started_at" gorm:"autoCreateTime"`
	// LastActionAt refreshes on every accepted action in the match, so a long
	// battle with both players present never trips the abandonment window.
	LastActionAt time.Time `json:"last_action_at" gorm:"autoCreateTime"`
}
