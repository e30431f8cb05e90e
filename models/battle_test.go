package models

import (
	"testing"
	"time"
)

func TestChallengeTimeRemaining(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		expiresAt time.Time
		want      int64
	}{
		{"one hour left", now.Add(1 * time.Hour), 3600},
		{"expires now", now, 0},
		{"already expired", now.Add(-5 * time.Minute), 0},
		{"sub-second truncates", now.Add(1500 * time.Millisecond), 1},
	}
	for _, tt := range tests {
		c := Challenge{ExpiresAt: tt.expiresAt}
		if got := c.TimeRemaining(now); got != tt.want {
			t.Errorf("%s: TimeRemaining = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestActionPayloadDamage(t *testing.T) {
	tests := []struct {
		name    string
		payload ActionPayload
		want    int
	}{
		{"json float", ActionPayload{"damage": float64(42)}, 42},
		{"plain int", ActionPayload{"damage": 17}, 17},
		{"missing", ActionPayload{"type": "taunt"}, 0},
		{"wrong type", ActionPayload{"damage": "lots"}, 0},
	}
	for _, tt := range tests {
		if got := tt.payload.Damage(); got != tt.want {
			t.Errorf("%s: Damage = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestBattleRoomPlayerResolution(t *testing.T) {
	room := BattleRoom{Player1UserID: "user-a", Player2UserID: "user-b"}

	if n := room.PlayerNumber("user-a"); n != 1 {
		t.Errorf("PlayerNumber(user-a) = %d, want 1", n)
	}
	if n := room.PlayerNumber("user-b"); n != 2 {
		t.Errorf("PlayerNumber(user-b) = %d, want 2", n)
	}
	if n := room.PlayerNumber("stranger"); n != 0 {
		t.Errorf("PlayerNumber(stranger) = %d, want 0", n)
	}

	if opp := room.OpponentUserID("user-a"); opp != "user-b" {
		t.Errorf("OpponentUserID(user-a) = %q, want user-b", opp)
	}
	if opp := room.OpponentUserID("stranger"); opp != "" {
		t.Errorf("OpponentUserID(stranger) = %q, want empty", opp)
	}
}
