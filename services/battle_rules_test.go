package services

import (
	"errors"
	"testing"
	"time"

	"monster-arena-system/models"
)

func newActiveRoom() *models.BattleRoom {
	return &models.BattleRoom{
		ID:            "room-1",
		Player1UserID: "user-a",
		Player2UserID: "user-b",
		Status:        models.BattleStatusActive,
		CurrentPlayer: 1,
		CurrentTurn:   0,
		BattleData: models.BattleData{
			HP: models.BattleHP{Player1: MaxBattleHP, Player2: MaxBattleHP},
		},
	}
}

func attack(damage int) models.ActionPayload {
	return models.ActionPayload{"type": "attack", "damage": float64(damage)}
}

func TestApplyActionAlternatesTurns(t *testing.T) {
	room := newActiveRoom()
	now := time.Now()

	turns := []struct {
		userID     string
		wantPlayer int
	}{
		{"user-a", 1},
		{"user-b", 2},
		{"user-a", 1},
		{"user-b", 2},
	}

	for i, step := range turns {
		if room.CurrentPlayer != step.wantPlayer {
			t.Fatalf("turn %d: currentPlayer=%d want %d", i, room.CurrentPlayer, step.wantPlayer)
		}
		if _, err := applyAction(room, step.userID, attack(5), now); err != nil {
			t.Fatalf("turn %d: unexpected error: %v", i, err)
		}
		if room.CurrentTurn != i+1 {
			t.Fatalf("turn %d: currentTurn=%d want %d", i, room.CurrentTurn, i+1)
		}
	}
}

func TestApplyActionRejectsOutOfTurn(t *testing.T) {
	room := newActiveRoom()

	_, err := applyAction(room, "user-b", attack(10), time.Now())
	if !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("expected ErrNotYourTurn, got %v", err)
	}
	if len(room.BattleData.Actions) != 0 {
		t.Fatalf("rejected action must not be appended, log has %d entries", len(room.BattleData.Actions))
	}
	if room.CurrentTurn != 0 || room.CurrentPlayer != 1 {
		t.Fatalf("rejected action must not advance state: turn=%d player=%d", room.CurrentTurn, room.CurrentPlayer)
	}
}

func TestApplyActionRejectsNonParticipant(t *testing.T) {
	room := newActiveRoom()
	if _, err := applyAction(room, "user-z", attack(10), time.Now()); !errors.Is(err, ErrNotAParticipant) {
		t.Fatalf("expected ErrNotAParticipant, got %v", err)
	}
}

func TestApplyActionRejectsInactiveRoom(t *testing.T) {
	cases := []models.BattleStatus{models.BattleStatusWaiting, models.BattleStatusFinished}
	for _, status := range cases {
		room := newActiveRoom()
		room.Status = status
		if _, err := applyAction(room, "user-a", attack(10), time.Now()); !errors.Is(err, ErrBattleNotActive) {
			t.Fatalf("status %s: expected ErrBattleNotActive, got %v", status, err)
		}
	}
}

func TestApplyActionLethalDamageFinishesBattle(t *testing.T) {
	room := newActiveRoom()
	room.BattleData.HP.Player2 = 50

	won, err := applyAction(room, "user-a", attack(60), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !won {
		t.Fatal("expected winning action")
	}
	if room.BattleData.HP.Player2 != 0 {
		t.Fatalf("hp floored at 0, got %d", room.BattleData.HP.Player2)
	}
	if room.Status != models.BattleStatusFinished {
		t.Fatalf("status=%s want finished", room.Status)
	}
	if room.WinnerUserID == nil || *room.WinnerUserID != "user-a" {
		t.Fatalf("winner=%v want user-a", room.WinnerUserID)
	}
	if room.FinishedAt == nil {
		t.Fatal("finishedAt not stamped")
	}
}

func TestHPStaysInBounds(t *testing.T) {
	room := newActiveRoom()

	// Hammer both sides with oversized damage; HP must stay in [0, max].
	users := []string{"user-a", "user-b"}
	for i := 0; i < 6; i++ {
		_, err := applyAction(room, users[i%2], attack(999), time.Now())
		if err != nil {
			if errors.Is(err, ErrBattleNotActive) {
				break // someone already won
			}
			t.Fatalf("unexpected error: %v", err)
		}
	}
	for _, hp := range []int{room.BattleData.HP.Player1, room.BattleData.HP.Player2} {
		if hp < 0 || hp > MaxBattleHP {
			t.Fatalf("hp out of bounds: %d", hp)
		}
	}
}

func TestAbandonExpiredTracksActivityNotBattleStart(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		startedAt    time.Time
		lastActionAt time.Time
		want         bool
	}{
		{
			name:         "fresh battle",
			startedAt:    now.Add(-time.Minute),
			lastActionAt: now.Add(-time.Minute),
			want:         false,
		},
		{
			name:         "long battle with recent action",
			startedAt:    now.Add(-2 * time.Hour),
			lastActionAt: now.Add(-time.Minute),
			want:         false,
		},
		{
			name:         "no action inside the window",
			startedAt:    now.Add(-2 * time.Hour),
			lastActionAt: now.Add(-31 * time.Minute),
			want:         true,
		},
		{
			name:         "exactly at the window boundary",
			startedAt:    now.Add(-DefaultAbandonAfter),
			lastActionAt: now.Add(-DefaultAbandonAfter),
			want:         true,
		},
	}

	for _, tt := range tests {
		record := &models.ActiveBattle{StartedAt: tt.startedAt, LastActionAt: tt.lastActionAt}
		if got := abandonExpired(record, now, DefaultAbandonAfter); got != tt.want {
			t.Errorf("%s: abandonExpired = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestApplyActionKeepsOpaquePayload(t *testing.T) {
	room := newActiveRoom()
	payload := models.ActionPayload{"type": "taunt", "emote": "flex"}

	if _, err := applyAction(room, "user-a", payload, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(room.BattleData.Actions) != 1 {
		t.Fatalf("expected 1 logged action, got %d", len(room.BattleData.Actions))
	}
	got := room.BattleData.Actions[0]
	if got.Action["emote"] != "flex" {
		t.Fatalf("opaque payload field lost: %v", got.Action)
	}
	// Non-attack actions never touch HP.
	if room.BattleData.HP.Player2 != MaxBattleHP {
		t.Fatalf("non-attack action changed hp: %d", room.BattleData.HP.Player2)
	}
}
