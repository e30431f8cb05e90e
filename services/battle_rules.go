// services/battle_rules.go
package services

import (
	"errors"
	"time"

	"monster-arena-system/models"
)

var (
	ErrBattleNotActive = errors.New("battle is not active")
	ErrNotAParticipant = errors.New("user is not a participant in this battle")
	ErrNotYourTurn     = errors.New("not your turn")
)

// MaxBattleHP is the per-side HP ceiling. Damage floors HP at zero; nothing
// raises it above this value.
const MaxBattleHP = 100

func clampHP(hp int) int {
	if hp < 0 {
		return 0
	}
	if hp > MaxBattleHP {
		return MaxBattleHP
	}
	return hp
}

// applyAction validates and applies one submitted action to the room in
// memory. The caller is responsible for running this under a row lock and
// persisting the result in a single write. Returns true when the action
// finished the battle.
func applyAction(room *models.BattleRoom, userID string, payload models.ActionPayload, now time.Time) (bool, error) {
	if room.Status != models.BattleStatusActive {
		return false, ErrBattleNotActive
	}

	playerNumber := room.PlayerNumber(userID)
	if playerNumber == 0 {
		return false, ErrNotAParticipant
	}

	// Sole mutual-exclusion mechanism: the turn token must match the caller,
	// re-read from the store at action time.
	if room.CurrentPlayer != playerNumber {
		return false, ErrNotYourTurn
	}

	room.BattleData.Actions = append(room.BattleData.Actions, models.ActionEntry{
		Player:    playerNumber,
		UserID:    userID,
		Turn:      room.CurrentTurn,
		Action:    payload,
		Timestamp: now,
	})

	won := false
	if payload.Type() == models.ActionTypeAttack {
		damage := payload.Damage()
		if damage > 0 {
			if playerNumber == 1 {
				room.BattleData.HP.Player2 = clampHP(room.BattleData.HP.Player2 - damage)
				won = room.BattleData.HP.Player2 == 0
			} else {
				room.BattleData.HP.Player1 = clampHP(room.BattleData.HP.Player1 - damage)
				won = room.BattleData.HP.Player1 == 0
			}
		}
	}

	if room.CurrentPlayer == 1 {
		room.CurrentPlayer = 2
	} else {
		room.CurrentPlayer = 1
	}
	room.CurrentTurn++

	if playerNumber == 1 {
		room.Player1LastActionAt = &now
	} else {
		room.Player2LastActionAt = &now
	}

	if won {
		room.Status = models.BattleStatusFinished
		winner := userID
		room.WinnerUserID = &winner
		room.FinishedAt = &now
	}

	return won, nil
}
