package services

import (
	"errors"
	"testing"
	"time"

	"monster-arena-system/models"
)

func TestValidateChallengeResponse(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pending := func(expiresAt time.Time) *models.Challenge {
		return &models.Challenge{
			ChallengerUserID: "user-a",
			ChallengedUserID: "user-b",
			Status:           models.ChallengeStatusPending,
			ExpiresAt:        expiresAt,
		}
	}

	tests := []struct {
		name      string
		challenge *models.Challenge
		userID    string
		wantErr   error
	}{
		{
			name:      "challenged party responds in time",
			challenge: pending(now.Add(time.Hour)),
			userID:    "user-b",
			wantErr:   nil,
		},
		{
			name:      "challenger cannot respond to own challenge",
			challenge: pending(now.Add(time.Hour)),
			userID:    "user-a",
			wantErr:   ErrNotChallengedParty,
		},
		{
			name:      "stranger cannot respond",
			challenge: pending(now.Add(time.Hour)),
			userID:    "user-z",
			wantErr:   ErrNotChallengedParty,
		},
		{
			name:      "expired challenge can never be accepted",
			challenge: pending(now.Add(-time.Minute)),
			userID:    "user-b",
			wantErr:   ErrChallengeExpired,
		},
		{
			name:      "expiring exactly now counts as expired",
			challenge: pending(now),
			userID:    "user-b",
			wantErr:   ErrChallengeExpired,
		},
		{
			name: "already accepted challenge is terminal",
			challenge: &models.Challenge{
				ChallengerUserID: "user-a",
				ChallengedUserID: "user-b",
				Status:           models.ChallengeStatusAccepted,
				ExpiresAt:        now.Add(time.Hour),
			},
			userID:  "user-b",
			wantErr: ErrChallengeNotPending,
		},
		{
			name: "swept challenge stays expired",
			challenge: &models.Challenge{
				ChallengerUserID: "user-a",
				ChallengedUserID: "user-b",
				Status:           models.ChallengeStatusExpired,
				ExpiresAt:        now.Add(-time.Hour),
			},
			userID:  "user-b",
			wantErr: ErrChallengeNotPending,
		},
	}

	for _, tt := range tests {
		err := validateChallengeResponse(tt.challenge, tt.userID, now)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("%s: got %v, want %v", tt.name, err, tt.wantErr)
		}
	}
}
