// services/challenge_rules.go
package services

import (
	"time"

	"monster-arena-system/models"
)

// validateChallengeResponse decides whether userID may apply a terminal
// transition to the challenge at the given instant. Order matters: party
// before state, state before expiry, so a stranger probing an expired
// challenge learns nothing about it.
func validateChallengeResponse(challenge *models.Challenge, userID string, now time.Time) error {
	if challenge.ChallengedUserID != userID {
		return ErrNotChallengedParty
	}
	if challenge.Status != models.ChallengeStatusPending {
		return ErrChallengeNotPending
	}
	if !challenge.ExpiresAt.After(now) {
		return ErrChallengeExpired
	}
	return nil
}
