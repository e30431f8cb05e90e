// client/battle_sync.go
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"monster-arena-system/models"

	"go.uber.org/zap"
)

// DefaultPollInterval is the cadence of the battle polling loop.
const DefaultPollInterval = 2 * time.Second

// Callbacks receive battle progress on the polling goroutine. Each opponent
// action is dispatched exactly once, in log order.
type Callbacks struct {
	OnYourTurn             func(room *models.BattleRoom)
	OnOpponentAction       func(entry models.ActionEntry)
	OnOpponentDisconnected func()
	OnBattleFinished       func(winnerUserID string)
}

// BattleSync runs on a player's device once a match is confirmed. The two
// clients never talk to each other; the battle room row is the rendezvous
// point and this loop is the transport. One outstanding poll at a time,
// cooperative, not reentrant.
type BattleSync struct {
	BaseURL      string
	GatewayToken string
	UserID       string
	MatchID      string

	// Interval may be lowered before Start; it never changes afterwards.
	Interval   time.Duration
	HTTPClient *http.Client

	logger    *zap.Logger
	callbacks Callbacks

	playerNumber int
	lastSeen     int

	disconnectNotified bool
	finished           bool

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewBattleSync(baseURL, gatewayToken, userID, matchID string, callbacks Callbacks, logger *zap.Logger) *BattleSync {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BattleSync{
		BaseURL:      baseURL,
		GatewayToken: gatewayToken,
		UserID:       userID,
		MatchID:      matchID,
		Interval:     DefaultPollInterval,
		HTTPClient:   &http.Client{Timeout: 10 * time.Second},
		logger:       logger,
		callbacks:    callbacks,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start fetches the room, derives the local player's slot, marks ready and
// begins polling. Actions already in the log at this point are history, not
// news; the cursor starts at the current length.
func (s *BattleSync) Start(ctx context.Context) error {
	room, err := s.fetchRoom(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch battle room: %w", err)
	}

	s.playerNumber = room.PlayerNumber(s.UserID)
	if s.playerNumber == 0 {
		return fmt.Errorf("user %s is not a participant of match %s", s.UserID, s.MatchID)
	}
	s.lastSeen = len(room.BattleData.Actions)

	if err := s.markReady(ctx); err != nil {
		return fmt.Errorf("failed to mark ready: %w", err)
	}

	go s.loop(ctx)
	return nil
}

// Stop halts the polling loop and best-effort notifies the room of the
// disconnect. Notification failures are swallowed; teardown never errors.
func (s *BattleSync) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.notifyDisconnect(ctx); err != nil {
				s.logger.Debug("disconnect notify failed", zap.Error(err))
			}
		}()
	})
}

// Done is closed once the polling loop has exited.
func (s *BattleSync) Done() <-chan struct{} {
	return s.done
}

func (s *BattleSync) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			if s.poll(ctx) {
				return
			}
		}
	}
}

// poll runs one fetch-and-dispatch cycle. Returns true when polling should
// end because the battle finished.
func (s *BattleSync) poll(ctx context.Context) bool {
	room, err := s.fetchRoom(ctx)
	if err != nil {
		// Transient failure: keep the cursor, try again next tick.
		s.logger.Warn("battle poll failed", zap.Error(err))
		return false
	}

	if s.opponentDisconnected(room) && !s.disconnectNotified {
		s.disconnectNotified = true
		if s.callbacks.OnOpponentDisconnected != nil {
			s.callbacks.OnOpponentDisconnected()
		}
	}

	// Everything beyond the cursor is new; the log is append-only so length
	// comparison is the progress check.
	if len(room.BattleData.Actions) > s.lastSeen {
		for _, entry := range room.BattleData.Actions[s.lastSeen:] {
			if entry.UserID != s.UserID && s.callbacks.OnOpponentAction != nil {
				s.callbacks.OnOpponentAction(entry)
			}
		}
		s.lastSeen = len(room.BattleData.Actions)
	}

	if room.Status == models.BattleStatusFinished {
		if !s.finished {
			s.finished = true
			if s.callbacks.OnBattleFinished != nil {
				winner := ""
				if room.WinnerUserID != nil {
					winner = *room.WinnerUserID
				}
				s.callbacks.OnBattleFinished(winner)
			}
		}
		return true
	}

	if room.Status == models.BattleStatusActive && room.CurrentPlayer == s.playerNumber {
		if s.callbacks.OnYourTurn != nil {
			s.callbacks.OnYourTurn(room)
		}
	}
	return false
}

func (s *BattleSync) opponentDisconnected(room *models.BattleRoom) bool {
	if s.playerNumber == 1 {
		return !room.Player2Connected
	}
	return !room.Player1Connected
}

// SubmitAction sends the local player's action for the current turn.
func (s *BattleSync) SubmitAction(ctx context.Context, action models.ActionPayload) error {
	body := map[string]interface{}{"action": action}
	return s.do(ctx, http.MethodPost, fmt.Sprintf("/arena/battles/%s/action", s.MatchID), body, nil)
}

func (s *BattleSync) fetchRoom(ctx context.Context) (*models.BattleRoom, error) {
	var room models.BattleRoom
	err := s.do(ctx, http.MethodGet, fmt.Sprintf("/arena/battles/%s", s.MatchID), nil, &room)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *BattleSync) markReady(ctx context.Context) error {
	return s.do(ctx, http.MethodPost, fmt.Sprintf("/arena/battles/%s/ready", s.MatchID), nil, nil)
}

func (s *BattleSync) notifyDisconnect(ctx context.Context) error {
	return s.do(ctx, http.MethodPost, fmt.Sprintf("/arena/battles/%s/disconnect", s.MatchID), nil, nil)
}

func (s *BattleSync) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.GatewayToken)
	req.Header.Set("X-User-ID", s.UserID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var envelope struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&envelope)
		if envelope.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, envelope.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
