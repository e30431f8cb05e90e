package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"monster-arena-system/models"
)

// fakeArena is a minimal in-memory stand-in for the battle endpoints the sync
// client talks to.
type fakeArena struct {
	mu          sync.Mutex
	room        models.BattleRoom
	readyCalls  int
	disconnects int
}

func (f *fakeArena) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(f.room)
		case strings.HasSuffix(r.URL.Path, "/ready"):
			f.readyCalls++
			json.NewEncoder(w).Encode(f.room)
		case strings.HasSuffix(r.URL.Path, "/disconnect"):
			f.disconnects++
			json.NewEncoder(w).Encode(map[string]bool{"ok": true})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func (f *fakeArena) update(fn func(room *models.BattleRoom)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.room)
}

func newFakeArena() *fakeArena {
	return &fakeArena{
		room: models.BattleRoom{
			ID:               "match-1",
			Player1UserID:    "user-a",
			Player2UserID:    "user-b",
			Status:           models.BattleStatusActive,
			CurrentPlayer:    1,
			Player1Connected: true,
			Player2Connected: true,
			BattleData: models.BattleData{
				HP: models.BattleHP{Player1: 100, Player2: 100},
			},
		},
	}
}

func startSync(t *testing.T, arena *fakeArena, userID string, callbacks Callbacks) *BattleSync {
	t.Helper()
	server := httptest.NewServer(arena.handler())
	t.Cleanup(server.Close)

	s := NewBattleSync(server.URL, "test-token", userID, "match-1", callbacks, nil)
	s.Interval = 10 * time.Millisecond
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

func TestStartMarksReadyAndSkipsHistory(t *testing.T) {
	arena := newFakeArena()
	// An action already in the log before this client joins is history.
	arena.room.BattleData.Actions = []models.ActionEntry{
		{Player: 2, UserID: "user-b", Turn: 0, Action: models.ActionPayload{"type": "attack"}},
	}

	actions := make(chan models.ActionEntry, 8)
	startSync(t, arena, "user-a", Callbacks{
		OnOpponentAction: func(e models.ActionEntry) { actions <- e },
	})

	select {
	case e := <-actions:
		t.Fatalf("pre-existing action dispatched as new: %+v", e)
	case <-time.After(100 * time.Millisecond):
	}

	arena.mu.Lock()
	ready := arena.readyCalls
	arena.mu.Unlock()
	if ready != 1 {
		t.Fatalf("markReady calls = %d, want 1", ready)
	}
}

func TestOpponentActionsDispatchedOnceInOrder(t *testing.T) {
	arena := newFakeArena()
	actions := make(chan models.ActionEntry, 8)
	startSync(t, arena, "user-a", Callbacks{
		OnOpponentAction: func(e models.ActionEntry) { actions <- e },
	})

	arena.update(func(room *models.BattleRoom) {
		room.BattleData.Actions = append(room.BattleData.Actions,
			models.ActionEntry{Player: 1, UserID: "user-a", Turn: 0, Action: models.ActionPayload{"type": "attack"}},
			models.ActionEntry{Player: 2, UserID: "user-b", Turn: 1, Action: models.ActionPayload{"type": "attack", "damage": float64(5)}},
			models.ActionEntry{Player: 2, UserID: "user-b", Turn: 1, Action: models.ActionPayload{"type": "taunt"}},
		)
	})

	var got []models.ActionEntry
	deadline := time.After(500 * time.Millisecond)
	for len(got) < 2 {
		select {
		case e := <-actions:
			got = append(got, e)
		case <-deadline:
			t.Fatalf("timed out, dispatched %d opponent actions, want 2", len(got))
		}
	}

	if got[0].Action.Type() != "attack" || got[1].Action.Type() != "taunt" {
		t.Fatalf("actions out of order: %v then %v", got[0].Action.Type(), got[1].Action.Type())
	}

	// No re-dispatch on subsequent polls.
	select {
	case e := <-actions:
		t.Fatalf("action dispatched twice: %+v", e)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestOwnActionsAreNotDispatched(t *testing.T) {
	arena := newFakeArena()
	actions := make(chan models.ActionEntry, 8)
	startSync(t, arena, "user-b", Callbacks{
		OnOpponentAction: func(e models.ActionEntry) { actions <- e },
	})

	arena.update(func(room *models.BattleRoom) {
		room.BattleData.Actions = append(room.BattleData.Actions,
			models.ActionEntry{Player: 2, UserID: "user-b", Turn: 0, Action: models.ActionPayload{"type": "attack"}},
		)
	})

	select {
	case e := <-actions:
		t.Fatalf("own action dispatched: %+v", e)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestOpponentDisconnectSignaledOnce(t *testing.T) {
	arena := newFakeArena()
	disconnected := make(chan struct{}, 4)
	startSync(t, arena, "user-a", Callbacks{
		OnOpponentDisconnected: func() { disconnected <- struct{}{} },
	})

	arena.update(func(room *models.BattleRoom) {
		room.Player2Connected = false
	})

	select {
	case <-disconnected:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("disconnect never signaled")
	}

	select {
	case <-disconnected:
		t.Fatal("disconnect signaled twice")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestFinishedBattleStopsPolling(t *testing.T) {
	arena := newFakeArena()
	finished := make(chan string, 1)
	s := startSync(t, arena, "user-a", Callbacks{
		OnBattleFinished: func(winner string) { finished <- winner },
	})

	arena.update(func(room *models.BattleRoom) {
		winner := "user-b"
		room.Status = models.BattleStatusFinished
		room.WinnerUserID = &winner
	})

	select {
	case winner := <-finished:
		if winner != "user-b" {
			t.Fatalf("winner = %q, want user-b", winner)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("battle finish never signaled")
	}

	select {
	case <-s.Done():
	case <-time.After(500 * time.Millisecond):
		t.Fatal("polling loop did not exit after finish")
	}
}

func TestStopNotifiesDisconnectBestEffort(t *testing.T) {
	arena := newFakeArena()
	s := startSync(t, arena, "user-a", Callbacks{})

	s.Stop()

	deadline := time.Now().Add(500 * time.Millisecond)
	for {
		arena.mu.Lock()
		n := arena.disconnects
		arena.mu.Unlock()
		if n >= 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("disconnect notify never sent")
		}
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-s.Done():
	case <-time.After(500 * time.Millisecond):
		t.Fatal("polling loop did not exit after stop")
	}
}

func TestStartRejectsNonParticipant(t *testing.T) {
	arena := newFakeArena()
	server := httptest.NewServer(arena.handler())
	defer server.Close()

	s := NewBattleSync(server.URL, "test-token", "user-z", "match-1", Callbacks{}, nil)
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for non-participant")
	}
}
