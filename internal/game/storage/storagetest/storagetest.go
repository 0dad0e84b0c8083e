// Package storagetest exercises the game storage contract against any
// backend.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/demono/internal/game/domain"
	"github.com/louisbranch/demono/internal/game/storage"
)

// Factory builds a fresh, empty store for one subtest.
type Factory func(t *testing.T) storage.Store

// Run exercises every store operation against the backend produced by the
// factory. Backends must be indistinguishable under these tests.
func Run(t *testing.T, newStore Factory) {
	t.Run("session round trip", func(t *testing.T) {
		testSessionRoundTrip(t, newStore(t))
	})
	t.Run("roster operations", func(t *testing.T) {
		testRosterOperations(t, newStore(t))
	})
	t.Run("score mutations", func(t *testing.T) {
		testScoreMutations(t, newStore(t))
	})
	t.Run("score ledger", func(t *testing.T) {
		testScoreLedger(t, newStore(t))
	})
	t.Run("advance round", func(t *testing.T) {
		testAdvanceRound(t, newStore(t))
	})
	t.Run("reset game", func(t *testing.T) {
		testResetGame(t, newStore(t))
	})
	t.Run("change game type", func(t *testing.T) {
		testChangeGameType(t, newStore(t))
	})
	t.Run("canceled context", func(t *testing.T) {
		testCanceledContext(t, newStore(t))
	})
}

func testSessionRoundTrip(t *testing.T, store storage.Store) {
	ctx := context.Background()

	if _, ok, err := store.LoadSession(ctx); err != nil {
		t.Fatalf("LoadSession() error = %v", err)
	} else if ok {
		t.Fatalf("LoadSession() ok = true, want false on empty store")
	}

	session := domain.GameSession{
		Round:     3,
		GameType:  domain.GameTypeIncremental,
		UpdatedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := store.SaveSession(ctx, session); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	got, ok, err := store.LoadSession(ctx)
	if err != nil {
		t.Fatalf("LoadSession() error = %v", err)
	}
	if !ok {
		t.Fatalf("LoadSession() ok = false, want true after save")
	}
	if got.Round != session.Round || got.GameType != session.GameType {
		t.Fatalf("LoadSession() = %+v, want %+v", got, session)
	}
	if !got.UpdatedAt.Equal(session.UpdatedAt) {
		t.Fatalf("LoadSession() UpdatedAt = %v, want %v", got.UpdatedAt, session.UpdatedAt)
	}

	session.Round = 4
	if err := store.SaveSession(ctx, session); err != nil {
		t.Fatalf("SaveSession() overwrite error = %v", err)
	}
	got, _, err = store.LoadSession(ctx)
	if err != nil {
		t.Fatalf("LoadSession() error = %v", err)
	}
	if got.Round != 4 {
		t.Fatalf("LoadSession() Round = %d, want 4 after overwrite", got.Round)
	}
}

func testRosterOperations(t *testing.T, store storage.Store) {
	ctx := context.Background()

	if _, err := store.GetPlayer(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetPlayer(missing) error = %v, want ErrNotFound", err)
	}
	if err := store.DeletePlayer(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("DeletePlayer(missing) error = %v, want ErrNotFound", err)
	}

	players := []domain.Player{
		{ID: "id-c", Name: "carol", Score: 5, Round: 1},
		{ID: "id-a", Name: "alice", Score: 0, Round: 1},
		{ID: "id-b", Name: "bob", Score: 2, Round: 1},
	}
	for _, player := range players {
		if err := store.UpsertPlayer(ctx, player); err != nil {
			t.Fatalf("UpsertPlayer(%s) error = %v", player.ID, err)
		}
	}

	listed, err := store.ListPlayers(ctx, 1)
	if err != nil {
		t.Fatalf("ListPlayers() error = %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("ListPlayers() len = %d, want 3", len(listed))
	}
	wantOrder := []string{"alice", "bob", "carol"}
	for i, name := range wantOrder {
		if listed[i].Name != name {
			t.Fatalf("ListPlayers()[%d].Name = %q, want %q", i, listed[i].Name, name)
		}
	}

	other, err := store.ListPlayers(ctx, 2)
	if err != nil {
		t.Fatalf("ListPlayers(2) error = %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("ListPlayers(2) len = %d, want 0", len(other))
	}

	got, err := store.GetPlayer(ctx, "id-b")
	if err != nil {
		t.Fatalf("GetPlayer(id-b) error = %v", err)
	}
	if got.Name != "bob" || got.Score != 2 || got.Round != 1 {
		t.Fatalf("GetPlayer(id-b) = %+v", got)
	}

	if err := store.DeletePlayer(ctx, "id-b"); err != nil {
		t.Fatalf("DeletePlayer(id-b) error = %v", err)
	}
	if _, err := store.GetPlayer(ctx, "id-b"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetPlayer after delete error = %v, want ErrNotFound", err)
	}
}

func testScoreMutations(t *testing.T, store storage.Store) {
	ctx := context.Background()

	if _, err := store.AddToPlayerScore(ctx, "missing", 1); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("AddToPlayerScore(missing) error = %v, want ErrNotFound", err)
	}
	if err := store.SetPlayerScore(ctx, "missing", 1); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("SetPlayerScore(missing) error = %v, want ErrNotFound", err)
	}
	if err := store.RenamePlayer(ctx, "missing", "x"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("RenamePlayer(missing) error = %v, want ErrNotFound", err)
	}

	if err := store.UpsertPlayer(ctx, domain.Player{ID: "id-a", Name: "alice", Round: 1}); err != nil {
		t.Fatalf("UpsertPlayer() error = %v", err)
	}

	total, err := store.AddToPlayerScore(ctx, "id-a", 10)
	if err != nil {
		t.Fatalf("AddToPlayerScore(+10) error = %v", err)
	}
	if total != 10 {
		t.Fatalf("AddToPlayerScore(+10) = %d, want 10", total)
	}
	total, err = store.AddToPlayerScore(ctx, "id-a", -3)
	if err != nil {
		t.Fatalf("AddToPlayerScore(-3) error = %v", err)
	}
	if total != 7 {
		t.Fatalf("AddToPlayerScore(-3) = %d, want 7", total)
	}

	if err := store.SetPlayerScore(ctx, "id-a", 42); err != nil {
		t.Fatalf("SetPlayerScore() error = %v", err)
	}
	if err := store.RenamePlayer(ctx, "id-a", "alicia"); err != nil {
		t.Fatalf("RenamePlayer() error = %v", err)
	}

	got, err := store.GetPlayer(ctx, "id-a")
	if err != nil {
		t.Fatalf("GetPlayer() error = %v", err)
	}
	if got.Score != 42 || got.Name != "alicia" {
		t.Fatalf("GetPlayer() = %+v, want score 42 name alicia", got)
	}
}

func testScoreLedger(t *testing.T, store storage.Store) {
	ctx := context.Background()

	total, err := store.TotalScore(ctx, "id-a")
	if err != nil {
		t.Fatalf("TotalScore() error = %v", err)
	}
	if total != 0 {
		t.Fatalf("TotalScore() = %d, want 0 with no rows", total)
	}

	records := []struct {
		playerID     string
		round, score int
	}{
		{"id-a", 1, 15},
		{"id-a", 2, 7},
		{"id-b", 1, 3},
	}
	for _, record := range records {
		if err := store.UpsertScoreRecord(ctx, record.playerID, record.round, record.score); err != nil {
			t.Fatalf("UpsertScoreRecord(%s, %d) error = %v", record.playerID, record.round, err)
		}
	}
	// Same round is a rewrite, not a second row.
	if err := store.UpsertScoreRecord(ctx, "id-a", 2, 9); err != nil {
		t.Fatalf("UpsertScoreRecord overwrite error = %v", err)
	}

	history, err := store.ListScoreHistory(ctx, "id-a")
	if err != nil {
		t.Fatalf("ListScoreHistory() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("ListScoreHistory() len = %d, want 2", len(history))
	}
	if history[0].Round != 2 || history[0].Score != 9 {
		t.Fatalf("ListScoreHistory()[0] = %+v, want round 2 score 9", history[0])
	}
	if history[1].Round != 1 || history[1].Score != 15 {
		t.Fatalf("ListScoreHistory()[1] = %+v, want round 1 score 15", history[1])
	}

	roundScores, err := store.ListRoundScores(ctx, 1)
	if err != nil {
		t.Fatalf("ListRoundScores() error = %v", err)
	}
	if len(roundScores) != 2 {
		t.Fatalf("ListRoundScores(1) len = %d, want 2", len(roundScores))
	}
	if roundScores[0].PlayerID != "id-a" || roundScores[1].PlayerID != "id-b" {
		t.Fatalf("ListRoundScores(1) order = %q, %q", roundScores[0].PlayerID, roundScores[1].PlayerID)
	}

	total, err = store.TotalScore(ctx, "id-a")
	if err != nil {
		t.Fatalf("TotalScore() error = %v", err)
	}
	if total != 24 {
		t.Fatalf("TotalScore(id-a) = %d, want 24", total)
	}
}

func testAdvanceRound(t *testing.T, store storage.Store) {
	ctx := context.Background()

	err := store.AdvanceRound(ctx, 1, nil)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("AdvanceRound without session error = %v, want ErrNotFound", err)
	}

	session := domain.GameSession{Round: 1, GameType: domain.GameTypeFreeForm, UpdatedAt: time.Now().UTC()}
	if err := store.SaveSession(ctx, session); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}
	for _, player := range []domain.Player{
		{ID: "id-a", Name: "alice", Score: 15, Round: 1},
		{ID: "id-b", Name: "bob", Score: 0, Round: 1},
	} {
		if err := store.UpsertPlayer(ctx, player); err != nil {
			t.Fatalf("UpsertPlayer(%s) error = %v", player.ID, err)
		}
	}

	records := []domain.ScoreRecord{{PlayerID: "id-a", Round: 1, Score: 15}}
	if err := store.AdvanceRound(ctx, 1, records); err != nil {
		t.Fatalf("AdvanceRound() error = %v", err)
	}

	got, ok, err := store.LoadSession(ctx)
	if err != nil || !ok {
		t.Fatalf("LoadSession() = ok %v, error %v", ok, err)
	}
	if got.Round != 2 {
		t.Fatalf("session Round = %d, want 2", got.Round)
	}
	if got.GameType != domain.GameTypeFreeForm {
		t.Fatalf("session GameType = %q, want unchanged", got.GameType)
	}

	players, err := store.ListPlayers(ctx, 2)
	if err != nil {
		t.Fatalf("ListPlayers(2) error = %v", err)
	}
	if len(players) != 2 {
		t.Fatalf("ListPlayers(2) len = %d, want 2: roster must follow the round", len(players))
	}
	for _, player := range players {
		if player.Score != 0 {
			t.Fatalf("player %s Score = %d, want 0 after round close", player.ID, player.Score)
		}
	}

	history, err := store.ListScoreHistory(ctx, "id-a")
	if err != nil {
		t.Fatalf("ListScoreHistory() error = %v", err)
	}
	if len(history) != 1 || history[0].Round != 1 || history[0].Score != 15 {
		t.Fatalf("ListScoreHistory(id-a) = %+v, want one round-1 row of 15", history)
	}
	if history[0].RecordedAt.IsZero() {
		t.Fatalf("ListScoreHistory(id-a) RecordedAt is zero")
	}
}

func testResetGame(t *testing.T, store storage.Store) {
	ctx := context.Background()

	seedAggregate(t, store)

	next := domain.GameSession{Round: 1, GameType: domain.GameTypeTeam, UpdatedAt: time.Now().UTC()}
	if err := store.ResetGame(ctx, next); err != nil {
		t.Fatalf("ResetGame() error = %v", err)
	}

	got, ok, err := store.LoadSession(ctx)
	if err != nil || !ok {
		t.Fatalf("LoadSession() = ok %v, error %v", ok, err)
	}
	if got.Round != 1 || got.GameType != domain.GameTypeTeam {
		t.Fatalf("session after reset = %+v", got)
	}

	players, err := store.ListPlayers(ctx, 1)
	if err != nil {
		t.Fatalf("ListPlayers() error = %v", err)
	}
	if len(players) != 0 {
		t.Fatalf("ListPlayers() len = %d, want empty roster after reset", len(players))
	}

	history, err := store.ListScoreHistory(ctx, "id-a")
	if err != nil {
		t.Fatalf("ListScoreHistory() error = %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("ListScoreHistory() len = %d, want empty ledger after reset", len(history))
	}
}

func testChangeGameType(t *testing.T, store storage.Store) {
	ctx := context.Background()

	seedAggregate(t, store)

	next := domain.GameSession{Round: 1, GameType: domain.GameTypeIncremental, UpdatedAt: time.Now().UTC()}
	if err := store.ChangeGameType(ctx, next); err != nil {
		t.Fatalf("ChangeGameType() error = %v", err)
	}

	got, ok, err := store.LoadSession(ctx)
	if err != nil || !ok {
		t.Fatalf("LoadSession() = ok %v, error %v", ok, err)
	}
	if got.Round != 1 || got.GameType != domain.GameTypeIncremental {
		t.Fatalf("session after type change = %+v", got)
	}

	players, err := store.ListPlayers(ctx, 1)
	if err != nil {
		t.Fatalf("ListPlayers() error = %v", err)
	}
	if len(players) != 0 {
		t.Fatalf("ListPlayers() len = %d, want empty roster after type change", len(players))
	}

	history, err := store.ListScoreHistory(ctx, "id-a")
	if err != nil {
		t.Fatalf("ListScoreHistory() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("ListScoreHistory() len = %d, want ledger retained across type change", len(history))
	}
}

func testCanceledContext(t *testing.T, store storage.Store) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := store.LoadSession(ctx); err == nil {
		t.Fatalf("LoadSession() with canceled context returned nil error")
	}
	if err := store.UpsertPlayer(ctx, domain.Player{ID: "id-a", Name: "alice", Round: 1}); err == nil {
		t.Fatalf("UpsertPlayer() with canceled context returned nil error")
	}
	if err := store.AdvanceRound(ctx, 1, nil); err == nil {
		t.Fatalf("AdvanceRound() with canceled context returned nil error")
	}
}

func seedAggregate(t *testing.T, store storage.Store) {
	t.Helper()
	ctx := context.Background()

	session := domain.GameSession{Round: 2, GameType: domain.GameTypeFreeForm, UpdatedAt: time.Now().UTC()}
	if err := store.SaveSession(ctx, session); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}
	if err := store.UpsertPlayer(ctx, domain.Player{ID: "id-a", Name: "alice", Score: 4, Round: 2}); err != nil {
		t.Fatalf("UpsertPlayer() error = %v", err)
	}
	if err := store.UpsertScoreRecord(ctx, "id-a", 1, 15); err != nil {
		t.Fatalf("UpsertScoreRecord() error = %v", err)
	}
}
