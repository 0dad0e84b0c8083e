// Package storage defines the persistence contract for the game session
// engine. Two interchangeable backends implement it: a durable SQLite store
// and a volatile in-memory store. The engine must not be able to tell them
// apart.
package storage

import (
	"context"

	"github.com/louisbranch/demono/internal/game/domain"
	apperrors "github.com/louisbranch/demono/internal/platform/errors"
)

// ErrNotFound indicates a requested persistence record is missing.
// Callers use this to differentiate between legitimate "no such entity"
// states and transport or data corruption failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// SessionStore owns the singleton session row.
type SessionStore interface {
	// LoadSession retrieves the active session. The boolean reports whether
	// a session row exists; a missing row is not an error.
	LoadSession(ctx context.Context) (domain.GameSession, bool, error)
	// SaveSession persists the session row, replacing any prior value.
	SaveSession(ctx context.Context, session domain.GameSession) error
}

// PlayerStore owns roster entries keyed by player id.
type PlayerStore interface {
	// ListPlayers returns the roster entries for a round, ordered by name.
	ListPlayers(ctx context.Context, round int) ([]domain.Player, error)
	// GetPlayer retrieves a roster entry by id.
	// Returns ErrNotFound if the id is unknown.
	GetPlayer(ctx context.Context, id string) (domain.Player, error)
	// UpsertPlayer stores a roster entry, replacing any prior value.
	UpsertPlayer(ctx context.Context, player domain.Player) error
	// DeletePlayer removes a roster entry. Score history rows for the
	// player are retained.
	DeletePlayer(ctx context.Context, id string) error
	// AddToPlayerScore adds delta (which may be negative) to a player's
	// live score and returns the new total.
	AddToPlayerScore(ctx context.Context, id string, delta int) (int, error)
	// SetPlayerScore overwrites a player's live score.
	SetPlayerScore(ctx context.Context, id string, value int) error
	// RenamePlayer overwrites a player's name.
	RenamePlayer(ctx context.Context, id, name string) error
}

// ScoreHistoryStore owns the upsert-only per-round score ledger.
type ScoreHistoryStore interface {
	// UpsertScoreRecord writes a player's running total for a round.
	// The last write for a (player, round) pair wins.
	UpsertScoreRecord(ctx context.Context, playerID string, round, score int) error
	// ListScoreHistory returns a player's ledger rows, newest round first.
	ListScoreHistory(ctx context.Context, playerID string) ([]domain.ScoreRecord, error)
	// ListRoundScores returns the ledger rows archived for a round.
	ListRoundScores(ctx context.Context, round int) ([]domain.ScoreRecord, error)
	// TotalScore sums a player's ledger rows across all rounds.
	TotalScore(ctx context.Context, playerID string) (int, error)
}

// TransitionStore owns the multi-statement session transitions. Each method
// is atomic with respect to concurrent reads: a reader never observes a
// half-applied transition.
type TransitionStore interface {
	// AdvanceRound closes fromRound in one atomic unit: the passed ledger
	// records are upserted, the session round is incremented, every live
	// score is zeroed, and every roster entry moves to the new round.
	AdvanceRound(ctx context.Context, fromRound int, records []domain.ScoreRecord) error
	// ResetGame wipes the aggregate in one atomic unit: live scores for
	// the current round are zeroed, every roster entry is deleted, the
	// score ledger is cleared, and next becomes the session row.
	ResetGame(ctx context.Context, next domain.GameSession) error
	// ChangeGameType switches variants in one atomic unit: every roster
	// entry is deleted and next becomes the session row. Ledger rows are
	// retained.
	ChangeGameType(ctx context.Context, next domain.GameSession) error
}

// Store is the composite persistence contract consumed by the engine.
type Store interface {
	SessionStore
	PlayerStore
	ScoreHistoryStore
	TransitionStore
	Close() error
}
