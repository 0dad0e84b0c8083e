// Package engine implements the game session state machine: roster
// management, score mutations, round transitions, and variant switches,
// validated before any store write.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/demono/internal/game/domain"
	"github.com/louisbranch/demono/internal/game/storage"
	apperrors "github.com/louisbranch/demono/internal/platform/errors"
)

// Engine applies game session operations against a store. Operations
// validate first and never leave the aggregate half-applied.
type Engine struct {
	store storage.Store
	clock func() time.Time
	newID func() (string, error)
}

// New creates an Engine backed by the provided store.
func New(store storage.Store) *Engine {
	return &Engine{
		store: store,
		clock: time.Now,
		newID: domain.NewID,
	}
}

// Session loads the current session, creating the default one when the
// store is empty.
func (e *Engine) Session(ctx context.Context) (domain.GameSession, error) {
	if e == nil || e.store == nil {
		return domain.GameSession{}, errors.New("store is required")
	}

	session, ok, err := e.store.LoadSession(ctx)
	if err != nil {
		return domain.GameSession{}, apperrors.Wrap(apperrors.CodeStorage, "load session", err)
	}
	if ok {
		return session, nil
	}

	session = domain.NewGameSession(e.clock)
	if err := e.store.SaveSession(ctx, session); err != nil {
		return domain.GameSession{}, apperrors.Wrap(apperrors.CodeStorage, "initialize session", err)
	}
	return session, nil
}

// Players returns the roster for the session's current round, ordered by
// name.
func (e *Engine) Players(ctx context.Context) ([]domain.Player, error) {
	session, err := e.Session(ctx)
	if err != nil {
		return nil, err
	}

	players, err := e.store.ListPlayers(ctx, session.Round)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "list players", err)
	}
	return players, nil
}

// AddPlayer adds a named player with a fresh id and a zero score to the
// current round. The variant's roster limit is enforced before the write.
func (e *Engine) AddPlayer(ctx context.Context, name string) (domain.Player, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Player{}, apperrors.New(apperrors.CodePlayerNameEmpty, "player name is required")
	}

	session, err := e.Session(ctx)
	if err != nil {
		return domain.Player{}, err
	}

	players, err := e.store.ListPlayers(ctx, session.Round)
	if err != nil {
		return domain.Player{}, apperrors.Wrap(apperrors.CodeStorage, "list players", err)
	}
	if !session.GameType.CanAddPlayer(len(players)) {
		return domain.Player{}, apperrors.WithMetadata(
			apperrors.CodeRosterLimitExceeded,
			session.GameType.LimitMessage(),
			map[string]string{"game_type": string(session.GameType)},
		)
	}

	player, err := domain.NewPlayer(name, session.Round, e.newID)
	if err != nil {
		return domain.Player{}, fmt.Errorf("new player: %w", err)
	}
	if err := e.store.UpsertPlayer(ctx, player); err != nil {
		return domain.Player{}, apperrors.Wrap(apperrors.CodeStorage, "add player", err)
	}
	return player, nil
}

// AdjustScore adds delta to a player's live score and records the new
// running total as the player's ledger row for the current round. Returns
// the new total.
func (e *Engine) AdjustScore(ctx context.Context, id string, delta int) (int, error) {
	session, err := e.Session(ctx)
	if err != nil {
		return 0, err
	}

	total, err := e.store.AddToPlayerScore(ctx, id, delta)
	if err != nil {
		return 0, playerError(id, "adjust score", err)
	}
	if err := e.store.UpsertScoreRecord(ctx, id, session.Round, total); err != nil {
		return 0, apperrors.Wrap(apperrors.CodeStorage, "record score", err)
	}
	return total, nil
}

// SetScore overwrites a player's live score. The ledger converges at the
// next round close.
func (e *Engine) SetScore(ctx context.Context, id string, value int) error {
	if err := e.store.SetPlayerScore(ctx, id, value); err != nil {
		return playerError(id, "set score", err)
	}
	return nil
}

// RenamePlayer overwrites a player's display name.
func (e *Engine) RenamePlayer(ctx context.Context, id, name string) error {
	if strings.TrimSpace(name) == "" {
		return apperrors.New(apperrors.CodePlayerNameEmpty, "player name is required")
	}
	if err := e.store.RenamePlayer(ctx, id, name); err != nil {
		return playerError(id, "rename player", err)
	}
	return nil
}

// EditPlayer overwrites a player's name and live score in one operation.
func (e *Engine) EditPlayer(ctx context.Context, id, name string, score int) error {
	if strings.TrimSpace(name) == "" {
		return apperrors.New(apperrors.CodePlayerNameEmpty, "player name is required")
	}
	if _, err := e.store.GetPlayer(ctx, id); err != nil {
		return playerError(id, "edit player", err)
	}
	if err := e.store.RenamePlayer(ctx, id, name); err != nil {
		return playerError(id, "edit player", err)
	}
	if err := e.store.SetPlayerScore(ctx, id, score); err != nil {
		return playerError(id, "edit player", err)
	}
	return nil
}

// DeletePlayer removes a roster entry. Its ledger rows are retained.
func (e *Engine) DeletePlayer(ctx context.Context, id string) error {
	if err := e.store.DeletePlayer(ctx, id); err != nil {
		return playerError(id, "delete player", err)
	}
	return nil
}

// RestorePlayer reinserts a previously removed player at the current
// round. A roster entry with the same name absorbs the restored score;
// otherwise the player returns verbatim, keeping its id.
func (e *Engine) RestorePlayer(ctx context.Context, player domain.Player) error {
	if strings.TrimSpace(player.Name) == "" {
		return apperrors.New(apperrors.CodePlayerNameEmpty, "player name is required")
	}

	session, err := e.Session(ctx)
	if err != nil {
		return err
	}

	players, err := e.store.ListPlayers(ctx, session.Round)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "list players", err)
	}
	for _, existing := range players {
		if existing.Name == player.Name {
			if err := e.store.SetPlayerScore(ctx, existing.ID, player.Score); err != nil {
				return playerError(existing.ID, "restore player", err)
			}
			return nil
		}
	}

	restored := domain.Player{
		ID:    player.ID,
		Name:  player.Name,
		Score: player.Score,
		Round: session.Round,
	}
	if restored.ID == "" {
		id, err := e.newID()
		if err != nil {
			return fmt.Errorf("new player id: %w", err)
		}
		restored.ID = id
	}
	if err := e.store.UpsertPlayer(ctx, restored); err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "restore player", err)
	}
	return nil
}

// ChangeGameType switches the session to a new variant, clearing the
// roster and returning to round 1. Ledger rows are kept.
func (e *Engine) ChangeGameType(ctx context.Context, gameType domain.GameType) error {
	if !gameType.IsValid() {
		return apperrors.WithMetadata(
			apperrors.CodeInvalidGameType,
			"unknown game type",
			map[string]string{"game_type": string(gameType)},
		)
	}

	if _, err := e.Session(ctx); err != nil {
		return err
	}

	next := domain.GameSession{
		Round:     1,
		GameType:  gameType,
		UpdatedAt: e.clock().UTC(),
	}
	if err := e.store.ChangeGameType(ctx, next); err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "change game type", err)
	}
	return nil
}

// NextRound closes the current round: every player with a positive score
// gets a ledger row for it, then the round increments and live scores
// return to zero.
func (e *Engine) NextRound(ctx context.Context) error {
	session, err := e.Session(ctx)
	if err != nil {
		return err
	}

	players, err := e.store.ListPlayers(ctx, session.Round)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "list players", err)
	}

	records := make([]domain.ScoreRecord, 0, len(players))
	for _, player := range players {
		if player.Score > 0 {
			records = append(records, domain.ScoreRecord{
				PlayerID: player.ID,
				Round:    session.Round,
				Score:    player.Score,
			})
		}
	}

	if err := e.store.AdvanceRound(ctx, session.Round, records); err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "advance round", err)
	}
	return nil
}

// ResetGame clears the roster and ledger and starts over at round 1,
// keeping the current variant.
func (e *Engine) ResetGame(ctx context.Context) error {
	session, err := e.Session(ctx)
	if err != nil {
		return err
	}

	next := domain.GameSession{
		Round:     1,
		GameType:  session.GameType,
		UpdatedAt: e.clock().UTC(),
	}
	if err := e.store.ResetGame(ctx, next); err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "reset game", err)
	}
	return nil
}

// ScoreHistory returns a player's archived round totals, newest first.
func (e *Engine) ScoreHistory(ctx context.Context, id string) ([]domain.ScoreRecord, error) {
	records, err := e.store.ListScoreHistory(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "list score history", err)
	}
	return records, nil
}

// RoundScores returns the ledger rows archived for a round.
func (e *Engine) RoundScores(ctx context.Context, round int) ([]domain.ScoreRecord, error) {
	records, err := e.store.ListRoundScores(ctx, round)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "list round scores", err)
	}
	return records, nil
}

// TotalScore sums a player's ledger rows across every archived round.
func (e *Engine) TotalScore(ctx context.Context, id string) (int, error) {
	total, err := e.store.TotalScore(ctx, id)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeStorage, "total score", err)
	}
	return total, nil
}

func playerError(id, op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.WithMetadata(
			apperrors.CodePlayerNotFound,
			"player not found",
			map[string]string{"player_id": id},
		)
	}
	return apperrors.Wrap(apperrors.CodeStorage, op, err)
}
