// Package sqlite provides the durable implementation of the game storage
// contract.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/demono/internal/game/domain"
	"github.com/louisbranch/demono/internal/game/storage"
	"github.com/louisbranch/demono/internal/game/storage/sqlite/migrations"
	"github.com/louisbranch/demono/internal/platform/storage/sqlitemigrate"
	_ "modernc.org/sqlite"
)

// sessionRowID pins the singleton session row.
const sessionRowID = 1

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store provides SQLite-backed persistence for the game session aggregate.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ storage.Store = (*Store)(nil)

// Open opens a game SQLite store at the provided path and applies embedded
// migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB, now: time.Now}
	if err := store.runMigrations(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) runMigrations() error {
	return sqlitemigrate.ApplyMigrations(s.sqlDB, migrations.FS)
}

// dbtx abstracts *sql.DB and *sql.Tx for statements shared across both.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// LoadSession retrieves the singleton session row, if one exists.
func (s *Store) LoadSession(ctx context.Context) (domain.GameSession, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.GameSession{}, false, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.GameSession{}, false, fmt.Errorf("storage is not configured")
	}

	var (
		round     int
		gameType  string
		updatedAt int64
	)
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT current_round, game_type, updated_at FROM game_sessions WHERE id = ?",
		sessionRowID,
	)
	if err := row.Scan(&round, &gameType, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.GameSession{}, false, nil
		}
		return domain.GameSession{}, false, fmt.Errorf("load session: %w", err)
	}

	return domain.GameSession{
		Round:     round,
		GameType:  domain.GameType(gameType),
		UpdatedAt: fromMillis(updatedAt),
	}, true, nil
}

// SaveSession persists the singleton session row.
func (s *Store) SaveSession(ctx context.Context, session domain.GameSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return saveSessionExec(ctx, s.sqlDB, session)
}

func saveSessionExec(ctx context.Context, tx dbtx, session domain.GameSession) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO game_sessions (id, current_round, game_type, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    current_round = excluded.current_round,
    game_type = excluded.game_type,
    updated_at = excluded.updated_at
`,
		sessionRowID,
		session.Round,
		string(session.GameType),
		toMillis(session.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// ListPlayers returns the roster entries for a round, ordered by name.
func (s *Store) ListPlayers(ctx context.Context, round int) ([]domain.Player, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT id, name, current_score, round_number FROM players WHERE round_number = ? ORDER BY name, id",
		round,
	)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	players := make([]domain.Player, 0)
	for rows.Next() {
		var player domain.Player
		if err := rows.Scan(&player.ID, &player.Name, &player.Score, &player.Round); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		players = append(players, player)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read players: %w", err)
	}
	return players, nil
}

// GetPlayer retrieves a roster entry by id.
func (s *Store) GetPlayer(ctx context.Context, id string) (domain.Player, error) {
	if err := ctx.Err(); err != nil {
		return domain.Player{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Player{}, fmt.Errorf("storage is not configured")
	}

	var player domain.Player
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT id, name, current_score, round_number FROM players WHERE id = ?",
		id,
	)
	if err := row.Scan(&player.ID, &player.Name, &player.Score, &player.Round); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Player{}, storage.ErrNotFound
		}
		return domain.Player{}, fmt.Errorf("get player: %w", err)
	}
	return player, nil
}

// UpsertPlayer stores a roster entry.
func (s *Store) UpsertPlayer(ctx context.Context, player domain.Player) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO players (id, name, current_score, round_number)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    current_score = excluded.current_score,
    round_number = excluded.round_number
`,
		player.ID,
		player.Name,
		player.Score,
		player.Round,
	)
	if err != nil {
		return fmt.Errorf("upsert player: %w", err)
	}
	return nil
}

// DeletePlayer removes a roster entry, keeping its ledger rows.
func (s *Store) DeletePlayer(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, "DELETE FROM players WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete player: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete player rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// AddToPlayerScore adds delta to a player's live score and returns the new
// total. The update and the read-back share one transaction.
func (s *Store) AddToPlayerScore(ctx context.Context, id string, delta int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin score update: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback score update: %v", cause, rollbackErr)
		}
		return cause
	}

	result, err := tx.ExecContext(ctx,
		"UPDATE players SET current_score = current_score + ? WHERE id = ?",
		delta, id,
	)
	if err != nil {
		return 0, rollbackWith(fmt.Errorf("add to player score: %w", err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, rollbackWith(fmt.Errorf("add to player score rows affected: %w", err))
	}
	if affected == 0 {
		return 0, rollbackWith(storage.ErrNotFound)
	}

	var total int
	row := tx.QueryRowContext(ctx, "SELECT current_score FROM players WHERE id = ?", id)
	if err := row.Scan(&total); err != nil {
		return 0, rollbackWith(fmt.Errorf("read updated score: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit score update: %w", err)
	}
	return total, nil
}

// SetPlayerScore overwrites a player's live score.
func (s *Store) SetPlayerScore(ctx context.Context, id string, value int) error {
	return s.updatePlayerColumn(ctx, "UPDATE players SET current_score = ? WHERE id = ?", value, id)
}

// RenamePlayer overwrites a player's name.
func (s *Store) RenamePlayer(ctx context.Context, id, name string) error {
	return s.updatePlayerColumn(ctx, "UPDATE players SET name = ? WHERE id = ?", name, id)
}

func (s *Store) updatePlayerColumn(ctx context.Context, query string, value any, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, query, value, id)
	if err != nil {
		return fmt.Errorf("update player: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update player rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpsertScoreRecord writes a player's running total for a round.
func (s *Store) UpsertScoreRecord(ctx context.Context, playerID string, round, score int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return upsertScoreRecordExec(ctx, s.sqlDB, playerID, round, score, toMillis(s.now()))
}

func upsertScoreRecordExec(ctx context.Context, tx dbtx, playerID string, round, score int, recordedAt int64) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO player_scores (player_id, round_number, score, recorded_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(player_id, round_number) DO UPDATE SET
    score = excluded.score,
    recorded_at = excluded.recorded_at
`,
		playerID,
		round,
		score,
		recordedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert score record: %w", err)
	}
	return nil
}

// ListScoreHistory returns a player's ledger rows, newest round first.
func (s *Store) ListScoreHistory(ctx context.Context, playerID string) ([]domain.ScoreRecord, error) {
	return s.listRecords(ctx,
		"SELECT player_id, round_number, score, recorded_at FROM player_scores WHERE player_id = ? ORDER BY round_number DESC",
		playerID,
	)
}

// ListRoundScores returns the ledger rows archived for a round.
func (s *Store) ListRoundScores(ctx context.Context, round int) ([]domain.ScoreRecord, error) {
	return s.listRecords(ctx,
		"SELECT player_id, round_number, score, recorded_at FROM player_scores WHERE round_number = ? ORDER BY player_id",
		round,
	)
}

func (s *Store) listRecords(ctx context.Context, query string, arg any) ([]domain.ScoreRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list score records: %w", err)
	}
	defer rows.Close()

	records := make([]domain.ScoreRecord, 0)
	for rows.Next() {
		var (
			record     domain.ScoreRecord
			recordedAt int64
		)
		if err := rows.Scan(&record.PlayerID, &record.Round, &record.Score, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan score record: %w", err)
		}
		record.RecordedAt = fromMillis(recordedAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read score records: %w", err)
	}
	return records, nil
}

// TotalScore sums a player's ledger rows across all rounds.
func (s *Store) TotalScore(ctx context.Context, playerID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	var total sql.NullInt64
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT SUM(score) FROM player_scores WHERE player_id = ?",
		playerID,
	)
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("total score: %w", err)
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}

// AdvanceRound closes fromRound in one transaction: ledger upserts, session
// round increment, live score zeroing, and roster round advance.
func (s *Store) AdvanceRound(ctx context.Context, fromRound int, records []domain.ScoreRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin round transition: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback round transition: %v", cause, rollbackErr)
		}
		return cause
	}

	recordedAt := toMillis(s.now())
	for _, record := range records {
		if err := upsertScoreRecordExec(ctx, tx, record.PlayerID, record.Round, record.Score, recordedAt); err != nil {
			return rollbackWith(err)
		}
	}

	newRound := fromRound + 1
	result, err := tx.ExecContext(ctx,
		"UPDATE game_sessions SET current_round = ?, updated_at = ? WHERE id = ?",
		newRound, recordedAt, sessionRowID,
	)
	if err != nil {
		return rollbackWith(fmt.Errorf("advance session round: %w", err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return rollbackWith(fmt.Errorf("advance session rows affected: %w", err))
	}
	if affected == 0 {
		return rollbackWith(storage.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, "UPDATE players SET current_score = 0"); err != nil {
		return rollbackWith(fmt.Errorf("zero live scores: %w", err))
	}
	if _, err := tx.ExecContext(ctx, "UPDATE players SET round_number = ?", newRound); err != nil {
		return rollbackWith(fmt.Errorf("advance player rounds: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit round transition: %w", err)
	}
	return nil
}

// ResetGame wipes the aggregate in one transaction: roster, ledger, and the
// session row, which becomes next.
func (s *Store) ResetGame(ctx context.Context, next domain.GameSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	return s.resetTx(ctx, next, true)
}

// ChangeGameType switches variants in one transaction: the roster is cleared
// and next becomes the session row. Ledger rows are retained.
func (s *Store) ChangeGameType(ctx context.Context, next domain.GameSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	return s.resetTx(ctx, next, false)
}

func (s *Store) resetTx(ctx context.Context, next domain.GameSession, clearLedger bool) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin session reset: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback session reset: %v", cause, rollbackErr)
		}
		return cause
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM players"); err != nil {
		return rollbackWith(fmt.Errorf("clear roster: %w", err))
	}
	if clearLedger {
		if _, err := tx.ExecContext(ctx, "DELETE FROM player_scores"); err != nil {
			return rollbackWith(fmt.Errorf("clear score ledger: %w", err))
		}
	}
	if err := saveSessionExec(ctx, tx, next); err != nil {
		return rollbackWith(err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session reset: %w", err)
	}
	return nil
}
