// Package memory provides a volatile, in-process implementation of the game
// storage contract. It exists for tests and for running without a database;
// it must be observably identical to the durable backend.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/louisbranch/demono/internal/game/domain"
	"github.com/louisbranch/demono/internal/game/storage"
)

// recordKey identifies one ledger row.
type recordKey struct {
	playerID string
	round    int
}

// Store keeps the session aggregate in memory behind a single mutex, which
// is what makes every transition atomic with respect to readers.
type Store struct {
	mu         sync.Mutex
	hasSession bool
	session    domain.GameSession
	players    map[string]domain.Player
	records    map[recordKey]domain.ScoreRecord
	now        func() time.Time
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		players: make(map[string]domain.Player),
		records: make(map[recordKey]domain.ScoreRecord),
		now:     time.Now,
	}
}

var _ storage.Store = (*Store)(nil)

// LoadSession retrieves the session row, if one was saved.
func (s *Store) LoadSession(ctx context.Context) (domain.GameSession, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.GameSession{}, false, err
	}
	if s == nil {
		return domain.GameSession{}, false, errors.New("store is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasSession {
		return domain.GameSession{}, false, nil
	}
	return s.session, true, nil
}

// SaveSession persists the session row.
func (s *Store) SaveSession(ctx context.Context, session domain.GameSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil {
		return errors.New("store is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = session
	s.hasSession = true
	return nil
}

// ListPlayers returns the roster entries for a round, ordered by name.
func (s *Store) ListPlayers(ctx context.Context, round int) ([]domain.Player, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errors.New("store is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	players := make([]domain.Player, 0, len(s.players))
	for _, player := range s.players {
		if player.Round == round {
			players = append(players, player)
		}
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].Name != players[j].Name {
			return players[i].Name < players[j].Name
		}
		return players[i].ID < players[j].ID
	})
	return players, nil
}

// GetPlayer retrieves a roster entry by id.
func (s *Store) GetPlayer(ctx context.Context, id string) (domain.Player, error) {
	if err := ctx.Err(); err != nil {
		return domain.Player{}, err
	}
	if s == nil {
		return domain.Player{}, errors.New("store is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[id]
	if !ok {
		return domain.Player{}, storage.ErrNotFound
	}
	return player, nil
}

// UpsertPlayer stores a roster entry.
func (s *Store) UpsertPlayer(ctx context.Context, player domain.Player) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil {
		return errors.New("store is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.players[player.ID] = player
	return nil
}

// DeletePlayer removes a roster entry, keeping its ledger rows.
func (s *Store) DeletePlayer(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil {
		return errors.New("store is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.players, id)
	return nil
}

// AddToPlayerScore adds delta to a player's live score.
func (s *Store) AddToPlayerScore(ctx context.Context, id string, delta int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil {
		return 0, errors.New("store is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[id]
	if !ok {
		return 0, storage.ErrNotFound
	}
	player.Score += delta
	s.players[id] = player
	return player.Score, nil
}

// SetPlayerScore overwrites a player's live score.
func (s *Store) SetPlayerScore(ctx context.Context, id string, value int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil {
		return errors.New("store is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[id]
	if !ok {
		return storage.ErrNotFound
	}
	player.Score = value
	s.players[id] = player
	return nil
}

// RenamePlayer overwrites a player's name.
func (s *Store) RenamePlayer(ctx context.Context, id, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil {
		return errors.New("store is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[id]
	if !ok {
		return storage.ErrNotFound
	}
	player.Name = name
	s.players[id] = player
	return nil
}

// UpsertScoreRecord writes a player's running total for a round.
func (s *Store) UpsertScoreRecord(ctx context.Context, playerID string, round, score int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil {
		return errors.New("store is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsertRecordLocked(playerID, round, score)
	return nil
}

// ListScoreHistory returns a player's ledger rows, newest round first.
func (s *Store) ListScoreHistory(ctx context.Context, playerID string) ([]domain.ScoreRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errors.New("store is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var records []domain.ScoreRecord
	for key, record := range s.records {
		if key.playerID == playerID {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Round > records[j].Round
	})
	return records, nil
}

// ListRoundScores returns the ledger rows archived for a round.
func (s *Store) ListRoundScores(ctx context.Context, round int) ([]domain.ScoreRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errors.New("store is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var records []domain.ScoreRecord
	for key, record := range s.records {
		if key.round == round {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].PlayerID < records[j].PlayerID
	})
	return records, nil
}

// TotalScore sums a player's ledger rows across all rounds.
func (s *Store) TotalScore(ctx context.Context, playerID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil {
		return 0, errors.New("store is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for key, record := range s.records {
		if key.playerID == playerID {
			total += record.Score
		}
	}
	return total, nil
}

// AdvanceRound closes fromRound as one atomic unit.
func (s *Store) AdvanceRound(ctx context.Context, fromRound int, records []domain.ScoreRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil {
		return errors.New("store is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasSession {
		return storage.ErrNotFound
	}

	for _, record := range records {
		s.upsertRecordLocked(record.PlayerID, record.Round, record.Score)
	}

	newRound := fromRound + 1
	s.session.Round = newRound
	s.session.UpdatedAt = s.now().UTC()

	for id, player := range s.players {
		player.Score = 0
		player.Round = newRound
		s.players[id] = player
	}
	return nil
}

// ResetGame wipes the aggregate as one atomic unit.
func (s *Store) ResetGame(ctx context.Context, next domain.GameSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil {
		return errors.New("store is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.players = make(map[string]domain.Player)
	s.records = make(map[recordKey]domain.ScoreRecord)
	s.session = next
	s.hasSession = true
	return nil
}

// ChangeGameType switches variants as one atomic unit, keeping the ledger.
func (s *Store) ChangeGameType(ctx context.Context, next domain.GameSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil {
		return errors.New("store is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.players = make(map[string]domain.Player)
	s.session = next
	s.hasSession = true
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

func (s *Store) upsertRecordLocked(playerID string, round, score int) {
	s.records[recordKey{playerID: playerID, round: round}] = domain.ScoreRecord{
		PlayerID:   playerID,
		Round:      round,
		Score:      score,
		RecordedAt: s.now().UTC(),
	}
}
