package domain

import "time"

// Player is one roster entry in the active session.
// The ID is opaque and immutable; it identifies the player across name and
// score edits for the lifetime of the session.
type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
	Round int    `json:"round"`
}

// GameSession is the singleton aggregate's session row: the current round
// counter and active variant. The roster is read through the current round.
type GameSession struct {
	Round     int       `json:"round"`
	GameType  GameType  `json:"game_type"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScoreRecord is one row of the upsert-only score history ledger: a player's
// running total for a round. A later write for the same (player, round) wins.
type ScoreRecord struct {
	PlayerID   string    `json:"player_id"`
	Round      int       `json:"round"`
	Score      int       `json:"score"`
	RecordedAt time.Time `json:"recorded_at"`
}

// NewGameSession returns the default session a fresh install starts with.
func NewGameSession(now func() time.Time) GameSession {
	if now == nil {
		now = time.Now
	}
	return GameSession{
		Round:     1,
		GameType:  DefaultGameType,
		UpdatedAt: now().UTC(),
	}
}

// NewPlayer creates a roster entry for the session's current round with a
// zero score.
func NewPlayer(name string, round int, idGenerator func() (string, error)) (Player, error) {
	if idGenerator == nil {
		idGenerator = NewID
	}
	id, err := idGenerator()
	if err != nil {
		return Player{}, err
	}
	return Player{
		ID:    id,
		Name:  name,
		Score: 0,
		Round: round,
	}, nil
}
