package domain

import (
	"fmt"

	apperrors "github.com/louisbranch/demono/internal/platform/errors"
)

// GameType identifies a game variant's ruleset.
type GameType string

const (
	// GameTypeFreeForm is free-form cumulative scoring.
	GameTypeFreeForm GameType = "FREE_FORM"
	// GameTypeIncremental is increment/decrement scoring.
	GameTypeIncremental GameType = "INCREMENTAL"
	// GameTypeTeam is team scoring: two teams, one roster entry each.
	GameTypeTeam GameType = "TEAM"
)

// DefaultGameType is the variant a fresh session starts with.
const DefaultGameType = GameTypeFreeForm

// maxTeams caps the roster of team variants at one entry per team.
const maxTeams = 2

// IsValid reports whether the game type is a supported variant.
func (t GameType) IsValid() bool {
	switch t {
	case GameTypeFreeForm, GameTypeIncremental, GameTypeTeam:
		return true
	default:
		return false
	}
}

// MaxPlayers returns the nominal player cap for the variant.
func (t GameType) MaxPlayers() int {
	return 4
}

// IsTeamVariant reports whether roster entries represent teams.
func (t GameType) IsTeamVariant() bool {
	return t == GameTypeTeam
}

// EffectiveLimit returns the roster-size bound enforced by CanAddPlayer.
// Team variants are capped at one roster entry per team.
func (t GameType) EffectiveLimit() int {
	if t.IsTeamVariant() {
		return maxTeams
	}
	return t.MaxPlayers()
}

// CanAddPlayer reports whether another roster entry fits under the variant's
// limit.
func (t GameType) CanAddPlayer(currentCount int) bool {
	return currentCount < t.EffectiveLimit()
}

// LimitMessage returns the human-readable roster-limit description for the
// variant.
func (t GameType) LimitMessage() string {
	if t.IsTeamVariant() {
		return fmt.Sprintf("maximum %d teams (%d players total)", maxTeams, t.MaxPlayers())
	}
	return fmt.Sprintf("maximum %d players", t.MaxPlayers())
}

// ParseGameType validates a raw game type value.
func ParseGameType(raw string) (GameType, error) {
	t := GameType(raw)
	if !t.IsValid() {
		return "", apperrors.WithMetadata(
			apperrors.CodeInvalidGameType,
			fmt.Sprintf("unknown game type %q", raw),
			map[string]string{"game_type": raw},
		)
	}
	return t, nil
}
