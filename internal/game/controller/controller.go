// Package controller serializes game intents and publishes state
// snapshots to observers.
package controller

import (
	"context"
	"sync"

	"github.com/louisbranch/demono/internal/game/domain"
	"github.com/louisbranch/demono/internal/game/engine"
	apperrors "github.com/louisbranch/demono/internal/platform/errors"
)

// PromptKind tags the pending confirmation carried by a snapshot.
type PromptKind string

const (
	PromptNone           PromptKind = ""
	PromptRosterLimit    PromptKind = "ROSTER_LIMIT"
	PromptGameTypeChange PromptKind = "GAME_TYPE_CHANGE"
	PromptNextRound      PromptKind = "NEXT_ROUND"
)

// Prompt is a pending confirmation or notice awaiting an explicit intent.
// GameType is set for game-type changes, Message for roster-limit notices.
type Prompt struct {
	Kind     PromptKind      `json:"kind"`
	GameType domain.GameType `json:"game_type,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// Snapshot is one published view of the session state. ErrCode carries
// the machine-readable code for Err when a failed intent produced it.
type Snapshot struct {
	Players []domain.Player    `json:"players"`
	Session domain.GameSession `json:"session"`
	Loading bool               `json:"loading"`
	Err     string             `json:"error,omitempty"`
	ErrCode apperrors.Code     `json:"error_code,omitempty"`
	Prompt  Prompt             `json:"prompt"`
}

const subscriberBuffer = 8

// Controller wraps the engine behind a single logical writer. Every
// intent publishes a loading snapshot followed by a completion snapshot;
// failed intents set Err and leave the previously published state
// untouched.
//
// intentMu is held for the full duration of an intent, gating read
// included, so the engine's validate-then-apply sequences never
// interleave. mu guards only the snapshot and subscriber set, keeping
// Snapshot and Watch delivery off the intent path.
type Controller struct {
	engine *engine.Engine

	intentMu sync.Mutex

	mu            sync.Mutex
	snapshot      Snapshot
	lastPresented Prompt
	subscribers   map[chan Snapshot]struct{}
}

// New creates a Controller over the engine.
func New(gameEngine *engine.Engine) *Controller {
	return &Controller{
		engine:      gameEngine,
		subscribers: map[chan Snapshot]struct{}{},
	}
}

// Snapshot returns a copy of the last published state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyLocked()
}

// PromptToPresent returns the pending prompt at most once per distinct
// pending value. Re-published snapshots carrying the same prompt do not
// present it again.
func (c *Controller) PromptToPresent() (Prompt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := c.snapshot.Prompt
	if pending.Kind == PromptNone || pending == c.lastPresented {
		return Prompt{}, false
	}
	c.lastPresented = pending
	return pending, true
}

// Watch delivers every published snapshot to the returned channel until
// ctx is canceled. Slow subscribers drop snapshots rather than block
// intents.
func (c *Controller) Watch(ctx context.Context) <-chan Snapshot {
	ch := make(chan Snapshot, subscriberBuffer)

	c.mu.Lock()
	c.subscribers[ch] = struct{}{}
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		delete(c.subscribers, ch)
		c.mu.Unlock()
		close(ch)
	}()
	return ch
}

// Load publishes the initial state, creating the default session on an
// empty store.
func (c *Controller) Load(ctx context.Context) Snapshot {
	return c.run(ctx, func(ctx context.Context) error {
		_, err := c.engine.Session(ctx)
		return err
	})
}

// AddPlayer adds a named player. A roster-limit rejection becomes a
// notice prompt rather than an error.
func (c *Controller) AddPlayer(ctx context.Context, name string) Snapshot {
	return c.run(ctx, func(ctx context.Context) error {
		_, err := c.engine.AddPlayer(ctx, name)
		return err
	})
}

// AdjustScore adds delta to a player's live score.
func (c *Controller) AdjustScore(ctx context.Context, id string, delta int) Snapshot {
	return c.run(ctx, func(ctx context.Context) error {
		_, err := c.engine.AdjustScore(ctx, id, delta)
		return err
	})
}

// SetScore overwrites a player's live score.
func (c *Controller) SetScore(ctx context.Context, id string, value int) Snapshot {
	return c.run(ctx, func(ctx context.Context) error {
		return c.engine.SetScore(ctx, id, value)
	})
}

// RenamePlayer overwrites a player's name.
func (c *Controller) RenamePlayer(ctx context.Context, id, name string) Snapshot {
	return c.run(ctx, func(ctx context.Context) error {
		return c.engine.RenamePlayer(ctx, id, name)
	})
}

// EditPlayer overwrites a player's name and score together.
func (c *Controller) EditPlayer(ctx context.Context, id, name string, score int) Snapshot {
	return c.run(ctx, func(ctx context.Context) error {
		return c.engine.EditPlayer(ctx, id, name, score)
	})
}

// DeletePlayer removes a roster entry.
func (c *Controller) DeletePlayer(ctx context.Context, id string) Snapshot {
	return c.run(ctx, func(ctx context.Context) error {
		return c.engine.DeletePlayer(ctx, id)
	})
}

// RestorePlayer reinserts a previously removed player.
func (c *Controller) RestorePlayer(ctx context.Context, player domain.Player) Snapshot {
	return c.run(ctx, func(ctx context.Context) error {
		return c.engine.RestorePlayer(ctx, player)
	})
}

// SetGameType requests a variant switch. With a game in progress the
// switch becomes a confirmation prompt; otherwise it applies directly.
// Selecting the current variant is a no-op.
func (c *Controller) SetGameType(ctx context.Context, gameType domain.GameType) Snapshot {
	c.intentMu.Lock()
	defer c.intentMu.Unlock()

	if !gameType.IsValid() {
		return c.applyIntent(ctx, func(ctx context.Context) error {
			return c.engine.ChangeGameType(ctx, gameType)
		}, false)
	}

	c.mu.Lock()
	current := c.snapshot.Session.GameType
	inProgress := gameInProgress(c.snapshot.Players)
	c.mu.Unlock()

	if gameType == current {
		return c.Snapshot()
	}
	if inProgress {
		return c.applyPrompt(Prompt{Kind: PromptGameTypeChange, GameType: gameType})
	}
	return c.applyIntent(ctx, func(ctx context.Context) error {
		return c.engine.ChangeGameType(ctx, gameType)
	}, false)
}

// ConfirmGameTypeChange applies the pending variant switch.
func (c *Controller) ConfirmGameTypeChange(ctx context.Context) Snapshot {
	c.intentMu.Lock()
	defer c.intentMu.Unlock()

	c.mu.Lock()
	pending := c.snapshot.Prompt
	c.mu.Unlock()

	if pending.Kind != PromptGameTypeChange {
		return c.Snapshot()
	}
	return c.applyIntent(ctx, func(ctx context.Context) error {
		return c.engine.ChangeGameType(ctx, pending.GameType)
	}, true)
}

// CancelGameTypeChange dismisses the pending variant switch.
func (c *Controller) CancelGameTypeChange() Snapshot {
	return c.clearPrompt(PromptGameTypeChange)
}

// NextRound requests a round close. With live scores on the board the
// close becomes a confirmation prompt; an unscored round advances
// directly.
func (c *Controller) NextRound(ctx context.Context) Snapshot {
	c.intentMu.Lock()
	defer c.intentMu.Unlock()

	c.mu.Lock()
	hasScores := anyScored(c.snapshot.Players)
	c.mu.Unlock()

	if hasScores {
		return c.applyPrompt(Prompt{Kind: PromptNextRound})
	}
	return c.applyIntent(ctx, func(ctx context.Context) error {
		return c.engine.NextRound(ctx)
	}, false)
}

// ConfirmNextRound applies the pending round close.
func (c *Controller) ConfirmNextRound(ctx context.Context) Snapshot {
	return c.runConfirmed(ctx, func(ctx context.Context) error {
		return c.engine.NextRound(ctx)
	})
}

// CancelNextRound dismisses the pending round close.
func (c *Controller) CancelNextRound() Snapshot {
	return c.clearPrompt(PromptNextRound)
}

// ResetGame wipes the session, keeping the current variant.
func (c *Controller) ResetGame(ctx context.Context) Snapshot {
	return c.run(ctx, func(ctx context.Context) error {
		return c.engine.ResetGame(ctx)
	})
}

// ClearLimitMessage dismisses the roster-limit notice.
func (c *Controller) ClearLimitMessage() Snapshot {
	return c.clearPrompt(PromptRosterLimit)
}

// ScoreHistory returns a player's archived round totals, newest first.
func (c *Controller) ScoreHistory(ctx context.Context, id string) ([]domain.ScoreRecord, error) {
	return c.engine.ScoreHistory(ctx, id)
}

// RoundScores returns the ledger rows archived for a round.
func (c *Controller) RoundScores(ctx context.Context, round int) ([]domain.ScoreRecord, error) {
	return c.engine.RoundScores(ctx, round)
}

// TotalScore sums a player's ledger rows across every archived round.
func (c *Controller) TotalScore(ctx context.Context, id string) (int, error) {
	return c.engine.TotalScore(ctx, id)
}

// run executes one intent: a loading snapshot, the engine call, a state
// refresh, then the completion snapshot. Pending prompts survive
// unrelated intents; confirmed actions clear them via runConfirmed.
func (c *Controller) run(ctx context.Context, apply func(context.Context) error) Snapshot {
	c.intentMu.Lock()
	defer c.intentMu.Unlock()
	return c.applyIntent(ctx, apply, false)
}

func (c *Controller) runConfirmed(ctx context.Context, apply func(context.Context) error) Snapshot {
	c.intentMu.Lock()
	defer c.intentMu.Unlock()
	return c.applyIntent(ctx, apply, true)
}

// applyIntent requires intentMu to be held.
func (c *Controller) applyIntent(ctx context.Context, apply func(context.Context) error, clearPrompt bool) Snapshot {
	c.mu.Lock()
	c.snapshot.Loading = true
	c.snapshot.Err = ""
	c.snapshot.ErrCode = ""
	c.publishLocked()
	c.mu.Unlock()

	applyErr := apply(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.snapshot.Loading = false
	if applyErr != nil {
		if apperrors.CodeOf(applyErr) == apperrors.CodeRosterLimitExceeded {
			c.snapshot.Prompt = Prompt{Kind: PromptRosterLimit, Message: applyErr.Error()}
		} else {
			c.snapshot.Err = applyErr.Error()
			c.snapshot.ErrCode = apperrors.CodeOf(applyErr)
		}
		c.publishLocked()
		return c.copyLocked()
	}

	if clearPrompt {
		c.snapshot.Prompt = Prompt{}
		c.lastPresented = Prompt{}
	}
	c.refreshLocked(ctx)
	c.publishLocked()
	return c.copyLocked()
}

// applyPrompt requires intentMu to be held.
func (c *Controller) applyPrompt(prompt Prompt) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snapshot.Prompt = prompt
	c.snapshot.Err = ""
	c.snapshot.ErrCode = ""
	c.publishLocked()
	return c.copyLocked()
}

func (c *Controller) clearPrompt(kind PromptKind) Snapshot {
	c.intentMu.Lock()
	defer c.intentMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot.Prompt.Kind == kind {
		c.snapshot.Prompt = Prompt{}
		c.lastPresented = Prompt{}
		c.publishLocked()
	}
	return c.copyLocked()
}

// refreshLocked reloads players and session after a successful intent.
func (c *Controller) refreshLocked(ctx context.Context) {
	session, err := c.engine.Session(ctx)
	if err != nil {
		c.snapshot.Err = err.Error()
		c.snapshot.ErrCode = apperrors.CodeOf(err)
		return
	}
	players, err := c.engine.Players(ctx)
	if err != nil {
		c.snapshot.Err = err.Error()
		c.snapshot.ErrCode = apperrors.CodeOf(err)
		return
	}

	c.snapshot.Session = session
	c.snapshot.Players = players
}

func (c *Controller) copyLocked() Snapshot {
	snapshot := c.snapshot
	snapshot.Players = append([]domain.Player(nil), c.snapshot.Players...)
	return snapshot
}

func (c *Controller) publishLocked() {
	if len(c.subscribers) == 0 {
		return
	}
	snapshot := c.copyLocked()
	for ch := range c.subscribers {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

func gameInProgress(players []domain.Player) bool {
	return len(players) > 0 || anyScored(players)
}

func anyScored(players []domain.Player) bool {
	for _, player := range players {
		if player.Score > 0 {
			return true
		}
	}
	return false
}
