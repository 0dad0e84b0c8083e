// Package domain defines the entities and rules for a score-tracking game
// session.
//
// A GameSession is the singleton aggregate: one session exists at a time,
// holding the current round number and the active game variant. Players are
// roster entries scoped to the session's current round; their live scores
// reset at every round boundary while per-round totals are archived in an
// upsert-only score history ledger.
//
// # Game variants
//
// Three variants constrain roster size and scoring affordance:
//   - FREE_FORM: free-form cumulative scoring, up to 4 players.
//   - INCREMENTAL: increment/decrement scoring, up to 4 players.
//   - TEAM: team scoring; the roster holds at most 2 entries, one per team.
package domain
