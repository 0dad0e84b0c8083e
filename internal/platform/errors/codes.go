// Package errors provides structured error handling for the score tracker.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Player errors
	CodePlayerNameEmpty Code = "PLAYER_NAME_EMPTY"
	CodePlayerNotFound  Code = "PLAYER_NOT_FOUND"

	// Roster errors
	CodeRosterLimitExceeded Code = "ROSTER_LIMIT_EXCEEDED"

	// Game type errors
	CodeInvalidGameType Code = "INVALID_GAME_TYPE"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
	CodeStorage  Code = "STORAGE_FAILURE"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, bad input
	case CodePlayerNameEmpty,
		CodeInvalidGameType:
		return http.StatusBadRequest

	// Not found - operation referenced a missing entity
	case CodePlayerNotFound,
		CodeNotFound:
		return http.StatusNotFound

	// Conflict - current state doesn't allow the operation
	case CodeRosterLimitExceeded:
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}
