package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorMatchesByCode(t *testing.T) {
	err := New(CodePlayerNotFound, "player missing")
	if !stderrors.Is(err, New(CodePlayerNotFound, "different message")) {
		t.Fatal("expected errors with the same code to match")
	}
	if stderrors.Is(err, New(CodeRosterLimitExceeded, "player missing")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(CodeStorage, "persist player", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable via errors.Is")
	}
	if err.Error() != "persist player" {
		t.Fatalf("message = %q, want %q", err.Error(), "persist player")
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(New(CodeRosterLimitExceeded, "full")); got != CodeRosterLimitExceeded {
		t.Fatalf("code = %q, want %q", got, CodeRosterLimitExceeded)
	}
	wrapped := fmt.Errorf("outer: %w", New(CodePlayerNotFound, "missing"))
	if got := CodeOf(wrapped); got != CodePlayerNotFound {
		t.Fatalf("wrapped code = %q, want %q", got, CodePlayerNotFound)
	}
	if got := CodeOf(fmt.Errorf("plain")); got != CodeUnknown {
		t.Fatalf("plain code = %q, want %q", got, CodeUnknown)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		code Code
		want int
	}{
		{CodePlayerNameEmpty, http.StatusBadRequest},
		{CodeInvalidGameType, http.StatusBadRequest},
		{CodePlayerNotFound, http.StatusNotFound},
		{CodeNotFound, http.StatusNotFound},
		{CodeRosterLimitExceeded, http.StatusConflict},
		{CodeStorage, http.StatusInternalServerError},
		{CodeUnknown, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(New(tc.code, "x"), http.StatusInternalServerError); got != tc.want {
			t.Fatalf("status for %s = %d, want %d", tc.code, got, tc.want)
		}
	}
	if got := HTTPStatus(nil, http.StatusInternalServerError); got != http.StatusOK {
		t.Fatalf("status for nil = %d, want %d", got, http.StatusOK)
	}
	if got := HTTPStatus(fmt.Errorf("plain"), http.StatusBadGateway); got != http.StatusBadGateway {
		t.Fatalf("status for plain error = %d, want fallback %d", got, http.StatusBadGateway)
	}
}
