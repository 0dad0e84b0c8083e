package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/louisbranch/demono/internal/game/controller"
	"github.com/louisbranch/demono/internal/game/domain"
	"github.com/louisbranch/demono/internal/game/engine"
	"github.com/louisbranch/demono/internal/game/storage/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	ctrl := controller.New(engine.New(memory.New()))
	ctrl.Load(context.Background())

	ts := httptest.NewServer(New(ctrl).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, controller.Snapshot) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var snapshot controller.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil && err != io.EOF {
		t.Fatalf("decode response: %v", err)
	}
	return resp, snapshot
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestStateReturnsSnapshot(t *testing.T) {
	ts := newTestServer(t)

	resp, snapshot := doJSON(t, http.MethodGet, ts.URL+"/v1/state", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if snapshot.Session.Round != 1 || snapshot.Session.GameType != domain.GameTypeFreeForm {
		t.Fatalf("snapshot.Session = %+v", snapshot.Session)
	}
}

func TestAddPlayerFlow(t *testing.T) {
	ts := newTestServer(t)

	resp, snapshot := doJSON(t, http.MethodPost, ts.URL+"/v1/players", map[string]string{"name": "alice"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(snapshot.Players) != 1 || snapshot.Players[0].Name != "alice" {
		t.Fatalf("snapshot.Players = %+v", snapshot.Players)
	}

	// Empty name is a validation failure.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/players", map[string]string{"name": ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty name status = %d, want 400", resp.StatusCode)
	}
}

func TestAddPlayerRosterLimitConflict(t *testing.T) {
	ts := newTestServer(t)

	for _, name := range []string{"a", "b", "c", "d"} {
		resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/players", map[string]string{"name": name})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("AddPlayer(%s) status = %d", name, resp.StatusCode)
		}
	}

	resp, snapshot := doJSON(t, http.MethodPost, ts.URL+"/v1/players", map[string]string{"name": "e"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("limit status = %d, want 409", resp.StatusCode)
	}
	if snapshot.Prompt.Kind != controller.PromptRosterLimit {
		t.Fatalf("Prompt.Kind = %q, want roster limit", snapshot.Prompt.Kind)
	}

	resp, snapshot = doJSON(t, http.MethodPost, ts.URL+"/v1/prompts/clear", nil)
	if resp.StatusCode != http.StatusOK || snapshot.Prompt.Kind != controller.PromptNone {
		t.Fatalf("clear prompt = %d %+v", resp.StatusCode, snapshot.Prompt)
	}
}

func TestUnknownPlayerIsNotFound(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/players/missing/adjust", map[string]int{"delta": 5})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("adjust missing status = %d, want 404", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/v1/players/missing", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("delete missing status = %d, want 404", resp.StatusCode)
	}
}

func TestInvalidBody(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/players", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatalf("POST /v1/players: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestScoreAndRoundFlow(t *testing.T) {
	ts := newTestServer(t)

	_, snapshot := doJSON(t, http.MethodPost, ts.URL+"/v1/players", map[string]string{"name": "alice"})
	id := snapshot.Players[0].ID

	_, snapshot = doJSON(t, http.MethodPost, ts.URL+"/v1/players/"+id+"/adjust", map[string]int{"delta": 10})
	if snapshot.Players[0].Score != 10 {
		t.Fatalf("score after adjust = %d, want 10", snapshot.Players[0].Score)
	}
	_, snapshot = doJSON(t, http.MethodPost, ts.URL+"/v1/players/"+id+"/adjust", map[string]int{"delta": 5})
	if snapshot.Players[0].Score != 15 {
		t.Fatalf("score after adjust = %d, want 15", snapshot.Players[0].Score)
	}

	// With scores on the board the round close asks for confirmation.
	_, snapshot = doJSON(t, http.MethodPost, ts.URL+"/v1/rounds/next", nil)
	if snapshot.Prompt.Kind != controller.PromptNextRound {
		t.Fatalf("Prompt.Kind = %q, want next round", snapshot.Prompt.Kind)
	}
	_, snapshot = doJSON(t, http.MethodPost, ts.URL+"/v1/rounds/next/confirm", nil)
	if snapshot.Session.Round != 2 {
		t.Fatalf("round after confirm = %d, want 2", snapshot.Session.Round)
	}
	if snapshot.Players[0].Score != 0 {
		t.Fatalf("score after confirm = %d, want 0", snapshot.Players[0].Score)
	}

	resp, err := http.Get(ts.URL + "/v1/players/" + id + "/history")
	if err != nil {
		t.Fatalf("GET history: %v", err)
	}
	defer resp.Body.Close()
	var records []domain.ScoreRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(records) != 1 || records[0].Round != 1 || records[0].Score != 15 {
		t.Fatalf("history = %+v, want one round-1 row of 15", records)
	}

	resp, err = http.Get(ts.URL + "/v1/players/" + id + "/total")
	if err != nil {
		t.Fatalf("GET total: %v", err)
	}
	defer resp.Body.Close()
	var total map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&total); err != nil {
		t.Fatalf("decode total: %v", err)
	}
	if total["total"] != 15 {
		t.Fatalf("total = %d, want 15", total["total"])
	}
}

func TestHistoryRoundFilter(t *testing.T) {
	ts := newTestServer(t)

	_, snapshot := doJSON(t, http.MethodPost, ts.URL+"/v1/players", map[string]string{"name": "alice"})
	id := snapshot.Players[0].ID
	doJSON(t, http.MethodPost, ts.URL+"/v1/players/"+id+"/adjust", map[string]int{"delta": 10})
	doJSON(t, http.MethodPost, ts.URL+"/v1/rounds/next/confirm", nil)
	doJSON(t, http.MethodPost, ts.URL+"/v1/players/"+id+"/adjust", map[string]int{"delta": 7})
	doJSON(t, http.MethodPost, ts.URL+"/v1/rounds/next/confirm", nil)

	resp, err := http.Get(fmt.Sprintf("%s/v1/players/%s/history?round=2", ts.URL, id))
	if err != nil {
		t.Fatalf("GET history?round=2: %v", err)
	}
	defer resp.Body.Close()
	var records []domain.ScoreRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(records) != 1 || records[0].Round != 2 || records[0].Score != 7 {
		t.Fatalf("filtered history = %+v, want one round-2 row of 7", records)
	}

	resp, err = http.Get(ts.URL + "/v1/players/" + id + "/history?round=nope")
	if err != nil {
		t.Fatalf("GET bad round: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad round status = %d, want 400", resp.StatusCode)
	}
}

func TestGameTypeFlow(t *testing.T) {
	ts := newTestServer(t)

	resp, snapshot := doJSON(t, http.MethodPost, ts.URL+"/v1/game-type", map[string]string{"game_type": "TEAM"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set type status = %d", resp.StatusCode)
	}
	if snapshot.Session.GameType != domain.GameTypeTeam {
		t.Fatalf("GameType = %q, want TEAM with idle session", snapshot.Session.GameType)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/game-type", map[string]string{"game_type": "BOGUS"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid type status = %d, want 400", resp.StatusCode)
	}

	doJSON(t, http.MethodPost, ts.URL+"/v1/players", map[string]string{"name": "reds"})
	_, snapshot = doJSON(t, http.MethodPost, ts.URL+"/v1/game-type", map[string]string{"game_type": "INCREMENTAL"})
	if snapshot.Prompt.Kind != controller.PromptGameTypeChange {
		t.Fatalf("Prompt.Kind = %q, want game type change", snapshot.Prompt.Kind)
	}

	_, snapshot = doJSON(t, http.MethodPost, ts.URL+"/v1/game-type/cancel", nil)
	if snapshot.Session.GameType != domain.GameTypeTeam {
		t.Fatalf("GameType after cancel = %q, want TEAM", snapshot.Session.GameType)
	}

	doJSON(t, http.MethodPost, ts.URL+"/v1/game-type", map[string]string{"game_type": "INCREMENTAL"})
	_, snapshot = doJSON(t, http.MethodPost, ts.URL+"/v1/game-type/confirm", nil)
	if snapshot.Session.GameType != domain.GameTypeIncremental {
		t.Fatalf("GameType after confirm = %q, want INCREMENTAL", snapshot.Session.GameType)
	}
	if len(snapshot.Players) != 0 {
		t.Fatalf("Players after confirm = %+v, want empty", snapshot.Players)
	}
}

func TestEditAndRestore(t *testing.T) {
	ts := newTestServer(t)

	_, snapshot := doJSON(t, http.MethodPost, ts.URL+"/v1/players", map[string]string{"name": "bob"})
	id := snapshot.Players[0].ID

	_, snapshot = doJSON(t, http.MethodPut, ts.URL+"/v1/players/"+id, map[string]any{"name": "bobby", "score": 9})
	if snapshot.Players[0].Name != "bobby" || snapshot.Players[0].Score != 9 {
		t.Fatalf("player after edit = %+v", snapshot.Players[0])
	}

	doJSON(t, http.MethodDelete, ts.URL+"/v1/players/"+id, nil)
	_, snapshot = doJSON(t, http.MethodPost, ts.URL+"/v1/players/"+id+"/restore", map[string]any{"name": "bobby", "score": 7})
	if len(snapshot.Players) != 1 {
		t.Fatalf("Players after restore = %+v, want 1", snapshot.Players)
	}
	if snapshot.Players[0].ID != id || snapshot.Players[0].Score != 7 {
		t.Fatalf("restored player = %+v, want original id with 7", snapshot.Players[0])
	}
}

func TestResetEndpoint(t *testing.T) {
	ts := newTestServer(t)

	doJSON(t, http.MethodPost, ts.URL+"/v1/players", map[string]string{"name": "alice"})
	_, snapshot := doJSON(t, http.MethodPost, ts.URL+"/v1/reset", nil)
	if snapshot.Session.Round != 1 || len(snapshot.Players) != 0 {
		t.Fatalf("snapshot after reset = %+v", snapshot)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	doJSON(t, http.MethodGet, ts.URL+"/v1/state", nil)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(body), "game_intents_total") {
		t.Fatalf("metrics body missing intents counter")
	}
}
