// Package server exposes the controller's intent surface over HTTP as a
// thin JSON adapter.
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/louisbranch/demono/internal/game/controller"
	"github.com/louisbranch/demono/internal/game/domain"
	apperrors "github.com/louisbranch/demono/internal/platform/errors"
)

// Server adapts HTTP requests into controller intents. Mutating endpoints
// respond with the post-intent snapshot.
type Server struct {
	controller *controller.Controller
	registry   *prometheus.Registry
	intents    *prometheus.CounterVec
}

// New creates a Server over the controller with its own metrics registry.
func New(ctrl *controller.Controller) *Server {
	registry := prometheus.NewRegistry()
	intents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "game_intents_total",
		Help: "Number of intents received, labelled by intent name.",
	}, []string{"intent"})
	registry.MustRegister(intents)

	return &Server{
		controller: ctrl,
		registry:   registry,
		intents:    intents,
	}
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLog)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/state", s.handleState)

		r.Route("/players", func(r chi.Router) {
			r.Post("/", s.handleAddPlayer)
			r.Route("/{id}", func(r chi.Router) {
				r.Put("/", s.handleEditPlayer)
				r.Delete("/", s.handleDeletePlayer)
				r.Post("/adjust", s.handleAdjustScore)
				r.Put("/score", s.handleSetScore)
				r.Put("/name", s.handleRenamePlayer)
				r.Post("/restore", s.handleRestorePlayer)
				r.Get("/history", s.handleScoreHistory)
				r.Get("/total", s.handleTotalScore)
			})
		})

		r.Route("/game-type", func(r chi.Router) {
			r.Post("/", s.handleSetGameType)
			r.Post("/confirm", s.handleConfirmGameType)
			r.Post("/cancel", s.handleCancelGameType)
		})

		r.Route("/rounds/next", func(r chi.Router) {
			r.Post("/", s.handleNextRound)
			r.Post("/confirm", s.handleConfirmNextRound)
			r.Post("/cancel", s.handleCancelNextRound)
		})

		r.Post("/reset", s.handleResetGame)
		r.Post("/prompts/clear", s.handleClearPrompt)
	})
	return r
}

func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("http method=%s path=%s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.intents.WithLabelValues("state").Inc()
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

func (s *Server) handleAddPlayer(w http.ResponseWriter, r *http.Request) {
	s.intents.WithLabelValues("add_player").Inc()

	var body struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	snapshot := s.controller.AddPlayer(r.Context(), body.Name)
	status := snapshotStatus(snapshot)
	if snapshot.Prompt.Kind == controller.PromptRosterLimit {
		status = http.StatusConflict
	}
	writeJSON(w, status, snapshot)
}

func (s *Server) handleAdjustScore(w http.ResponseWriter, r *http.Request) {
	s.intents.WithLabelValues("adjust_score").Inc()

	var body struct {
		Delta int `json:"delta"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	snapshot := s.controller.AdjustScore(r.Context(), chi.URLParam(r, "id"), body.Delta)
	writeJSON(w, snapshotStatus(snapshot), snapshot)
}

func (s *Server) handleSetScore(w http.ResponseWriter, r *http.Request) {
	s.intents.WithLabelValues("set_score").Inc()

	var body struct {
		Score int `json:"score"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	snapshot := s.controller.SetScore(r.Context(), chi.URLParam(r, "id"), body.Score)
	writeJSON(w, snapshotStatus(snapshot), snapshot)
}

func (s *Server) handleRenamePlayer(w http.ResponseWriter, r *http.Request) {
	s.intents.WithLabelValues("rename_player").Inc()

	var body struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	snapshot := s.controller.RenamePlayer(r.Context(), chi.URLParam(r, "id"), body.Name)
	writeJSON(w, snapshotStatus(snapshot), snapshot)
}

func (s *Server) handleEditPlayer(w http.ResponseWriter, r *http.Request) {
	s.intents.WithLabelValues("edit_player").Inc()

	var body struct {
		Name  string `json:"name"`
		Score int    `json:"score"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	snapshot := s.controller.EditPlayer(r.Context(), chi.URLParam(r, "id"), body.Name, body.Score)
	writeJSON(w, snapshotStatus(snapshot), snapshot)
}

func (s *Server) handleDeletePlayer(w http.ResponseWriter, r *http.Request) {
	s.intents.WithLabelValues("delete_player").Inc()

	snapshot := s.controller.DeletePlayer(r.Context(), chi.URLParam(r, "id"))
	writeJSON(w, snapshotStatus(snapshot), snapshot)
}

func (s *Server) handleRestorePlayer(w http.ResponseWriter, r *http.Request) {
	s.intents.WithLabelValues("restore_player").Inc()

	var body struct {
		Name  string `json:"name"`
		Score int    `json:"score"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	player := domain.Player{
		ID:    chi.URLParam(r, "id"),
		Name:  body.Name,
		Score: body.Score,
	}
	snapshot := s.controller.RestorePlayer(r.Context(), player)
	writeJSON(w, snapshotStatus(snapshot), snapshot)
}

func (s *Server) handleSetGameType(w http.ResponseWriter, r *http.Request) {
	s.intents.WithLabelValues("set_game_type").Inc()

	var body struct {
		GameType string `json:"game_type"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	gameType, err := domain.ParseGameType(body.GameType)
	if err != nil {
		writeError(w, err)
		return
	}
	snapshot := s.controller.SetGameType(r.Context(), gameType)
	writeJSON(w, snapshotStatus(snapshot), snapshot)
}

func (s *Server) handleConfirmGameType(w http.ResponseWriter, r *http.Request) {
	s.intents.WithLabelValues("confirm_game_type").Inc()

	snapshot := s.controller.ConfirmGameTypeChange(r.Context())
	writeJSON(w, snapshotStatus(snapshot), snapshot)
}

func (s *Server) handleCancelGameType(w http.ResponseWriter, _ *http.Request) {
	s.intents.WithLabelValues("cancel_game_type").Inc()
	writeJSON(w, http.StatusOK, s.controller.CancelGameTypeChange())
}

func (s *Server) handleNextRound(w http.ResponseWriter, r *http.Request) {
	s.intents.WithLabelValues("next_round").Inc()

	snapshot := s.controller.NextRound(r.Context())
	writeJSON(w, snapshotStatus(snapshot), snapshot)
}

func (s *Server) handleConfirmNextRound(w http.ResponseWriter, r *http.Request) {
	s.intents.WithLabelValues("confirm_next_round").Inc()

	snapshot := s.controller.ConfirmNextRound(r.Context())
	writeJSON(w, snapshotStatus(snapshot), snapshot)
}

func (s *Server) handleCancelNextRound(w http.ResponseWriter, _ *http.Request) {
	s.intents.WithLabelValues("cancel_next_round").Inc()
	writeJSON(w, http.StatusOK, s.controller.CancelNextRound())
}

func (s *Server) handleResetGame(w http.ResponseWriter, r *http.Request) {
	s.intents.WithLabelValues("reset_game").Inc()

	snapshot := s.controller.ResetGame(r.Context())
	writeJSON(w, snapshotStatus(snapshot), snapshot)
}

func (s *Server) handleClearPrompt(w http.ResponseWriter, _ *http.Request) {
	s.intents.WithLabelValues("clear_prompt").Inc()
	writeJSON(w, http.StatusOK, s.controller.ClearLimitMessage())
}

func (s *Server) handleScoreHistory(w http.ResponseWriter, r *http.Request) {
	s.intents.WithLabelValues("score_history").Inc()

	playerID := chi.URLParam(r, "id")

	if raw := r.URL.Query().Get("round"); raw != "" {
		round, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "round must be an integer", http.StatusBadRequest)
			return
		}
		records, err := s.controller.RoundScores(r.Context(), round)
		if err != nil {
			writeError(w, err)
			return
		}
		filtered := make([]domain.ScoreRecord, 0, len(records))
		for _, record := range records {
			if record.PlayerID == playerID {
				filtered = append(filtered, record)
			}
		}
		writeJSON(w, http.StatusOK, filtered)
		return
	}

	records, err := s.controller.ScoreHistory(r.Context(), playerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleTotalScore(w http.ResponseWriter, r *http.Request) {
	s.intents.WithLabelValues("total_score").Inc()

	total, err := s.controller.TotalScore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"total": total})
}

func snapshotStatus(snapshot controller.Snapshot) int {
	if snapshot.Err == "" {
		return http.StatusOK
	}
	return snapshot.ErrCode.HTTPStatus()
}

func decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response error=%v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err, http.StatusInternalServerError)
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  string(apperrors.CodeOf(err)),
	})
}
