package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"padel-rating/internal/domain"
	"padel-rating/internal/service"
)

// RatingServer exposes the engine's operations as a small JSON API.
type RatingServer struct {
	svc    *service.RatingService
	logger zerolog.Logger
}

func NewRatingServer(svc *service.RatingService, logger zerolog.Logger) *RatingServer {
	return &RatingServer{svc: svc, logger: logger}
}

// Routes registers all handlers on the mux.
func (s *RatingServer) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/matches/{source}/{id}/process", s.handleProcessMatch)
	mux.HandleFunc("POST /v1/recalculate", s.handleRecalculate)
	mux.HandleFunc("GET /v1/players/{id}/history", s.handlePlayerHistory)
	mux.HandleFunc("POST /v1/players/{id}/seed", s.handleSeedHistory)
}

func (s *RatingServer) handleProcessMatch(w http.ResponseWriter, r *http.Request) {
	source, ok := matchSource(r.PathValue("source"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown match source")
		return
	}

	res, err := s.svc.ProcessMatch(r.Context(), source, r.PathValue("id"))
	if err != nil {
		s.logger.Error().Err(err).Msg("process match failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"players_updated": len(res.Mutations),
		"delta_a":         res.DeltaA,
		"delta_b":         res.DeltaB,
	})
}

func (s *RatingServer) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.RecalculateAll(r.Context())
	if errors.Is(err, service.ErrRecalcRunning) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("recalculation failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (s *RatingServer) handlePlayerHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	points, err := s.svc.PlayerHistory(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("history lookup failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"points": points})
}

type seedRequest struct {
	StartRating float64 `json:"start_rating"`
	MatchCount  int     `json:"match_count"`
}

func (s *RatingServer) handleSeedHistory(w http.ResponseWriter, r *http.Request) {
	var req seedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	final, err := s.svc.SeedHistory(r.Context(), r.PathValue("id"), req.StartRating, req.MatchCount)
	if err != nil {
		s.logger.Error().Err(err).Msg("seed history failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"final_rating": final})
}

func matchSource(s string) (domain.MatchSource, bool) {
	switch domain.MatchSource(s) {
	case domain.SourceMatches, domain.SourceTraining:
		return domain.MatchSource(s), true
	default:
		return "", false
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
