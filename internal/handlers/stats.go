// internal/handlers/stats.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/typeloop/typeloop/internal/apperr"
	"github.com/typeloop/typeloop/internal/models"
	"github.com/typeloop/typeloop/internal/stats"
)

// UpsertSpeedHandler persists the client's current performance snapshot for
// (user, room). Clients push this periodically during a race; each call fully
// replaces the previous one.
func UpsertSpeedHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := s.requireUser(w, r)
		if !ok {
			return
		}

		var req struct {
			RoomID uuid.UUID `json:"roomId"`
			stats.SpeedInput
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeErr(w, apperr.Validation("bad speed payload"))
			return
		}

		rec, err := s.Tracker.Upsert(r.Context(), userID, req.RoomID, req.SpeedInput)
		if err != nil {
			s.writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// FlushStatsHandler receives the end-of-session character analytics batch and
// replaces the participant's stored stats with it.
func FlushStatsHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := s.requireUser(w, r)
		if !ok {
			return
		}

		var req struct {
			RoomID     uuid.UUID              `json:"roomId"`
			Characters []models.CharacterStat `json:"characters"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeErr(w, apperr.Validation("bad analytics payload"))
			return
		}

		result, err := s.Analytics.Flush(r.Context(), userID, req.RoomID, req.Characters)
		if err != nil {
			s.writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// LeaderboardHandler is the per-second poll during an active round.
func LeaderboardHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.requireUser(w, r); !ok {
			return
		}

		roomID, err := uuid.Parse(r.URL.Query().Get("roomId"))
		if err != nil {
			s.writeErr(w, apperr.Validation("roomId must be a room uuid"))
			return
		}

		entries, err := s.Leaderboard.Get(r.Context(), roomID)
		if err != nil {
			s.writeErr(w, err)
			return
		}
		if entries == nil {
			entries = []stats.LeaderboardEntry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}
