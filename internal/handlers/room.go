// internal/handlers/room.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/typeloop/typeloop/internal/apperr"
	"github.com/typeloop/typeloop/internal/models"
	"github.com/typeloop/typeloop/internal/room"
)

// CreateRoomHandler validates the config and creates a room owned by the
// authenticated user.
func CreateRoomHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := s.requireUser(w, r)
		if !ok {
			return
		}

		var cfg room.CreateConfig
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			s.writeErr(w, apperr.Validation("bad room request payload"))
			return
		}

		rm, err := s.Rooms.Create(r.Context(), userID, cfg)
		if err != nil {
			s.writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"roomId":   rm.ID,
			"joinCode": rm.JoinCode,
		})
	}
}

// JoinRoomHandler admits the authenticated user via join code.
func JoinRoomHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := s.requireUser(w, r)
		if !ok {
			return
		}

		var req struct {
			JoinCode string `json:"joinCode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.JoinCode == "" {
			s.writeErr(w, apperr.Validation("joinCode is required"))
			return
		}

		snap, err := s.Rooms.Join(r.Context(), req.JoinCode, userID)
		if err != nil {
			s.writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// TransitionRoomHandler requests a room status change. Duplicate finishes are
// answered idempotently with the current snapshot.
func TransitionRoomHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := s.requireUser(w, r)
		if !ok {
			return
		}

		var req struct {
			RoomID uuid.UUID         `json:"roomId"`
			Status models.RoomStatus `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomID == uuid.Nil {
			s.writeErr(w, apperr.Validation("roomId and status are required"))
			return
		}

		snap, err := s.Rooms.Transition(r.Context(), req.RoomID, req.Status, userID)
		if err != nil {
			s.writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// GetRoomHandler is the polling read for waiting rooms and active races.
func GetRoomHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.requireUser(w, r); !ok {
			return
		}

		roomID, err := uuid.Parse(r.URL.Query().Get("id"))
		if err != nil {
			s.writeErr(w, apperr.Validation("id must be a room uuid"))
			return
		}

		snap, err := s.Rooms.Get(r.Context(), roomID)
		if err != nil {
			s.writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// LeaveRoomHandler is the departure beacon. It always answers 204: the beacon
// is unacknowledged and unreliable by contract, so failures are logged and
// swallowed and a duplicate or late beacon is a harmless no-op.
func LeaveRoomHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := s.requireUser(w, r)
		if !ok {
			return
		}

		var req struct {
			RoomID uuid.UUID `json:"roomId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomID == uuid.Nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if err := s.Rooms.Leave(r.Context(), req.RoomID, userID); err != nil {
			s.Logger.WithError(err).Warn("leave beacon failed")
		}
		s.Tracker.MarkLeft(r.Context(), userID, req.RoomID)

		w.WriteHeader(http.StatusNoContent)
	}
}
