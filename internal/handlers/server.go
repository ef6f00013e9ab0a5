// internal/handlers/server.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/typeloop/typeloop/internal/apperr"
	"github.com/typeloop/typeloop/internal/auth"
	"github.com/typeloop/typeloop/internal/models"
	"github.com/typeloop/typeloop/internal/room"
	"github.com/typeloop/typeloop/internal/stats"
)

// UserStore is the identity persistence the user endpoints need.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (string, error)
}

// Server bundles the service components the HTTP layer fronts.
type Server struct {
	Rooms       *room.Registry
	Tracker     *stats.Tracker
	Analytics   *stats.Analytics
	Leaderboard *stats.Leaderboard
	Users       UserStore
	Logger      *logrus.Logger
}

func NewServer(rooms *room.Registry, tracker *stats.Tracker, analytics *stats.Analytics, leaderboard *stats.Leaderboard, users UserStore, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Server{
		Rooms:       rooms,
		Tracker:     tracker,
		Analytics:   analytics,
		Leaderboard: leaderboard,
		Users:       users,
		Logger:      logger,
	}
}

// requireUser authenticates the auth_token cookie and returns the user id.
// On failure it has already written the response.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	cookie := r.Header.Get("Cookie")
	if !strings.Contains(cookie, "auth_token=") {
		http.Error(w, "missing auth_token", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	token := extractCookieToken(cookie, "auth_token")

	userIDStr, err := auth.AuthenticateJWT(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusForbidden)
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		http.Error(w, "invalid user id format in token", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return userID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeErr renders any error as the structured {error, code} payload.
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.Logger.WithError(err).Error("request failed")
		writeJSON(w, status, map[string]string{
			"error": "internal error",
			"code":  string(apperr.CodeInternal),
		})
		return
	}
	var e *apperr.Error
	if ok := asAppError(err, &e); ok {
		writeJSON(w, status, map[string]string{
			"error": e.Message,
			"code":  string(e.Code),
		})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "code": string(apperr.CodeOf(err))})
}
