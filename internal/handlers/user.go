// internal/handlers/user.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/typeloop/typeloop/internal/apperr"
	"github.com/typeloop/typeloop/internal/models"
)

// CreateUserHandler registers an account. The username doubles as the
// leaderboard display name.
func CreateUserHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
			Username string `json:"username"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeErr(w, apperr.Validation("bad user payload"))
			return
		}
		if req.Email == "" || req.Password == "" {
			s.writeErr(w, apperr.Validation("email and password are required"))
			return
		}

		u := models.User{
			Email:    req.Email,
			Password: req.Password,
			Username: req.Username,
		}
		if err := s.Users.CreateUser(r.Context(), &u); err != nil {
			s.writeErr(w, err)
			return
		}

		u.Password = ""
		writeJSON(w, http.StatusCreated, u)
	}
}

// LoginHandler verifies credentials and sets the auth_token session cookie.
func LoginHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeErr(w, apperr.Validation("bad login payload"))
			return
		}

		token, err := s.Users.AuthenticateUser(r.Context(), req.Email, req.Password)
		if err != nil {
			s.writeErr(w, apperr.Wrap(apperr.ErrUnauthorized, err))
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     "auth_token",
			Value:    token,
			HttpOnly: true,
			Path:     "/",
		})
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}
