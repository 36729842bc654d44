package handlers

import (
	"errors"
	"net/http"

	"github.com/abrezinsky/forumelections/internal/auth"
)

// handleLogin exchanges the shared password for a session token. The token
// is returned in the body and set as a cookie.
func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	token, user, err := h.Auth.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		respondError(w, Unauthorized("Invalid username or password"))
		return
	}
	if err != nil {
		respondError(w, err)
		return
	}

	auth.SetSessionCookie(w, token)
	respondOK(w, SessionResponse{Token: token, User: user})
}

// handleLogout revokes the current session token
func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromRequest(r); token != "" {
		h.Auth.Logout(token)
	}

	auth.ClearSessionCookie(w)
	respondDeleted(w)
}

// handleCurrentUser returns the signed in user, or 401 for guests
func (h *Handlers) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		respondError(w, ErrUnauthorized)
		return
	}
	respondOK(w, user)
}
