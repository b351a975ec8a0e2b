package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/atinyakov/diecompare/internal/middleware"
	"github.com/atinyakov/diecompare/internal/models"
	"github.com/atinyakov/diecompare/internal/session"
	"github.com/atinyakov/diecompare/internal/visibility"
)

// SessionStore creates and ends sessions.
type SessionStore interface {
	Create() (*session.Session, string, error)
	Delete(id string)
}

// LoginService checks interactive credentials.
type LoginService interface {
	Login(ctx context.Context, username, password string) (models.Credential, error)
}

// Resolver computes the visible set for an authentication state.
type Resolver interface {
	Visible(ctx context.Context, auth visibility.AuthState) (visibility.VisibleSet, error)
}

// SessionHandler handles the session lifecycle: creation, login, unlock,
// lock and logout.
type SessionHandler struct {
	Sessions SessionStore
	Auth     LoginService
	Catalog  Resolver
}

// LoginRequest is the JSON payload for POST /api/session/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UnlockRequest is the JSON payload for POST /api/session/unlock.
type UnlockRequest struct {
	Passphrase string `json:"passphrase"`
}

// Create starts an anonymous session and returns its bearer token.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	s, token, err := h.Sessions.Create()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"token": token,
		"state": s.Auth().String(),
	})
}

// Login signs the session in as the account named in the body.
// A failed check leaves the session unchanged.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	c, err := h.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.SessionFromContext(r.Context()).SignIn(c.Username)

	writeJSON(w, http.StatusOK, map[string]string{
		"user": c.Username,
		"name": c.Name,
	})
}

// Unlock verifies the passphrase against the private records and, when it
// opens at least one of them, makes it the session's credential.
func (h *SessionHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	var req UnlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Passphrase == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	auth := visibility.Unlocked(req.Passphrase)
	vs, err := h.Catalog.Visible(r.Context(), auth)
	if err != nil {
		writeError(w, err)
		return
	}
	s := middleware.SessionFromContext(r.Context())
	s.Unlock(auth)

	writeJSON(w, http.StatusOK, map[string]any{
		"state":       auth.String(),
		"visible":     len(vs.Dies),
		"unavailable": vs.Unavailable,
	})
}

// Lock returns the session to the anonymous state and drops selected ids
// that are no longer visible.
func (h *SessionHandler) Lock(w http.ResponseWriter, r *http.Request) {
	anon := visibility.Anonymous()
	vs, err := h.Catalog.Visible(r.Context(), anon)
	if err != nil {
		writeError(w, err)
		return
	}
	pruned := middleware.SessionFromContext(r.Context()).Lock(vs)

	writeJSON(w, http.StatusOK, map[string]any{
		"state":  anon.String(),
		"pruned": pruned,
	})
}

// Logout ends the session together with its selection.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.Sessions.Delete(middleware.SessionFromContext(r.Context()).ID)
	w.WriteHeader(http.StatusNoContent)
}
