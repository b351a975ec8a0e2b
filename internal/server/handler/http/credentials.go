package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atinyakov/diecompare/internal/middleware"
	"github.com/atinyakov/diecompare/internal/models"
)

// CredentialService defines the account operations required by the
// CredentialHandler.
type CredentialService interface {
	List(ctx context.Context) ([]models.Credential, error)
	AddCredential(ctx context.Context, username, name, password string) (models.Credential, error)
	DeleteCredential(ctx context.Context, actor, username string) error
}

// CredentialHandler manages login accounts. Every route requires a
// signed-in session.
type CredentialHandler struct {
	Credentials CredentialService
}

// CredentialRequest is the JSON payload for POST /api/credentials.
type CredentialRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// List handles GET /api/credentials. Password hashes are never encoded.
func (h *CredentialHandler) List(w http.ResponseWriter, r *http.Request) {
	creds, err := h.Credentials.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if creds == nil {
		creds = []models.Credential{}
	}
	writeJSON(w, http.StatusOK, creds)
}

// Create handles POST /api/credentials.
func (h *CredentialHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	c, err := h.Credentials.AddCredential(r.Context(), req.Username, req.Name, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// Delete handles DELETE /api/credentials/{username}.
func (h *CredentialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor := middleware.SessionFromContext(r.Context()).User()
	if err := h.Credentials.DeleteCredential(r.Context(), actor, chi.URLParam(r, "username")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
