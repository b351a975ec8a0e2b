package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atinyakov/diecompare/internal/layout"
	"github.com/atinyakov/diecompare/internal/middleware"
	"github.com/atinyakov/diecompare/internal/models"
	"github.com/atinyakov/diecompare/internal/projection"
	"github.com/atinyakov/diecompare/internal/service"
	"github.com/atinyakov/diecompare/internal/visibility"
)

// CatalogService defines the catalog operations required by the die and
// comparison handlers.
type CatalogService interface {
	Resolver
	Browse(ctx context.Context, auth visibility.AuthState, category string) (service.Listing, error)
	Get(ctx context.Context, auth visibility.AuthState, id string) (models.Die, error)
	Add(ctx context.Context, nd models.NewDie, auth visibility.AuthState) (models.Die, error)
	Delete(ctx context.Context, auth visibility.AuthState, id string) error
	Export(ctx context.Context, auth visibility.AuthState) ([]byte, error)
	Compare(ctx context.Context, auth visibility.AuthState, ids []string) (layout.Result, error)
}

// DieHandler serves the die catalog.
type DieHandler struct {
	Catalog CatalogService
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	projection.Stats
	Protected   int `json:"protected"`
	Unavailable int `json:"unavailable"`
}

// List handles GET /api/dies. The optional "category" query parameter
// filters by case-insensitive substring.
func (h *DieHandler) List(w http.ResponseWriter, r *http.Request) {
	s := middleware.SessionFromContext(r.Context())
	listing, err := h.Catalog.Browse(r.Context(), s.Auth(), r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// Get handles GET /api/dies/{id}.
func (h *DieHandler) Get(w http.ResponseWriter, r *http.Request) {
	s := middleware.SessionFromContext(r.Context())
	d, err := h.Catalog.Get(r.Context(), s.Auth(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Create handles POST /api/dies. Private dies are sealed under the
// session passphrase, so the session must be unlocked to add one.
func (h *DieHandler) Create(w http.ResponseWriter, r *http.Request) {
	var nd models.NewDie
	if err := json.NewDecoder(r.Body).Decode(&nd); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	s := middleware.SessionFromContext(r.Context())
	d, err := h.Catalog.Add(r.Context(), nd, s.Auth())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// Delete handles DELETE /api/dies/{id}. The id is also dropped from the
// caller's selection.
func (h *DieHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := middleware.SessionFromContext(ctx)
	if err := h.Catalog.Delete(ctx, s.Auth(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	if vs, err := h.Catalog.Visible(ctx, s.Auth()); err == nil {
		s.Retain(vs)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /api/stats.
func (h *DieHandler) Stats(w http.ResponseWriter, r *http.Request) {
	s := middleware.SessionFromContext(r.Context())
	listing, err := h.Catalog.Browse(r.Context(), s.Auth(), r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{
		Stats:       listing.Stats,
		Protected:   listing.Protected,
		Unavailable: listing.Unavailable,
	})
}

// Export handles GET /api/export, returning the visible set in feed format.
func (h *DieHandler) Export(w http.ResponseWriter, r *http.Request) {
	s := middleware.SessionFromContext(r.Context())
	body, err := h.Catalog.Export(r.Context(), s.Auth())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="dies.json"`)
	_, _ = w.Write(body)
}
