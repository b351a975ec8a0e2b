package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atinyakov/diecompare/internal/layout"
	"github.com/atinyakov/diecompare/internal/middleware"
	"github.com/atinyakov/diecompare/internal/models"
)

// CompareHandler serves the session's comparison selection and its layout.
type CompareHandler struct {
	Catalog CatalogService
}

// SelectionResponse describes the selection after a change.
type SelectionResponse struct {
	State    string   `json:"state"`
	Selected []string `json:"selected"`
}

// ToggleResponse is the body of POST /api/compare/toggle/{id}.
type ToggleResponse struct {
	SelectionResponse
	ID     string `json:"id"`
	Chosen bool   `json:"chosen"`
}

// CompareResponse is the body of GET /api/compare.
type CompareResponse struct {
	SelectionResponse
	Layout layout.Result `json:"layout"`
}

// Show handles GET /api/compare.
func (h *CompareHandler) Show(w http.ResponseWriter, r *http.Request) {
	s := middleware.SessionFromContext(r.Context())
	ids := s.Selection()
	res, err := h.Catalog.Compare(r.Context(), s.Auth(), ids)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CompareResponse{
		SelectionResponse: SelectionResponse{State: s.State().String(), Selected: ids},
		Layout:            res,
	})
}

// Toggle handles POST /api/compare/toggle/{id}. Ids outside the caller's
// visible set are never added.
func (h *CompareHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	s := middleware.SessionFromContext(r.Context())
	vs, err := h.Catalog.Visible(r.Context(), s.Auth())
	if err != nil && !errors.Is(err, models.ErrWrongCredential) {
		writeError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	chosen := s.Toggle(id, vs)
	writeJSON(w, http.StatusOK, ToggleResponse{
		SelectionResponse: SelectionResponse{State: s.State().String(), Selected: s.Selection()},
		ID:                id,
		Chosen:            chosen,
	})
}

// Clear handles DELETE /api/compare.
func (h *CompareHandler) Clear(w http.ResponseWriter, r *http.Request) {
	s := middleware.SessionFromContext(r.Context())
	s.Clear()
	writeJSON(w, http.StatusOK, SelectionResponse{State: s.State().String(), Selected: s.Selection()})
}
