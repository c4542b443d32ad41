package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tarka-io/tarka/internal/entity"
	"github.com/tarka-io/tarka/internal/service"
)

// DependencyHandler handles dependency edge endpoints.
type DependencyHandler struct {
	svc *service.Service
}

// NewDependencyHandler creates a new DependencyHandler.
func NewDependencyHandler(svc *service.Service) *DependencyHandler {
	return &DependencyHandler{svc: svc}
}

// createDependencyRequest is the JSON body for POST /dependencies.
type createDependencyRequest struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Type     string `json:"type"`
	Note     string `json:"note,omitempty"`
}

// Create creates a dependency edge.
func (h *DependencyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createDependencyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, entity.ErrCodeMalformed, "invalid request body")
		return
	}

	d, err := h.svc.AddDependency(r.Context(), req.SourceID, req.TargetID, entity.DepType(req.Type), req.Note)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, d)
}

// Get returns a dependency edge by id.
func (h *DependencyHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.GetDependency(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// Delete removes a dependency edge.
func (h *DependencyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveDependency(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
