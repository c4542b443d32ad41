package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tarka-io/tarka/internal/entity"
	"github.com/tarka-io/tarka/internal/service"
)

// EntityHandler handles entity endpoints.
type EntityHandler struct {
	svc *service.Service
}

// NewEntityHandler creates a new EntityHandler.
func NewEntityHandler(svc *service.Service) *EntityHandler {
	return &EntityHandler{svc: svc}
}

// createEntityRequest is the JSON body for POST /entities.
type createEntityRequest struct {
	Kind        string       `json:"kind"`
	ParentID    string       `json:"parent_id,omitempty"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Meta        *entity.Meta `json:"metadata,omitempty"`
}

// updateEntityRequest is the JSON body for PATCH /entities/{id}.
// Absent fields are left unchanged.
type updateEntityRequest struct {
	Title       *string      `json:"title,omitempty"`
	Description *string      `json:"description,omitempty"`
	Status      *string      `json:"status,omitempty"`
	Meta        *entity.Meta `json:"metadata,omitempty"`
}

// moveEntityRequest is the JSON body for POST /entities/{id}/move.
type moveEntityRequest struct {
	NewParentID string `json:"new_parent_id"`
}

// Create creates a new entity.
func (h *EntityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEntityRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, entity.ErrCodeMalformed, "invalid request body")
		return
	}

	kind, err := entity.ParseKind(req.Kind)
	if err != nil {
		verr := &entity.ValidationError{}
		verr.Addf("kind", "%s", err.Error())
		handleError(w, verr.OrNil())
		return
	}

	e, err := h.svc.Create(r.Context(), service.CreateParams{
		Kind:        kind,
		ParentID:    req.ParentID,
		Title:       req.Title,
		Description: req.Description,
		Meta:        req.Meta,
	})
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, e)
}

// Get returns an entity by id.
func (h *EntityHandler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, e)
}

// Update applies a partial update to an entity.
func (h *EntityHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateEntityRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, entity.ErrCodeMalformed, "invalid request body")
		return
	}

	p := service.UpdateParams{
		Title:       req.Title,
		Description: req.Description,
		Meta:        req.Meta,
	}
	if req.Status != nil {
		status, err := entity.ParseStatus(*req.Status)
		if err != nil {
			verr := &entity.ValidationError{}
			verr.Addf("status", "%s", err.Error())
			handleError(w, verr.OrNil())
			return
		}
		p.Status = &status
	}

	e, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, e)
}

// Move re-parents an entity.
func (h *EntityHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req moveEntityRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, entity.ErrCodeMalformed, "invalid request body")
		return
	}

	e, err := h.svc.Move(r.Context(), chi.URLParam(r, "id"), req.NewParentID)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, e)
}

// Delete removes an entity. ?cascade=true removes its subtree and
// every incident dependency edge too.
func (h *EntityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	cascade, _ := strconv.ParseBool(r.URL.Query().Get("cascade"))

	res, err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"), cascade)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// Ancestry returns the root-first path down to an entity.
func (h *EntityHandler) Ancestry(w http.ResponseWriter, r *http.Request) {
	path, err := h.svc.AncestryPath(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, path)
}

// Subtree returns an entity and all of its descendants.
func (h *EntityHandler) Subtree(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.svc.Subtree(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nodes)
}

// Closure returns the transitive blocking closure of an entity in the
// direction given by the ?direction query parameter.
func (h *EntityHandler) Closure(w http.ResponseWriter, r *http.Request) {
	dir := service.Direction(r.URL.Query().Get("direction"))
	closure, err := h.svc.DependencyClosure(r.Context(), chi.URLParam(r, "id"), dir)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, closure)
}

// Impact returns the blast radius of changing an entity.
func (h *EntityHandler) Impact(w http.ResponseWriter, r *http.Request) {
	impact, err := h.svc.ImpactOf(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, impact)
}
