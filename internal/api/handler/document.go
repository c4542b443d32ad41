package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tarka-io/tarka/internal/entity"
	"github.com/tarka-io/tarka/internal/frontmatter"
	"github.com/tarka-io/tarka/internal/service"
	"github.com/tarka-io/tarka/internal/templates"
)

// maxDocumentSize bounds uploaded frontmatter documents.
const maxDocumentSize = 1 << 20

// DocumentHandler serves the frontmatter document form of entities:
// scaffolds, rendered documents, and document ingest.
type DocumentHandler struct {
	svc *service.Service
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(svc *service.Service) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

// Scaffold returns a blank document skeleton for a kind. Nothing is
// stored.
func (h *DocumentHandler) Scaffold(w http.ResponseWriter, r *http.Request) {
	kind, err := entity.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		verr := &entity.ValidationError{}
		verr.Addf("kind", "%s", err.Error())
		handleError(w, verr.OrNil())
		return
	}

	doc, err := templates.Scaffold(kind)
	if err != nil {
		handleError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// Render returns an entity as a frontmatter document, with the kind's
// section headers injected into the body when missing.
func (h *DocumentHandler) Render(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(templates.Render(e))
}

// Ingest replaces an entity's title, description, status, and metadata
// from an uploaded frontmatter document. The id in the URL wins over
// any id key inside the document.
func (h *DocumentHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentSize))
	if err != nil {
		respondError(w, http.StatusBadRequest, entity.ErrCodeMalformed, "reading request body")
		return
	}

	parsed, err := frontmatter.Decode(data)
	if err != nil {
		handleError(w, err)
		return
	}

	p := service.UpdateParams{
		Title:       &parsed.Title,
		Description: &parsed.Description,
		Meta:        parsed.Meta,
	}
	if parsed.Status != "" {
		p.Status = &parsed.Status
	}

	e, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, e)
}
