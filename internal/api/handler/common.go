// Package handler implements the HTTP handlers for the REST API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tarka-io/tarka/internal/entity"
	"github.com/tarka-io/tarka/internal/frontmatter"
)

// apiError is the JSON shape of every error response.
type apiError struct {
	Code    string             `json:"code"`
	Message string             `json:"message"`
	Fields  []entity.Violation `json:"fields,omitempty"`
}

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondError writes a JSON error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, &apiError{Code: code, Message: message})
}

// handleError converts domain errors to HTTP responses. Every error of
// the taxonomy maps to a distinct status; anything unrecognized is a
// 500 with no internal detail leaked.
func handleError(w http.ResponseWriter, err error) {
	var (
		verr *entity.ValidationError
		nerr *entity.NotFoundError
		cerr *entity.ConflictError
		terr *entity.TimeoutError
		perr *frontmatter.ParseError
		merr *frontmatter.MalformedDocumentError
	)
	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusUnprocessableEntity, &apiError{
			Code:    entity.ErrCodeValidation,
			Message: verr.Error(),
			Fields:  verr.Violations,
		})
	case errors.As(err, &nerr):
		respondError(w, http.StatusNotFound, entity.ErrCodeNotFound, nerr.Error())
	case errors.As(err, &cerr):
		respondError(w, http.StatusConflict, entity.ErrCodeConflict, cerr.Error())
	case errors.As(err, &terr):
		respondError(w, http.StatusGatewayTimeout, entity.ErrCodeTimeout, terr.Error())
	case errors.As(err, &perr):
		respondError(w, http.StatusBadRequest, entity.ErrCodeParse, perr.Error())
	case errors.As(err, &merr):
		respondError(w, http.StatusBadRequest, entity.ErrCodeMalformed, merr.Error())
	default:
		respondError(w, http.StatusInternalServerError, entity.ErrCodeInternal, "internal server error")
	}
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
