package handler

import (
	"net/http"

	"github.com/tarka-io/tarka/internal/service"
)

// DoctorHandler serves the hierarchy health scan.
type DoctorHandler struct {
	svc *service.Service
}

// NewDoctorHandler creates a new DoctorHandler.
func NewDoctorHandler(svc *service.Service) *DoctorHandler {
	return &DoctorHandler{svc: svc}
}

// doctorResponse is the JSON shape of the health scan result.
type doctorResponse struct {
	Healthy    bool                         `json:"healthy"`
	Violations []service.HierarchyViolation `json:"violations"`
}

// Scan runs the hierarchy health check over the whole graph.
func (h *DoctorHandler) Scan(w http.ResponseWriter, r *http.Request) {
	violations, err := h.svc.Doctor(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	if violations == nil {
		violations = []service.HierarchyViolation{}
	}
	respondJSON(w, http.StatusOK, &doctorResponse{
		Healthy:    len(violations) == 0,
		Violations: violations,
	})
}
