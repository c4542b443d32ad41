// Package api exposes the requirement hierarchy over HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/tarka-io/tarka/internal/api/handler"
	"github.com/tarka-io/tarka/internal/api/middleware"
	"github.com/tarka-io/tarka/internal/service"
)

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(svc *service.Service, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Entities
		entityHandler := handler.NewEntityHandler(svc)
		docHandler := handler.NewDocumentHandler(svc)
		r.Post("/entities", entityHandler.Create)
		r.Route("/entities/{id}", func(r chi.Router) {
			r.Get("/", entityHandler.Get)
			r.Patch("/", entityHandler.Update)
			r.Delete("/", entityHandler.Delete)
			r.Post("/move", entityHandler.Move)
			r.Get("/ancestry", entityHandler.Ancestry)
			r.Get("/subtree", entityHandler.Subtree)
			r.Get("/closure", entityHandler.Closure)
			r.Get("/impact", entityHandler.Impact)
			r.Get("/document", docHandler.Render)
			r.Put("/document", docHandler.Ingest)
		})

		// Dependency edges
		depHandler := handler.NewDependencyHandler(svc)
		r.Post("/dependencies", depHandler.Create)
		r.Get("/dependencies/{id}", depHandler.Get)
		r.Delete("/dependencies/{id}", depHandler.Delete)

		// Frontmatter document scaffolds
		r.Get("/scaffold/{kind}", docHandler.Scaffold)

		// Hierarchy health
		doctorHandler := handler.NewDoctorHandler(svc)
		r.Get("/doctor", doctorHandler.Scan)
	})

	return r
}
