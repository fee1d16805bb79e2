package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	apiMiddleware "github.com/phrazzld/tasklist/internal/api/middleware"
)

// NewRouter registers the task routes behind the standard middleware
// chain. A non-empty token protects every route except /health.
func NewRouter(h *TaskHandler, token string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(logger))

	auth := apiMiddleware.NewTokenAuth(token)

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Authenticate)

		r.Get("/tasks", h.ListTasks)
		r.Post("/tasks", h.AddTasks)
		r.Put("/tasks/{index}", h.UpdateTask)
		r.Delete("/tasks/{index}", h.DeleteTask)
		r.Post("/tasks/{index}/complete", h.CompleteTask)
		r.Post("/tasks/{index}/uncomplete", h.UncompleteTask)
		r.Post("/tasks/{index}/priority", h.PrioritizeTask)
		r.Post("/tasks/{index}/defer", h.DeferTask)

		r.Put("/selection", h.SetSelection)
		r.Delete("/selection", h.ClearSelection)

		r.Get("/facets", h.Facets)
		r.Post("/archive", h.Archive)
		r.Post("/sync", h.Sync)
		r.Get("/status", h.Status)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
