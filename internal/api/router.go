package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/taskflow-api/internal/api/middleware"
	"github.com/phrazzld/taskflow-api/internal/service/auth"
	"github.com/phrazzld/taskflow-api/internal/service/taskengine"
)

// NewRouter wires the HTTP routes of the service.
func NewRouter(engine taskengine.Engine, jwtService auth.JWTService, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewTraceMiddleware(logger))
	r.Use(chimw.Recoverer)

	authMiddleware := middleware.NewAuthMiddleware(jwtService)
	tasks := NewTaskHandler(engine, logger)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Route("/tasks", func(r chi.Router) {
				r.Post("/", tasks.CreateTask)
				r.Get("/", tasks.ListTasks)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", tasks.GetTask)
					r.Patch("/", tasks.UpdateTask)
					r.Delete("/", tasks.DeactivateTask)

					r.Post("/assign", tasks.AssignTask)
					r.Post("/auto-assign", tasks.AutoAssignTask)
					r.Post("/accept", tasks.AcceptTask)
					r.Post("/finalize", tasks.FinalizeTask)
					r.Post("/cancel", tasks.CancelTask)
					r.Post("/reassign", tasks.ReassignTask)
					r.Post("/delegate", tasks.DelegateTask)
					r.Post("/delegation/accept", tasks.AcceptDelegation)
					r.Post("/delegation/reject", tasks.RejectDelegation)
					r.Get("/history", tasks.GetAssignmentHistory)
				})
			})

			r.Post("/workers/{id}/release", tasks.ReleaseWorkerTasks)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return r
}
