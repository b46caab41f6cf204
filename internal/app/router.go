package app

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"toeicbank/internal/app/logger"
	"toeicbank/internal/app/observability"
	"toeicbank/internal/auth"
	"toeicbank/internal/category"
	"toeicbank/internal/exam"
	"toeicbank/internal/importer"
)

func NewRouter(cfg Config, db *sql.DB, log *logger.Logger, importSvc *importer.Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	collector := observability.NewCollector(db, log)
	r.Use(collector.Middleware)

	authHandler := auth.NewHandler(auth.NewService(db))
	categoryHandler := category.NewHandler(category.NewService(db))
	examHandler := exam.NewHandler(exam.NewService(db))
	importHandler := importer.NewHandler(importSvc.WithMetrics(collector))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "env": cfg.AppEnv})
	})
	r.Get("/metrics", collector.MetricsHandler)

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/auth/login", authHandler.Login)

		api.Group(func(secure chi.Router) {
			secure.Use(authHandler.RequireAuth)
			secure.Get("/auth/me", authHandler.Me)
			secure.Post("/auth/logout", authHandler.Logout)

			secure.Get("/categories", categoryHandler.List)
			secure.Get("/exams", examHandler.List)
			secure.Get("/exams/{id}", examHandler.Get)

			secure.Group(func(editor chi.Router) {
				editor.Use(authHandler.RequireRoles(auth.RoleAdmin, auth.RoleEditor))

				editor.Post("/categories", categoryHandler.Create)
				editor.Put("/categories/{id}", categoryHandler.Update)
				editor.Delete("/categories/{id}", categoryHandler.Delete)

				editor.Post("/exams", examHandler.Create)
				editor.Post("/exams/{id}/publish", examHandler.SetPublished)
				editor.Post("/exams/{id}/questions", examHandler.AttachQuestion)
				editor.Delete("/exams/{id}/questions/{questionID}", examHandler.DetachQuestion)
				editor.Put("/exams/{id}/questions/order", examHandler.Reorder)

				editor.Post("/questions/import/preview", importHandler.Preview)
				editor.Post("/questions/import", importHandler.Import)
			})

			secure.Group(func(admin chi.Router) {
				admin.Use(authHandler.RequireRoles(auth.RoleAdmin))
				admin.Get("/users", authHandler.ListUsers)
				admin.Post("/users", authHandler.CreateUser)
				admin.Put("/users/{id}", authHandler.UpdateUser)
				admin.Delete("/users/{id}", authHandler.DeactivateUser)
			})
		})
	})

	return r
}
