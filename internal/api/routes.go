package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.apiKey))

			r.Route("/goals", func(r chi.Router) {
				r.Get("/", h.GetGoals)
				r.Patch("/", h.UpdateGoals)
				r.Post("/reset", h.ResetGoals)
				r.Get("/history", h.GoalsHistory)
				r.Delete("/history", h.ClearGoalsHistory)
				r.Post("/calculate", h.CalculateGoals)
				r.Post("/suggestion", h.SuggestGoals)
				r.Post("/suggestion/response", h.RespondToSuggestion)
			})

			r.Route("/meals", func(r chi.Router) {
				r.Get("/", h.ListMeals)
				r.Post("/", h.CreateMeal)
				r.Get("/totals", h.MealTotals)
				r.Post("/sync", h.SyncMeals)
				r.Put("/{id}", h.UpdateMeal)
				r.Delete("/{id}", h.DeleteMeal)
			})

			r.Route("/water", func(r chi.Router) {
				r.Get("/", h.ListWater)
				r.Post("/", h.CreateWater)
				r.Post("/sync", h.SyncWater)
				r.Delete("/{id}", h.DeleteWater)
			})

			r.Get("/profile", h.GetProfile)
			r.Patch("/profile", h.UpdateProfile)

			r.Post("/chat", h.Chat)
			r.Post("/analysis", h.Analyze)

			r.Get("/events", h.Events)
		})
	})

	return r
}
