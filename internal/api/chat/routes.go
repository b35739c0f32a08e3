package chat

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers chat routes
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/chat", func(r chi.Router) {
		r.Post("/query", h.Query)
		r.Post("/new-session", h.NewSession)
		r.Get("/sessions", h.ListSessions)
		r.Get("/sessions/{id}", h.GetSession)
		r.Get("/sessions/{id}/export", h.ExportSession)
		r.Delete("/sessions/{id}", h.DeleteSession)
		r.Post("/clear-history", h.ClearHistory)
		r.Get("/status", h.Status)
		r.Post("/refresh-vectorstore", h.RefreshVectorstore)
		r.Get("/health", h.Health)
	})
}
