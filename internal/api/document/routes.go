package document

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers document routes
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/documents", func(r chi.Router) {
		r.Get("/list", h.ListDocuments)
		r.Post("/upload", h.UploadDocument)
		r.Post("/upload-multiple", h.UploadMultipleDocuments)
		r.Get("/download/{filename}", h.DownloadDocument)
		r.Delete("/delete/{filename}", h.DeleteDocument)
		r.Post("/reprocess", h.ReprocessDocuments)
	})
}
