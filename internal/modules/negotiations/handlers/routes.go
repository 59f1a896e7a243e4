package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all negotiation routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/negotiations", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/{id}", h.HandleGet)
		r.Post("/{id}/rounds", h.HandleRound)
		r.Post("/{id}/meso", h.HandleMeso)
		r.Post("/{id}/meso/selection", h.HandleSelection)
	})
}
