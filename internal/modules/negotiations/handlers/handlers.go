// Package handlers provides HTTP handlers for negotiation operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/negotiator/internal/domain"
	"github.com/aristath/negotiator/internal/modules/negotiations"
)

// Handler handles negotiation HTTP requests
type Handler struct {
	service *negotiations.Service
	log     zerolog.Logger
}

// NewHandler creates a new negotiations handler
func NewHandler(service *negotiations.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "negotiations").Logger(),
	}
}

// HandleCreate handles POST /api/negotiations
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req negotiations.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	n, err := h.service.Create(req)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to create negotiation")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusCreated, envelope(n))
}

// HandleGet handles GET /api/negotiations/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	n, decisions, err := h.service.Get(id)
	if err != nil {
		h.respondError(w, err, "Failed to load negotiation")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"negotiation": n,
			"decisions":   decisions,
		},
		"metadata": metadata(),
	})
}

// HandleRound handles POST /api/negotiations/{id}/rounds
func (h *Handler) HandleRound(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req negotiations.RoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.SubmitRound(id, req)
	if err != nil {
		h.respondError(w, err, "Round failed")
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(resp))
}

// HandleMeso handles POST /api/negotiations/{id}/meso
func (h *Handler) HandleMeso(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req negotiations.MesoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.GenerateMeso(id, req)
	if err != nil {
		h.respondError(w, err, "MESO generation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(result))
}

// HandleSelection handles POST /api/negotiations/{id}/meso/selection
func (h *Handler) HandleSelection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var selection domain.MesoSelection
	if err := json.NewDecoder(r.Body).Decode(&selection); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if selection.PickedAt.IsZero() {
		selection.PickedAt = time.Now()
	}

	if err := h.service.RecordSelection(id, selection); err != nil {
		h.respondError(w, err, "Failed to record selection")
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]string{"status": "recorded"}))
}

func (h *Handler) respondError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, negotiations.ErrNotFound) {
		http.Error(w, "Negotiation not found", http.StatusNotFound)
		return
	}
	h.log.Error().Err(err).Msg(msg)
	http.Error(w, err.Error(), http.StatusConflict)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data":     data,
		"metadata": metadata(),
	}
}

func metadata() map[string]interface{} {
	return map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
	}
}
