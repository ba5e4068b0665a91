package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/franzhentze92/druma-chat/internal/models"
)

// CreateApplicationRequest represents the create application request.
// Adopter and shelter may be absent on a draft application; the chat room
// cannot open until both are set.
type CreateApplicationRequest struct {
	PetID     string `json:"pet_id"`
	AdopterID string `json:"adopter_id,omitempty"`
	ShelterID string `json:"shelter_id,omitempty"`
	Status    string `json:"status,omitempty"`
}

// ApplicationResponse represents an application in API responses.
type ApplicationResponse struct {
	ID        string `json:"id"`
	PetID     string `json:"pet_id"`
	AdopterID string `json:"adopter_id,omitempty"`
	ShelterID string `json:"shelter_id,omitempty"`
	Status    string `json:"status"`
}

// UpdateStatusRequest represents the status update request.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// CreateApplication records a new adoption application.
func (h *Handler) CreateApplication(w http.ResponseWriter, r *http.Request) {
	var req CreateApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	petID, err := uuid.Parse(req.PetID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid pet ID format")
		return
	}

	adopterID, ok := parseOptionalUUID(req.AdopterID)
	if !ok {
		h.Error(w, http.StatusBadRequest, "invalid adopter ID format")
		return
	}
	shelterID, ok := parseOptionalUUID(req.ShelterID)
	if !ok {
		h.Error(w, http.StatusBadRequest, "invalid shelter ID format")
		return
	}

	status := req.Status
	if status == "" {
		status = models.StatusPending
	}
	if !validStatus(status) {
		h.Error(w, http.StatusBadRequest, "invalid status")
		return
	}

	app, err := h.db.CreateApplication(r.Context(), petID, adopterID, shelterID, status)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create application")
		h.Error(w, http.StatusInternalServerError, "failed to create application")
		return
	}

	h.JSON(w, http.StatusCreated, toApplicationResponse(app))
}

// GetApplication returns an application by id.
func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid application ID format")
		return
	}

	app, err := h.db.GetApplication(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if app == nil {
		h.Error(w, http.StatusNotFound, "application not found")
		return
	}

	h.JSON(w, http.StatusOK, toApplicationResponse(app))
}

// UpdateApplicationStatus moves an application through its lifecycle.
// Approval is what unlocks the welcome seed on first chat open.
func (h *Handler) UpdateApplicationStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid application ID format")
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !validStatus(req.Status) {
		h.Error(w, http.StatusBadRequest, "invalid status")
		return
	}

	app, err := h.db.GetApplication(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if app == nil {
		h.Error(w, http.StatusNotFound, "application not found")
		return
	}

	if err := h.db.UpdateApplicationStatus(r.Context(), id, req.Status); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to update status")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func validStatus(status string) bool {
	switch status {
	case models.StatusPending, models.StatusApproved, models.StatusRejected:
		return true
	}
	return false
}

// parseOptionalUUID parses s when present. The bool is false on a malformed id.
func parseOptionalUUID(s string) (*uuid.UUID, bool) {
	if s == "" {
		return nil, true
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, false
	}
	return &id, true
}

func toApplicationResponse(app *models.Application) ApplicationResponse {
	resp := ApplicationResponse{
		ID:     app.ID.String(),
		PetID:  app.PetID.String(),
		Status: app.Status,
	}
	if app.AdopterID != nil {
		resp.AdopterID = app.AdopterID.String()
	}
	if app.ShelterID != nil {
		resp.ShelterID = app.ShelterID.String()
	}
	return resp
}
