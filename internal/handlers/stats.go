package handlers

import "net/http"

// StatsResponse represents the stats endpoint response.
type StatsResponse struct {
	Rooms int64 `json:"rooms"`
}

// Stats returns service-level counters.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.db.CountRooms(r.Context())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count rooms")
		return
	}

	h.JSON(w, http.StatusOK, StatsResponse{Rooms: rooms})
}
