package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/franzhentze92/druma-chat/internal/identity"
	"github.com/franzhentze92/druma-chat/internal/metrics"
	"github.com/franzhentze92/druma-chat/internal/models"
)

// RoomInfo represents room metadata in API responses.
type RoomInfo struct {
	ID            string `json:"id"`
	ApplicationID string `json:"application_id"`
	AdopterID     string `json:"adopter_id"`
	ShelterID     string `json:"shelter_id"`
}

// MessageResponse represents a message in API responses. ReadAt is set
// when the counterpart's read cursor has reached the message.
type MessageResponse struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Body      string `json:"body"`
	Kind      string `json:"kind"`
	Tag       string `json:"tag,omitempty"`
	Timestamp int64  `json:"ts"`
	ReadAt    int64  `json:"read_at,omitempty"`
}

// OpenChatResponse represents the open chat response: the resolved room
// plus its history in ascending order.
type OpenChatResponse struct {
	Room          RoomInfo          `json:"room"`
	Messages      []MessageResponse `json:"messages"`
	HasMore       bool              `json:"has_more"`
	HistoryFailed bool              `json:"history_failed,omitempty"`
	ReadCursors   map[string]int64  `json:"read_cursors,omitempty"`
}

// RoomMessagesResponse represents one ascending page of room history.
type RoomMessagesResponse struct {
	Messages    []MessageResponse `json:"messages"`
	HasMore     bool              `json:"has_more"`
	ReadCursors map[string]int64  `json:"read_cursors,omitempty"`
}

// PostMessageRequest represents the post message request.
type PostMessageRequest struct {
	Body string `json:"body"`
	Tag  string `json:"tag,omitempty"` // Echoed on the stored copy and the push event
}

// PostMessageResponse represents the post message response.
type PostMessageResponse struct {
	ID        string `json:"id"`
	Tag       string `json:"tag,omitempty"`
	Timestamp int64  `json:"ts"`
}

// MarkReadRequest represents the read cursor update request.
type MarkReadRequest struct {
	Timestamp int64 `json:"ts"`
}

// OpenChat finds or creates the conversation room for an adoption
// application and returns it together with the thread history. A history
// fetch failure is non-fatal: the room still opens with an empty thread.
func (h *Handler) OpenChat(w http.ResponseWriter, r *http.Request) {
	applicationID, err := uuid.Parse(chi.URLParam(r, "applicationID"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid application ID format")
		return
	}

	room, err := h.resolver.Resolve(r.Context(), applicationID)
	if err != nil {
		if errors.Is(err, identity.ErrParticipantsUnresolved) {
			h.Error(w, http.StatusUnprocessableEntity, "cannot resolve chat participants")
			return
		}
		h.Error(w, http.StatusInternalServerError, "failed to open chat")
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"))

	resp := OpenChatResponse{
		Room: RoomInfo{
			ID:            room.ID.String(),
			ApplicationID: room.ApplicationID.String(),
			AdopterID:     room.AdopterID.String(),
			ShelterID:     room.ShelterID.String(),
		},
		Messages: []MessageResponse{},
	}

	messages, err := h.messages.GetRoomMessages(r.Context(), room.ID.String(), limit+1, 0)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("room_id", room.ID.String()).
			Msg("history fetch failed, opening with empty thread")
		resp.HistoryFailed = true
		h.JSON(w, http.StatusOK, resp)
		return
	}

	resp.HasMore = len(messages) > limit
	if resp.HasMore {
		messages = messages[:limit]
	}

	cursors := h.readCursors(r.Context(), room)
	annotateRead(messages, room, cursors)
	resp.Messages = toAscendingResponses(messages)
	resp.ReadCursors = cursors

	h.JSON(w, http.StatusOK, resp)
}

// GetRoomMessages returns one page of room history, oldest first within
// the page. The before parameter pages backwards through older messages.
func (h *Handler) GetRoomMessages(w http.ResponseWriter, r *http.Request) {
	room, ok := h.loadRoom(w, r)
	if !ok {
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"))

	var before int64 = 0
	if beforeStr := r.URL.Query().Get("before"); beforeStr != "" {
		if b, err := strconv.ParseInt(beforeStr, 10, 64); err == nil {
			before = b
		}
	}

	messages, err := h.messages.GetRoomMessages(r.Context(), room.ID.String(), limit+1, before)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}

	cursors := h.readCursors(r.Context(), room)
	annotateRead(messages, room, cursors)

	h.JSON(w, http.StatusOK, RoomMessagesResponse{
		Messages:    toAscendingResponses(messages),
		HasMore:     hasMore,
		ReadCursors: cursors,
	})
}

// PostMessage appends a message to a room and publishes the insert event.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	room, ok := h.loadRoom(w, r)
	if !ok {
		return
	}

	sender := r.Header.Get(senderHeader)
	if sender == "" {
		h.Error(w, http.StatusUnauthorized, senderHeader+" header is required")
		return
	}
	if !isParticipant(room, sender) {
		h.Error(w, http.StatusForbidden, "sender is not a participant of this room")
		return
	}

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if strings.TrimSpace(req.Body) == "" {
		h.Error(w, http.StatusBadRequest, "body is required")
		return
	}
	if len(req.Body) > maxBodyBytes {
		h.Error(w, http.StatusUnprocessableEntity, "body too long (max 4096 bytes)")
		return
	}

	msg := &models.Message{
		RoomID:   room.ID.String(),
		SenderID: sender,
		Body:     req.Body,
		Kind:     models.KindText,
		Tag:      req.Tag,
	}

	// Assigns ID and timestamp, publishes the insert event
	if err := h.messages.AddMessage(r.Context(), msg); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to store message")
		return
	}

	metrics.MessagesPosted.WithLabelValues(msg.Kind).Inc()

	h.JSON(w, http.StatusCreated, PostMessageResponse{
		ID:        msg.ID,
		Tag:       msg.Tag,
		Timestamp: msg.Timestamp,
	})
}

// MarkRead records the caller's read cursor for a room.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	room, ok := h.loadRoom(w, r)
	if !ok {
		return
	}

	sender := r.Header.Get(senderHeader)
	if sender == "" {
		h.Error(w, http.StatusUnauthorized, senderHeader+" header is required")
		return
	}
	if !isParticipant(room, sender) {
		h.Error(w, http.StatusForbidden, "sender is not a participant of this room")
		return
	}

	var req MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Timestamp <= 0 {
		h.Error(w, http.StatusBadRequest, "ts is required")
		return
	}

	if err := h.messages.MarkRead(r.Context(), room.ID.String(), sender, req.Timestamp); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to update read cursor")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// loadRoom parses the room id URL param and fetches the room, writing the
// error response itself when anything is off.
func (h *Handler) loadRoom(w http.ResponseWriter, r *http.Request) (*models.Room, bool) {
	roomID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid room ID format")
		return nil, false
	}

	room, err := h.db.GetRoom(r.Context(), roomID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return nil, false
	}
	if room == nil {
		h.Error(w, http.StatusNotFound, "room not found")
		return nil, false
	}
	return room, true
}

func parseLimit(limitStr string) int {
	limit := 50
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > 200 {
		limit = 200
	}
	return limit
}

// readCursors fetches both participants' read cursors. A cursor fetch
// failure degrades that participant to "unread", it never fails the request.
func (h *Handler) readCursors(ctx context.Context, room *models.Room) map[string]int64 {
	cursors := make(map[string]int64, 2)
	for _, userID := range []string{room.AdopterID.String(), room.ShelterID.String()} {
		ts, err := h.messages.GetReadCursor(ctx, room.ID.String(), userID)
		if err != nil {
			h.logger.Warn().
				Err(err).
				Str("room_id", room.ID.String()).
				Msg("read cursor fetch failed")
			continue
		}
		if ts > 0 {
			cursors[userID] = ts
		}
	}
	return cursors
}

// annotateRead marks each message read once its counterpart's cursor has
// reached it. ReadAt carries the cursor position, the timestamp of the
// newest message the reader has seen.
func annotateRead(messages []models.Message, room *models.Room, cursors map[string]int64) {
	adopter := room.AdopterID.String()
	shelter := room.ShelterID.String()
	for i := range messages {
		reader := adopter
		if messages[i].SenderID == adopter {
			reader = shelter
		}
		if ts, ok := cursors[reader]; ok && ts >= messages[i].Timestamp {
			messages[i].ReadAt = ts
		}
	}
}

// toAscendingResponses reverses a newest-first page into the ascending
// order the thread renders in.
func toAscendingResponses(messages []models.Message) []MessageResponse {
	out := make([]MessageResponse, len(messages))
	for i, msg := range messages {
		out[len(messages)-1-i] = MessageResponse{
			ID:        msg.ID,
			From:      msg.SenderID,
			Body:      msg.Body,
			Kind:      msg.Kind,
			Tag:       msg.Tag,
			Timestamp: msg.Timestamp,
			ReadAt:    msg.ReadAt,
		}
	}
	return out
}
