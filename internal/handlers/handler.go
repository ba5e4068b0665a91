package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/franzhentze92/druma-chat/internal/chat"
	"github.com/franzhentze92/druma-chat/internal/feed"
	"github.com/franzhentze92/druma-chat/internal/models"
	"github.com/franzhentze92/druma-chat/internal/store"
)

// senderHeader identifies the posting participant. Authentication of chat
// parties happens upstream; this service only checks room membership.
const senderHeader = "X-Druma-User"

// maxBodyBytes caps a single message body.
const maxBodyBytes = 4096

// MessageStore is the message persistence the handlers depend on.
// *store.RedisStore implements it.
type MessageStore interface {
	Ping(ctx context.Context) error
	AddMessage(ctx context.Context, msg *models.Message) error
	GetRoomMessages(ctx context.Context, roomID string, limit int, before int64) ([]models.Message, error)
	MarkRead(ctx context.Context, roomID, userID string, ts int64) error
	GetReadCursor(ctx context.Context, roomID, userID string) (int64, error)
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	db       store.DataStore
	messages MessageStore
	feed     feed.Feed
	resolver *chat.Resolver
	logger   zerolog.Logger
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(db store.DataStore, messages MessageStore, pushFeed feed.Feed, resolver *chat.Resolver, logger zerolog.Logger) *Handler {
	return &Handler{
		db:       db,
		messages: messages,
		feed:     pushFeed,
		resolver: resolver,
		logger:   logger,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// isParticipant reports whether userID is one of the room's two parties.
func isParticipant(room *models.Room, userID string) bool {
	return room.AdopterID.String() == userID || room.ShelterID.String() == userID
}
