package chat

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/franzhentze92/druma-chat/internal/identity"
	"github.com/franzhentze92/druma-chat/internal/metrics"
	"github.com/franzhentze92/druma-chat/internal/models"
	"github.com/franzhentze92/druma-chat/internal/store"
)

// Resolver finds or creates the single conversation room for an adoption
// application. Rooms are immutable once created; there is no update path.
type Resolver struct {
	rooms    RoomStore
	identity identity.Source
	messages MessageStore
	logger   zerolog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(rooms RoomStore, src identity.Source, messages MessageStore, logger zerolog.Logger) *Resolver {
	return &Resolver{rooms: rooms, identity: src, messages: messages, logger: logger}
}

// Resolve returns the room for the application, creating it on first
// open. Both participants must resolve first; an identity failure aborts
// before any subscription can be opened. When two callers race on the
// first open, the storage layer's unique constraint makes the loser
// re-fetch the winner's room.
func (r *Resolver) Resolve(ctx context.Context, applicationID uuid.UUID) (*models.Room, error) {
	res, err := r.identity.Resolve(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	room, err := r.rooms.GetRoomByApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if room != nil {
		return room, nil
	}

	room, err = r.rooms.CreateRoom(ctx, applicationID, res.Adopter, res.Shelter)
	if errors.Is(err, store.ErrRoomExists) {
		return r.rooms.GetRoomByApplication(ctx, applicationID)
	}
	if err != nil {
		return nil, err
	}
	metrics.RoomsCreated.Inc()

	if res.Approved {
		r.seedWelcome(ctx, room, res.Shelter)
	}

	return room, nil
}

// seedWelcome posts the system greeting so an approved match never opens
// on an empty thread. Policy hook, best-effort.
func (r *Resolver) seedWelcome(ctx context.Context, room *models.Room, shelter uuid.UUID) {
	msg := &models.Message{
		RoomID:   room.ID.String(),
		SenderID: shelter.String(),
		Body:     "Your application was approved. Say hello!",
		Kind:     models.KindSystem,
	}
	if err := r.messages.AddMessage(ctx, msg); err != nil {
		r.logger.Warn().
			Err(err).
			Str("room_id", msg.RoomID).
			Msg("welcome message not seeded")
	}
}
