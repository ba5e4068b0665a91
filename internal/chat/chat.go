// Package chat keeps a two-party conversation thread consistent across one
// optimistic local writer and one asynchronous push feed.
//
// A Session drives one open chat view: the Resolver finds or creates the
// room, history loads through the MessageStore, the subscription Manager
// attaches the live feed, and every message from any source is admitted
// into the Engine, the single writer of the displayed sequence.
package chat

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/franzhentze92/druma-chat/internal/models"
)

var (
	// ErrNoActiveRoom is returned by Send when no room is open.
	ErrNoActiveRoom = errors.New("no active room")

	// ErrEmptyBody is returned by Send for empty or whitespace-only text.
	ErrEmptyBody = errors.New("message body is empty")

	// ErrSendInFlight is returned when a send is already in progress.
	// Double-submits are suppressed, not queued.
	ErrSendInFlight = errors.New("a send is already in flight")

	// ErrSessionClosed means the session was closed (or reopened) while
	// the operation was still in flight; its result was discarded.
	ErrSessionClosed = errors.New("session is closed")
)

// RoomStore is the room persistence consumed by the Resolver.
type RoomStore interface {
	GetRoomByApplication(ctx context.Context, applicationID uuid.UUID) (*models.Room, error)
	CreateRoom(ctx context.Context, applicationID, adopterID, shelterID uuid.UUID) (*models.Room, error)
}

// MessageStore is the message persistence consumed by the session.
// AddMessage assigns the server id and timestamp into msg.
type MessageStore interface {
	History(ctx context.Context, roomID string, limit int) ([]models.Message, error)
	AddMessage(ctx context.Context, msg *models.Message) error
}
