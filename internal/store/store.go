package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/franzhentze92/druma-chat/internal/models"
)

// ErrRoomExists is returned by CreateRoom when a room for the same
// application was created concurrently. Callers re-fetch instead of failing.
var ErrRoomExists = errors.New("room already exists for application")

// DataStore defines the interface for persistent storage of applications
// and rooms. Both PostgresStore and SQLiteStore implement this interface.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Application operations
	CreateApplication(ctx context.Context, petID uuid.UUID, adopterID, shelterID *uuid.UUID, status string) (*models.Application, error)
	GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error)
	UpdateApplicationStatus(ctx context.Context, id uuid.UUID, status string) error

	// Room operations. CreateRoom enforces the one-room-per-application
	// invariant with a unique constraint and reports ErrRoomExists on
	// violation.
	CreateRoom(ctx context.Context, applicationID, adopterID, shelterID uuid.UUID) (*models.Room, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	GetRoomByApplication(ctx context.Context, applicationID uuid.UUID) (*models.Room, error)
	CountRooms(ctx context.Context) (int64, error)
}
