// Package identity resolves the two chat participants of an adoption
// application.
package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/franzhentze92/druma-chat/internal/models"
	"github.com/franzhentze92/druma-chat/internal/store"
)

// ErrParticipantsUnresolved means one or both chat parties could not be
// identified. Opening a room is a hard stop in that case.
var ErrParticipantsUnresolved = errors.New("cannot resolve both chat participants")

// Resolution names the two parties of an application's conversation.
type Resolution struct {
	Adopter  uuid.UUID
	Shelter  uuid.UUID
	Approved bool
}

// Source resolves an application reference to its two participants.
type Source interface {
	Resolve(ctx context.Context, applicationID uuid.UUID) (Resolution, error)
}

// StoreSource resolves participants from the persisted application record.
type StoreSource struct {
	db store.DataStore
}

// NewStoreSource creates a Source backed by the application store.
func NewStoreSource(db store.DataStore) *StoreSource {
	return &StoreSource{db: db}
}

// Resolve looks up the application and returns its adopter and shelter.
func (s *StoreSource) Resolve(ctx context.Context, applicationID uuid.UUID) (Resolution, error) {
	app, err := s.db.GetApplication(ctx, applicationID)
	if err != nil {
		return Resolution{}, err
	}
	if app == nil || app.AdopterID == nil || app.ShelterID == nil {
		return Resolution{}, ErrParticipantsUnresolved
	}
	return Resolution{
		Adopter:  *app.AdopterID,
		Shelter:  *app.ShelterID,
		Approved: app.Status == models.StatusApproved,
	}, nil
}
