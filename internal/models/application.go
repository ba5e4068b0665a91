package models

import (
	"time"

	"github.com/google/uuid"
)

// Application statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Application is an adoption application linking an adopter to a shelter's pet.
// It is the identity source for the chat room participants.
type Application struct {
	ID        uuid.UUID  `json:"id"`
	PetID     uuid.UUID  `json:"pet_id"`
	AdopterID *uuid.UUID `json:"adopter_id,omitempty"`
	ShelterID *uuid.UUID `json:"shelter_id,omitempty"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
