package models

import (
	"time"

	"github.com/google/uuid"
)

// Room is the conversation context tied to one adoption application.
// At most one room exists per application; rooms are immutable after creation.
type Room struct {
	ID            uuid.UUID `json:"id"`
	ApplicationID uuid.UUID `json:"application_id"`
	AdopterID     uuid.UUID `json:"adopter_id"`
	ShelterID     uuid.UUID `json:"shelter_id"`
	CreatedAt     time.Time `json:"created_at"`
}
