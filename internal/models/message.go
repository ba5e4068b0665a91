package models

// Message kinds.
const (
	KindText   = "text"
	KindSystem = "system"
)

// Message represents a chat message stored in Redis.
type Message struct {
	ID        string `json:"id"` // ULID, server-assigned
	RoomID    string `json:"room_id"`
	SenderID  string `json:"from"` // Participant UUID
	Body      string `json:"body"`
	Kind      string `json:"kind"`              // "text" or "system"
	Tag       string `json:"tag,omitempty"`     // Client correlation tag, echoed on the push copy
	Timestamp int64  `json:"ts"`                // Unix ms
	ReadAt    int64  `json:"read_at,omitempty"` // Counterpart cursor position, 0 while unread
}
