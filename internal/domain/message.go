package domain

import "time"

// Category tags a transcript entry by what the text is, not who sent it.
type Category string

const (
	CategoryChat      Category = "chat"
	CategoryCommand   Category = "command"
	CategoryEvent     Category = "event"
	CategoryFileShare Category = "file_share"
	CategoryReaction  Category = "reaction"
)

// Message is one transcript entry. Append-only: never mutated, never removed.
type Message struct {
	ID             string    `json:"id"`
	RoomID         RoomID    `json:"roomId"`
	SenderID       UserID    `json:"senderId"`
	SenderUsername string    `json:"senderUsername"`
	Text           string    `json:"text"`
	Type           Category  `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
}
