package models

import "time"

// ChatMessage is a direct message between two users. It is written once by the
// relay; only IsRead changes afterwards.
type ChatMessage struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	IsRead     bool      `json:"is_read"`
}

// Conversation summarizes the exchange with one counterpart.
type Conversation struct {
	Counterpart User        `json:"counterpart"`
	LastMessage ChatMessage `json:"last_message"`
	UnreadCount int         `json:"unread_count"`
}
