package protocol

import (
	"encoding/json"

	"github.com/mozzarellastix/SWE-App/internal/models"
)

// TimestampLayout renders a message's creation time on outbound chat frames,
// e.g. "Mar 04, 02:15 PM".
const TimestampLayout = "Jan 02, 03:04 PM"

// ChatInbound is the text frame a client sends to post a message.
// Pointer fields let validation tell a missing field from a zero value.
type ChatInbound struct {
	Message    *string `json:"message" validate:"required,min=1"`
	ReceiverID *int64  `json:"receiver_id" validate:"required"`
}

// ChatOutbound is the text frame every room member receives per relayed message.
type ChatOutbound struct {
	Message        string `json:"message"`
	SenderUsername string `json:"sender_username"`
	SenderID       int64  `json:"sender_id"`
	Timestamp      string `json:"timestamp"`
}

// ParseChatInbound decodes a raw inbound frame. It does not validate fields.
func ParseChatInbound(data []byte) (*ChatInbound, error) {
	var msg ChatInbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// RegisterRequest is the body of POST /api/register.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,alphanum,min=3,max=150"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	User  models.User `json:"user"`
	Token string      `json:"token"`
}

// HistoryResponse is returned by GET /api/messages/{user_id}.
type HistoryResponse struct {
	CounterpartID int64                `json:"counterpart_id"`
	Messages      []models.ChatMessage `json:"messages"`
	HasMore       bool                 `json:"has_more"` // True if older messages exist
}

// ReadResponse is returned by POST /api/messages/{user_id}/read.
type ReadResponse struct {
	Marked int64 `json:"marked"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeNotFound     = "not_found"
	ErrCodeInvalid      = "invalid_request"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
)
