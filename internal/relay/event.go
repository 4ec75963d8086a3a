package relay

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mozzarellastix/SWE-App/internal/models"
	"github.com/mozzarellastix/SWE-App/internal/protocol"
)

// EventKind tags what a room broadcast carries.
type EventKind int

const (
	// KindChat is a persisted chat message.
	KindChat EventKind = iota + 1
)

func (k EventKind) String() string {
	switch k {
	case KindChat:
		return "chat_message"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one broadcast to every member of a room.
type Event interface {
	Kind() EventKind
}

// ChatEvent announces a message that has already been stored.
type ChatEvent struct {
	Message *models.ChatMessage
	Sender  *models.User
}

// Kind implements Event.
func (ChatEvent) Kind() EventKind { return KindChat }

// encodeEvent renders evt as the outbound text frame for its kind.
func encodeEvent(evt Event, loc *time.Location) ([]byte, error) {
	switch e := evt.(type) {
	case ChatEvent:
		return json.Marshal(protocol.ChatOutbound{
			Message:        e.Message.Content,
			SenderUsername: e.Sender.Username,
			SenderID:       e.Sender.ID,
			Timestamp:      e.Message.CreatedAt.In(loc).Format(protocol.TimestampLayout),
		})
	default:
		return nil, fmt.Errorf("no encoder for event kind %v", evt.Kind())
	}
}
