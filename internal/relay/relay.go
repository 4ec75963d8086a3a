package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/mozzarellastix/SWE-App/internal/db"
	"github.com/mozzarellastix/SWE-App/internal/models"
	"github.com/mozzarellastix/SWE-App/internal/protocol"
)

const defaultQueueSize = 256

var (
	// ErrInvalidPayload is returned for frames that do not decode to a
	// message with a receiver.
	ErrInvalidPayload = errors.New("invalid chat payload")
	// ErrUnknownReceiver is returned when receiver_id names no user.
	ErrUnknownReceiver = errors.New("unknown receiver")
	// ErrPersist is returned when the message could not be stored. Nothing is
	// broadcast in that case.
	ErrPersist = errors.New("failed to store message")
	// ErrClosed is returned for frames read from a connection that has
	// already left its room. Nothing is stored.
	ErrClosed = errors.New("client closed")
)

var validate = validator.New()

// MessageStore durably records chat messages.
type MessageStore interface {
	CreateMessage(ctx context.Context, senderID, receiverID int64, content string) (*models.ChatMessage, error)
}

// UserDirectory resolves user IDs.
type UserDirectory interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

// Option configures a Relay.
type Option func(*Relay)

// WithQueueSize sets how many outbound frames a member may have pending before
// it is considered too slow and evicted.
func WithQueueSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.queueSize = n
		}
	}
}

// WithLocation sets the time zone used to render outbound timestamps.
func WithLocation(loc *time.Location) Option {
	return func(r *Relay) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// Relay joins connections into per-pair rooms and fans out every stored
// message to the members of the sender's room.
type Relay struct {
	hub       *Hub
	store     MessageStore
	users     UserDirectory
	queueSize int
	loc       *time.Location
}

// New creates a relay over its own room registry.
func New(store MessageStore, users UserDirectory, opts ...Option) *Relay {
	r := &Relay{
		hub:       NewHub(),
		store:     store,
		users:     users,
		queueSize: defaultQueueSize,
		loc:       time.UTC,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Hub exposes the room registry for inspection.
func (r *Relay) Hub() *Hub {
	return r.hub
}

// Open joins an authenticated user's new connection to the room it shares
// with counterpartID.
func (r *Relay) Open(identity *models.User, counterpartID int64) *Client {
	c := &Client{
		id:            uuid.New(),
		hub:           r.hub,
		user:          identity,
		counterpartID: counterpartID,
		roomID:        CanonicalRoomID(identity.ID, counterpartID),
		send:          make(chan []byte, r.queueSize),
	}
	c.room = r.hub.join(c)
	openConnections.Inc()
	c.logger().WithField("counterpart_id", counterpartID).Info("Client joined room")
	return c
}

// Receive handles one inbound frame from c: it validates the payload, stores
// the message and then broadcasts it to every current member of c's room,
// c included. Nothing is broadcast unless the store succeeded. Errors never
// close the connection.
func (r *Relay) Receive(ctx context.Context, c *Client, raw []byte) error {
	if c.isClosed() {
		return ErrClosed
	}

	in, err := protocol.ParseChatInbound(raw)
	if err != nil {
		framesDropped.WithLabelValues(reasonInvalid).Inc()
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := validate.Struct(in); err != nil {
		framesDropped.WithLabelValues(reasonInvalid).Inc()
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	receiver, err := r.users.GetUser(ctx, *in.ReceiverID)
	if errors.Is(err, db.ErrNotFound) {
		framesDropped.WithLabelValues(reasonUnknownReceiver).Inc()
		return fmt.Errorf("%w: %d", ErrUnknownReceiver, *in.ReceiverID)
	}
	if err != nil {
		framesDropped.WithLabelValues(reasonPersist).Inc()
		return fmt.Errorf("%w: lookup receiver %d: %v", ErrPersist, *in.ReceiverID, err)
	}

	c.room.seq.Lock()
	defer c.room.seq.Unlock()

	// Eviction happens under the same lock, so a member still open here is
	// still in the room the broadcast goes to.
	if c.isClosed() {
		return ErrClosed
	}

	msg, err := r.store.CreateMessage(ctx, c.user.ID, receiver.ID, *in.Message)
	if err != nil {
		framesDropped.WithLabelValues(reasonPersist).Inc()
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	messagesRelayed.Inc()

	r.broadcast(c.room, ChatEvent{Message: msg, Sender: c.user})
	return nil
}

// broadcast delivers evt once to every member of rm at the time of the call.
func (r *Relay) broadcast(rm *room, evt Event) {
	data, err := encodeEvent(evt, r.loc)
	if err != nil {
		log.WithError(err).WithField("room", rm.id).Error("Failed to encode event")
		return
	}
	for _, member := range r.hub.snapshot(rm) {
		r.deliver(member, data)
	}
}

// deliver queues one frame for member. A member whose queue is full is
// evicted rather than allowed to stall the room.
func (r *Relay) deliver(member *Client, data []byte) {
	switch member.enqueue(data) {
	case enqueued:
		framesDelivered.Inc()
		return
	case discarded:
		return
	}
	slowEvictions.Inc()
	member.logger().Warn("Outbound queue full, disconnecting client")
	member.Close()
}
