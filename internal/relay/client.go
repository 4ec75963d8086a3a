package relay

import (
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/mozzarellastix/SWE-App/internal/models"
)

// Client is one open connection joined to a room. The transport drains
// SendChan and writes each frame to the socket; a closed channel means the
// connection must be shut down.
type Client struct {
	id            uuid.UUID
	hub           *Hub
	user          *models.User
	counterpartID int64
	roomID        RoomID
	room          *room

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// ID identifies the connection in logs.
func (c *Client) ID() uuid.UUID {
	return c.id
}

// User returns the authenticated owner of the connection.
func (c *Client) User() *models.User {
	return c.user
}

// CounterpartID returns the user on the other side of the room.
func (c *Client) CounterpartID() int64 {
	return c.counterpartID
}

// RoomID returns the room the client joined.
func (c *Client) RoomID() RoomID {
	return c.roomID
}

// SendChan returns the client's outbound queue.
func (c *Client) SendChan() <-chan []byte {
	return c.send
}

// Close leaves the room and closes the outbound queue. Calling it again is a
// no-op.
func (c *Client) Close() {
	left := c.hub.leave(c)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	openConnections.Dec()

	if left {
		c.logger().Info("Client left room")
	}
}

type enqueueResult int

const (
	enqueued enqueueResult = iota
	// discarded means the client was already closed.
	discarded
	queueFull
)

// enqueue queues data without blocking.
func (c *Client) enqueue(data []byte) enqueueResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return discarded
	}
	select {
	case c.send <- data:
		return enqueued
	default:
		return queueFull
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) logger() *log.Entry {
	return log.WithFields(log.Fields{
		"client":  c.id,
		"room":    c.roomID,
		"user_id": c.user.ID,
	})
}
