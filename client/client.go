package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/mozzarellastix/SWE-App/internal/protocol"
)

// ErrClosed is returned when sending on a closed connection.
var ErrClosed = errors.New("connection closed")

// DialFunc opens the underlying network connection, e.g. through a tailnet.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Dialer opens chat connections to a relay server.
type Dialer struct {
	dialer *websocket.Dialer
}

// NewDialer creates a dialer. A nil dial uses the default network stack.
func NewDialer(dial DialFunc) *Dialer {
	d := &websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if dial != nil {
		d.NetDialContext = dial
	}
	return &Dialer{dialer: d}
}

// ChatURL builds the chat endpoint for counterpartID from a server base URL
// such as "https://chat.example.edu" or "localhost:8080".
func ChatURL(base string, counterpartID int64) (string, error) {
	base = strings.TrimSpace(base)
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = fmt.Sprintf("%s/ws/chat/%d/", strings.TrimSuffix(u.Path, "/"), counterpartID)
	return u.String(), nil
}

// Conn is an open chat with one counterpart.
type Conn struct {
	conn          *websocket.Conn
	counterpartID int64
	send          chan []byte
	messages      chan protocol.ChatOutbound
	done          chan struct{}
	closeOnce     sync.Once
}

// Dial connects to the chat room shared with counterpartID, authenticating
// with a session token.
func (d *Dialer) Dial(ctx context.Context, base string, counterpartID int64, token string) (*Conn, error) {
	wsURL, err := ChatURL(base, counterpartID)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := d.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s: %s: %w", wsURL, resp.Status, err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", wsURL, err)
	}

	c := &Conn{
		conn:          conn,
		counterpartID: counterpartID,
		send:          make(chan []byte, 256),
		messages:      make(chan protocol.ChatOutbound, 256),
		done:          make(chan struct{}),
	}

	// Start read/write pumps
	go c.writePump()
	go c.readPump()

	log.WithField("url", wsURL).Debug("Connected to chat")
	return c, nil
}

// Messages yields every frame broadcast to the room, including the caller's
// own messages. It is closed when the connection ends.
func (c *Conn) Messages() <-chan protocol.ChatOutbound {
	return c.messages
}

// Send posts a message to the counterpart.
func (c *Conn) Send(message string) error {
	data, err := json.Marshal(protocol.ChatInbound{
		Message:    &message,
		ReceiverID: &c.counterpartID,
	})
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// Close closes the connection. It is safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

func (c *Conn) readPump() {
	defer func() {
		close(c.messages)
		c.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Debug("Chat connection ended")
			}
			return
		}

		var msg protocol.ChatOutbound
		if err := json.Unmarshal(data, &msg); err != nil {
			log.WithError(err).Warn("Failed to parse chat frame")
			continue
		}
		select {
		case c.messages <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) writePump() {
	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.WithError(err).Warn("Failed to write chat frame")
				c.Close()
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(time.Second))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
