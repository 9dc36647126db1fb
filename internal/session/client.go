package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"roomsync/internal/models"
)

// Client is one live connection. The ID is assigned server-side and is the
// connection identity used for presence tracking; the username is an opaque
// display label supplied by the client and may change on a re-join, so it is
// guarded by the client mutex.
type Client struct {
	ID       string
	JoinedAt time.Time

	Conn *websocket.Conn

	mu       sync.Mutex
	username string
	hook     func(models.WSFrame)
}

func NewClient(conn *websocket.Conn, username string) *Client {
	return &Client{
		ID:       uuid.New().String(),
		JoinedAt: time.Now(),
		Conn:     conn,
		username: username,
	}
}

func (c *Client) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

func (c *Client) SetUsername(username string) {
	c.mu.Lock()
	c.username = username
	c.mu.Unlock()
}

// SetSendHook replaces the default WebSocket sender (used in tests).
func (c *Client) SetSendHook(fn func(models.WSFrame)) {
	c.mu.Lock()
	c.hook = fn
	c.mu.Unlock()
}

func (c *Client) Send(frame models.WSFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hook != nil {
		c.hook(frame)
		return
	}
	if c.Conn == nil {
		return
	}
	_ = c.Conn.WriteJSON(frame)
}

func (c *Client) Participant() models.Participant {
	return models.Participant{
		ConnectionID: c.ID,
		Username:     c.Username(),
		JoinedAt:     c.JoinedAt,
	}
}
