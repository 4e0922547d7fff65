package relay

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. SDP fits comfortably.
	maxMessageSize = 64 * 1024

	sendBufferSize = 256
)

// Client is one websocket connection to the relay. A connection may sit in
// several rooms at once.
type Client struct {
	ID string

	hub  *Hub
	conn *websocket.Conn
	send chan *Message

	// rooms is owned by the hub goroutine.
	rooms map[string]struct{}

	logger *slog.Logger
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	id := uuid.NewString()
	return &Client{
		ID:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan *Message, sendBufferSize),
		rooms:  make(map[string]struct{}),
		logger: hub.logger.With("client", id),
	}
}

// readPump moves messages from the websocket to the hub. It is the only
// reader on the connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("read failed", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("dropping malformed message", "error", err)
			continue
		}
		msg.client = c
		if !c.hub.submit(&msg) {
			return
		}
	}
}

// writePump moves messages from the hub to the websocket. It is the only
// writer on the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn("write failed", "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
