// Package relay is the rendezvous server. It tracks which connections sit
// in which room and fans signals out between them.
package relay

import (
	"context"
	"log/slog"

	"github.com/gorilla/websocket"
)

// RoomCapacity is the most members a room admits.
const RoomCapacity = 2

// Hub is the single goroutine that owns every room and client.
type Hub struct {
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	inbound    chan *Message
	done       chan struct{}

	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan *Message),
		done:       make(chan struct{}),
		logger:     logger.With("component", "relay"),
	}
}

// Serve attaches a websocket connection to the hub and starts its pumps.
func (h *Hub) Serve(conn *websocket.Conn) {
	c := newClient(h, conn)
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

func (h *Hub) submit(m *Message) bool {
	select {
	case h.inbound <- m:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Run processes registrations and messages until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for c := range h.clients {
			close(c.send)
		}
		h.clients = nil
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			c.logger.Debug("client registered")

		case c := <-h.unregister:
			h.remove(c)

		case m := <-h.inbound:
			if _, ok := h.clients[m.client]; !ok {
				continue
			}
			h.handle(m)
		}
	}
}

func (h *Hub) handle(m *Message) {
	c := m.client
	switch m.Type {
	case TypeJoinRoom:
		h.join(c, m.RoomID)

	case TypeLeaveRoom:
		if _, ok := c.rooms[m.RoomID]; ok {
			h.depart(c, m.RoomID)
		}

	case TypeSignal:
		members := h.rooms[m.RoomID]
		if _, in := members[c]; !in {
			h.deliver(c, errorMessage(m.RoomID, "not in room"))
			return
		}
		out := &Message{Type: TypeSignal, RoomID: m.RoomID, Signal: m.Signal}
		for other := range members {
			if other != c {
				h.deliver(other, out)
			}
		}

	default:
		c.logger.Debug("unknown message type", "type", m.Type)
		h.deliver(c, errorMessage(m.RoomID, "unknown message type"))
	}
}

func (h *Hub) join(c *Client, roomID string) {
	if roomID == "" {
		h.deliver(c, errorMessage("", "missing roomId"))
		return
	}

	members := h.rooms[roomID]
	if _, ok := members[c]; ok {
		h.deliver(c, &Message{Type: TypeRoomJoined, RoomID: roomID, Peers: len(members) - 1})
		return
	}
	if len(members) >= RoomCapacity {
		c.logger.Info("join rejected, room full", "room", roomID)
		h.deliver(c, errorMessage(roomID, "room is full"))
		return
	}
	if members == nil {
		members = make(map[*Client]struct{})
		h.rooms[roomID] = members
	}

	peers := len(members)
	for other := range members {
		h.deliver(other, &Message{Type: TypeUserConnected, RoomID: roomID})
	}
	members[c] = struct{}{}
	c.rooms[roomID] = struct{}{}
	c.logger.Info("joined room", "room", roomID, "peers", peers)
	h.deliver(c, &Message{Type: TypeRoomJoined, RoomID: roomID, Peers: peers})
}

// depart removes c from one room and tells whoever is left.
func (h *Hub) depart(c *Client, roomID string) {
	delete(c.rooms, roomID)
	members := h.rooms[roomID]
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, roomID)
		h.logger.Debug("room deleted", "room", roomID)
		return
	}
	for other := range members {
		h.deliver(other, &Message{Type: TypeUserDisconnected, RoomID: roomID})
	}
}

func (h *Hub) remove(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	for roomID := range c.rooms {
		h.depart(c, roomID)
	}
	c.logger.Debug("client unregistered")
}

// deliver queues m for c. A client that cannot keep up is dropped.
func (h *Hub) deliver(c *Client, m *Message) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- m:
	default:
		c.logger.Warn("send buffer full, dropping client")
		h.remove(c)
	}
}
