package relay

import "encoding/json"

// Message types understood by the hub.
const (
	TypeJoinRoom  = "join-room"
	TypeLeaveRoom = "leave-room"
	TypeSignal    = "signal"

	TypeRoomJoined       = "room-joined"
	TypeUserConnected    = "user-connected"
	TypeUserDisconnected = "user-disconnected"
	TypeError            = "error"
)

// Message is one websocket envelope. Signal payloads are forwarded as raw
// JSON and never interpreted.
type Message struct {
	Type   string          `json:"type"`
	RoomID string          `json:"roomId,omitempty"`
	Signal json.RawMessage `json:"signal,omitempty"`
	Peers  int             `json:"peers,omitempty"`
	Error  string          `json:"error,omitempty"`

	// client is the sender, set by the read pump and never serialized.
	client *Client
}

func errorMessage(roomID, text string) *Message {
	return &Message{Type: TypeError, RoomID: roomID, Error: text}
}
