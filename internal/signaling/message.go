package signaling

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

var (
	ErrMalformedEnvelope = errors.New("malformed relay envelope")
	ErrRelayUnavailable  = errors.New("relay unavailable")
	ErrClosed            = errors.New("subscription closed")
)

// Message types exchanged with the relay.
const (
	TypeJoinRoom  = "join-room"
	TypeLeaveRoom = "leave-room"
	TypeSignal    = "signal"

	TypeRoomJoined       = "room-joined"
	TypeUserConnected    = "user-connected"
	TypeUserDisconnected = "user-disconnected"
	TypeError            = "error"

	// TypeRelayError is raised locally when the relay connection drops. It
	// never travels over the wire.
	TypeRelayError = "relay-error"
)

// Signal types carried inside a signal envelope.
const (
	SignalOffer      = "offer"
	SignalAnswer     = "answer"
	SignalCandidate  = "candidate"
	SignalDisconnect = "disconnect"
)

// Message is one relay envelope. Every message except errors is scoped to a
// room.
type Message struct {
	Type   string  `json:"type"`
	RoomID string  `json:"roomId,omitempty"`
	Signal *Signal `json:"signal,omitempty"`
	Peers  int     `json:"peers,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Signal is the handshake payload forwarded verbatim between peers.
type Signal struct {
	Type      string                   `json:"type"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

func Offer(sdp string) Signal  { return Signal{Type: SignalOffer, SDP: sdp} }
func Answer(sdp string) Signal { return Signal{Type: SignalAnswer, SDP: sdp} }
func Disconnect() Signal       { return Signal{Type: SignalDisconnect} }

func Candidate(c webrtc.ICECandidateInit) Signal {
	return Signal{Type: SignalCandidate, Candidate: &c}
}

// Validate checks that a signal carries the field its type needs.
func (s *Signal) Validate() error {
	switch s.Type {
	case SignalOffer, SignalAnswer:
		if s.SDP == "" {
			return fmt.Errorf("%w: %s without sdp", ErrMalformedEnvelope, s.Type)
		}
	case SignalCandidate:
		if s.Candidate == nil {
			return fmt.Errorf("%w: candidate without payload", ErrMalformedEnvelope)
		}
	case SignalDisconnect:
	default:
		return fmt.Errorf("%w: signal type %q", ErrMalformedEnvelope, s.Type)
	}
	return nil
}

// Validate checks the envelope shape for the message type.
func (m *Message) Validate() error {
	switch m.Type {
	case TypeError, TypeRelayError:
		return nil
	case TypeJoinRoom, TypeLeaveRoom, TypeRoomJoined, TypeUserConnected, TypeUserDisconnected:
	case TypeSignal:
		if m.Signal == nil {
			return fmt.Errorf("%w: signal without payload", ErrMalformedEnvelope)
		}
		if err := m.Signal.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: type %q", ErrMalformedEnvelope, m.Type)
	}
	if m.RoomID == "" {
		return fmt.Errorf("%w: %s without roomId", ErrMalformedEnvelope, m.Type)
	}
	return nil
}

// Decode parses and validates one relay envelope.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}
