// Package protocol defines the control frames exchanged on a room's direct
// channel. Control frames travel as text messages; raw binary messages on
// the same channel are file chunks.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Control message types.
const (
	TypeMeta           = "meta"
	TypeRequestFile    = "request-file"
	TypeChunkStart     = "chunk-start"
	TypeChunkAbort     = "chunk-abort"
	TypeCancelTransfer = "cancel-transfer"
	TypeClipboard      = "clipboard"
)

var (
	ErrMalformed   = errors.New("malformed control message")
	ErrUnknownType = errors.New("unknown control message type")
)

// Message is the tagged union of every control frame. Only the fields that
// belong to Type are populated.
type Message struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Size    int64  `json:"size"`
	Offset  int64  `json:"offset"`
	Content string `json:"content,omitempty"`
}

func Meta(id, name string, size int64) Message {
	return Message{Type: TypeMeta, ID: id, Name: name, Size: size}
}

func RequestFile(id string, offset int64) Message {
	return Message{Type: TypeRequestFile, ID: id, Offset: offset}
}

func ChunkStart(id string) Message {
	return Message{Type: TypeChunkStart, ID: id}
}

// ChunkAbort tells the receiver that the stream for id stopped early on the
// sending side. The job stays resumable from whatever arrived.
func ChunkAbort(id string) Message {
	return Message{Type: TypeChunkAbort, ID: id}
}

func CancelTransfer(id string) Message {
	return Message{Type: TypeCancelTransfer, ID: id}
}

func Clipboard(content string) Message {
	return Message{Type: TypeClipboard, Content: content}
}

// MarshalJSON writes size and offset only on the frames that carry them,
// zero values included.
func (m Message) MarshalJSON() ([]byte, error) {
	type plain Message
	w := struct {
		plain
		Size   *int64 `json:"size,omitempty"`
		Offset *int64 `json:"offset,omitempty"`
	}{plain: plain(m)}
	switch m.Type {
	case TypeMeta:
		w.Size = &m.Size
	case TypeRequestFile:
		w.Offset = &m.Offset
	}
	return json.Marshal(w)
}

// Encode renders m as the text payload of a control frame.
func Encode(m Message) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", m.Type, err)
	}
	return string(b), nil
}

// Decode parses a control frame. Unknown types return ErrUnknownType so the
// caller can log and skip them.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Validate checks that the fields required by m.Type are present.
func (m Message) Validate() error {
	switch m.Type {
	case TypeMeta:
		if m.ID == "" || m.Name == "" || m.Size < 0 {
			return fmt.Errorf("%w: meta needs id, name and a non-negative size", ErrMalformed)
		}
	case TypeRequestFile:
		if m.ID == "" || m.Offset < 0 {
			return fmt.Errorf("%w: request-file needs id and a non-negative offset", ErrMalformed)
		}
	case TypeChunkStart, TypeChunkAbort, TypeCancelTransfer:
		if m.ID == "" {
			return fmt.Errorf("%w: %s needs id", ErrMalformed, m.Type)
		}
	case TypeClipboard:
	case "":
		return fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
	return nil
}
