package transfer

import (
	"github.com/BioHazard786/Roomdrop/internal/protocol"
)

// Channel is the ordered direct channel a room transfers over. Binary
// frames carry chunk bytes; text frames carry control messages.
type Channel interface {
	Send(data []byte) error
	SendText(text string) error
	BufferedAmount() uint64
}

// SendControl encodes m and writes it as a text frame.
func SendControl(ch Channel, m protocol.Message) error {
	if ch == nil {
		return ErrChannelNotOpen
	}
	text, err := protocol.Encode(m)
	if err != nil {
		return NewError("encode "+m.Type, err)
	}
	if err := ch.SendText(text); err != nil {
		return NewError("send "+m.Type, err)
	}
	return nil
}
