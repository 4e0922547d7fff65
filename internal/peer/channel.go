package peer

import (
	"github.com/pion/webrtc/v4"
)

// Label names the single data channel every room uses.
const Label = "roomdrop"

// Channel adapts an open pion data channel to transfer.Channel.
type Channel struct {
	dc *webrtc.DataChannel
}

func (c *Channel) Send(data []byte) error     { return c.dc.Send(data) }
func (c *Channel) SendText(text string) error { return c.dc.SendText(text) }
func (c *Channel) BufferedAmount() uint64     { return c.dc.BufferedAmount() }
func (c *Channel) Label() string              { return c.dc.Label() }

// Frame is one inbound message. Text frames carry control messages and
// binary frames carry chunk bytes.
type Frame struct {
	Text bool
	Data []byte
}
