package room

import (
	"errors"

	"github.com/BioHazard786/Roomdrop/internal/peer"
	"github.com/BioHazard786/Roomdrop/internal/transfer"
)

var (
	ErrClosed   = errors.New("room closed")
	ErrNotFound = errors.New("room not found")
)

// Observer is told about everything a UI renders. Calls arrive on the
// room's executor, so implementations must return quickly and must not call
// back into the room synchronously.
type Observer interface {
	RoomStatus(roomID string, status peer.Status)
	JobChanged(roomID string, job transfer.Snapshot)
	JobProgress(roomID string, p transfer.Progress)
	ClipboardReceived(roomID, content string)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) RoomStatus(string, peer.Status)        {}
func (NopObserver) JobChanged(string, transfer.Snapshot)  {}
func (NopObserver) JobProgress(string, transfer.Progress) {}
func (NopObserver) ClipboardReceived(string, string)      {}

// Clipboard is the local clipboard.
type Clipboard interface {
	Read() (string, error)
	Write(content string) error
}

// jobObserver tags transfer events with the room they belong to.
type jobObserver struct {
	roomID   string
	observer Observer
}

func (o jobObserver) JobChanged(s transfer.Snapshot)  { o.observer.JobChanged(o.roomID, s) }
func (o jobObserver) JobProgress(p transfer.Progress) { o.observer.JobProgress(o.roomID, p) }
