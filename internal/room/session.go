package room

import (
	"log/slog"

	"github.com/BioHazard786/Roomdrop/internal/peer"
	"github.com/BioHazard786/Roomdrop/internal/signaling"
	"github.com/BioHazard786/Roomdrop/internal/transfer"
)

// Session is the part of peer.Session a room drives.
type Session interface {
	Start() error
	Reset() error
	Restart() error
	HandleSignal(sig signaling.Signal) error
	State() peer.State
	Close() error
}

// SessionHooks mirror peer.Hooks with the channel as a transfer.Channel.
type SessionHooks struct {
	OnStatus      func(peer.Status)
	OnOpen        func(transfer.Channel)
	OnMessage     func(peer.Frame)
	OnBufferedLow func()
}

// SessionFactory builds the session for a room. Hooks must be invoked
// through post.
type SessionFactory func(role peer.Role, signaler peer.Signaler, post func(func()), hooks SessionHooks, logger *slog.Logger) (Session, error)

// PeerSessions returns a factory for real WebRTC sessions.
func PeerSessions(cfg peer.Config) SessionFactory {
	return func(role peer.Role, signaler peer.Signaler, post func(func()), hooks SessionHooks, logger *slog.Logger) (Session, error) {
		h := peer.Hooks{
			OnStatus:      hooks.OnStatus,
			OnMessage:     hooks.OnMessage,
			OnBufferedLow: hooks.OnBufferedLow,
		}
		if hooks.OnOpen != nil {
			h.OnOpen = func(ch *peer.Channel) { hooks.OnOpen(ch) }
		}
		s, err := peer.New(role, cfg, signaler, post, h, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
