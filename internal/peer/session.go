package peer

import (
	"errors"
	"log/slog"

	"github.com/BioHazard786/Roomdrop/internal/signaling"
	"github.com/BioHazard786/Roomdrop/internal/transfer"
	"github.com/pion/webrtc/v4"
)

var ErrUnexpectedSignal = errors.New("unexpected signal")

// Signaler delivers handshake signals to the remote peer.
type Signaler interface {
	SendSignal(signaling.Signal) error
}

// Hooks are invoked on the owning room's executor.
type Hooks struct {
	OnStatus      func(Status)
	OnOpen        func(*Channel)
	OnMessage     func(Frame)
	OnBufferedLow func()
}

// Session runs the offer/answer handshake for one room and owns the
// resulting peer connection. Every method and hook runs on the executor
// passed as post; pion callbacks are marshalled onto it.
type Session struct {
	role     Role
	cfg      Config
	signaler Signaler
	post     func(func())
	hooks    Hooks
	logger   *slog.Logger

	pc     *webrtc.PeerConnection
	dc     *webrtc.DataChannel
	gen    int
	state  State
	status Status

	remoteSet bool
	pending   []webrtc.ICECandidateInit
}

// New builds an idle session. Call Start to begin the handshake.
func New(role Role, cfg Config, signaler Signaler, post func(func()), hooks Hooks, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		role:     role,
		cfg:      cfg,
		signaler: signaler,
		post:     post,
		hooks:    hooks,
		logger:   logger.With("component", "peer", "role", role.String()),
	}
	if err := s.build(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) Role() Role     { return s.role }
func (s *Session) State() State   { return s.state }
func (s *Session) Status() Status { return s.status }

// PendingCandidates is the number of remote candidates waiting for the
// remote description.
func (s *Session) PendingCandidates() int { return len(s.pending) }

func (s *Session) build() error {
	pc, err := s.cfg.newPeerConnection()
	if err != nil {
		return err
	}

	s.gen++
	gen := s.gen
	s.pc = pc
	s.dc = nil
	s.state = StateIdle
	s.status = StatusConnecting
	s.remoteSet = false
	s.pending = nil

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		cand := c.ToJSON()
		s.dispatch(gen, func() {
			if err := s.signaler.SendSignal(signaling.Candidate(cand)); err != nil {
				s.logger.Warn("send candidate", "error", err)
			}
		})
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.dispatch(gen, func() { s.onConnectionState(state) })
	})

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != Label {
			s.logger.Warn("ignoring unexpected data channel", "label", dc.Label())
			return
		}
		s.attach(gen, dc)
	})
	return nil
}

// dispatch runs fn on the executor unless the connection it came from has
// since been replaced or closed.
func (s *Session) dispatch(gen int, fn func()) {
	s.post(func() {
		if gen != s.gen || s.state == StateClosed {
			return
		}
		fn()
	})
}

// attach installs channel callbacks. It runs on a pion goroutine so the
// handlers are in place before the channel opens.
func (s *Session) attach(gen int, dc *webrtc.DataChannel) {
	dc.SetBufferedAmountLowThreshold(s.cfg.LowWaterMark)
	ch := &Channel{dc: dc}

	dc.OnOpen(func() {
		s.dispatch(gen, func() {
			s.dc = dc
			s.logger.Info("data channel open", "label", dc.Label())
			if s.hooks.OnOpen != nil {
				s.hooks.OnOpen(ch)
			}
		})
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		frame := Frame{Text: msg.IsString, Data: msg.Data}
		s.dispatch(gen, func() {
			if s.hooks.OnMessage != nil {
				s.hooks.OnMessage(frame)
			}
		})
	})
	dc.OnBufferedAmountLow(func() {
		s.dispatch(gen, func() {
			if s.hooks.OnBufferedLow != nil {
				s.hooks.OnBufferedLow()
			}
		})
	})
}

func (s *Session) onConnectionState(state webrtc.PeerConnectionState) {
	var status Status
	switch state {
	case webrtc.PeerConnectionStateConnected:
		status = StatusConnected
		if s.role == Answerer && s.state == StateLocalAnswerCreated {
			s.state = StateConnected
		}
	case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateClosed:
		status = StatusDisconnected
	case webrtc.PeerConnectionStateFailed:
		status = StatusFailed
	default:
		status = StatusConnecting
	}

	if status == s.status {
		return
	}
	s.status = status
	s.logger.Info("connection status", "status", status.String(), "pion_state", state.String())
	if s.hooks.OnStatus != nil {
		s.hooks.OnStatus(status)
	}
}

// Start begins the handshake. The offerer creates the data channel and
// sends an offer; the answerer waits for one.
func (s *Session) Start() error {
	if s.role == Answerer || s.state != StateIdle {
		return nil
	}

	ordered := true
	dc, err := s.pc.CreateDataChannel(Label, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return transfer.NewError("create data channel", err)
	}
	s.attach(s.gen, dc)

	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return transfer.NewError("create offer", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return transfer.NewError("set local description", err)
	}
	s.state = StateLocalOfferCreated

	if err := s.signaler.SendSignal(signaling.Offer(s.pc.LocalDescription().SDP)); err != nil {
		return transfer.NewError("send offer", err)
	}
	s.logger.Debug("offer sent")
	return nil
}

// Reset replaces the connection with a fresh idle one.
func (s *Session) Reset() error {
	if s.state == StateClosed {
		return transfer.ErrConnectionFailed
	}
	if err := s.pc.Close(); err != nil {
		s.logger.Debug("close replaced connection", "error", err)
	}
	return s.build()
}

// Restart resets the connection and, for the offerer, offers again.
func (s *Session) Restart() error {
	if err := s.Reset(); err != nil {
		return err
	}
	return s.Start()
}

// HandleSignal applies one remote handshake signal.
func (s *Session) HandleSignal(sig signaling.Signal) error {
	if s.state == StateClosed {
		return transfer.ErrConnectionFailed
	}

	switch sig.Type {
	case signaling.SignalOffer:
		return s.handleOffer(sig.SDP)
	case signaling.SignalAnswer:
		return s.handleAnswer(sig.SDP)
	case signaling.SignalCandidate:
		if sig.Candidate == nil {
			return transfer.WrapError("handle signal", ErrUnexpectedSignal, "candidate without payload")
		}
		return s.addCandidate(*sig.Candidate)
	default:
		return transfer.WrapError("handle signal", ErrUnexpectedSignal, sig.Type)
	}
}

func (s *Session) handleOffer(sdp string) error {
	if s.role != Answerer {
		return transfer.WrapError("handle offer", ErrUnexpectedSignal, "offerer received an offer")
	}
	if s.state != StateIdle {
		s.logger.Info("offer outside idle, rebuilding connection", "state", s.state.String())
		if err := s.Reset(); err != nil {
			return err
		}
	}

	if err := s.setRemote(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}); err != nil {
		return err
	}
	s.state = StateRemoteOfferReceived

	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return transfer.NewError("create answer", err)
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return transfer.NewError("set local description", err)
	}
	s.state = StateLocalAnswerCreated

	if err := s.signaler.SendSignal(signaling.Answer(s.pc.LocalDescription().SDP)); err != nil {
		return transfer.NewError("send answer", err)
	}
	s.logger.Debug("answer sent")
	return nil
}

func (s *Session) handleAnswer(sdp string) error {
	if s.role != Offerer || s.state != StateLocalOfferCreated {
		return transfer.WrapError("handle answer", ErrUnexpectedSignal, s.state.String())
	}
	if err := s.setRemote(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}); err != nil {
		return err
	}
	s.state = StateConnected
	return nil
}

// setRemote applies the remote description, then flushes every queued
// candidate in arrival order.
func (s *Session) setRemote(desc webrtc.SessionDescription) error {
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		return transfer.NewError("set remote description", err)
	}
	s.remoteSet = true

	pending := s.pending
	s.pending = nil
	for _, c := range pending {
		if err := s.pc.AddICECandidate(c); err != nil {
			s.logger.Warn("add queued candidate", "error", err)
		}
	}
	if len(pending) > 0 {
		s.logger.Debug("flushed queued candidates", "count", len(pending))
	}
	return nil
}

func (s *Session) addCandidate(c webrtc.ICECandidateInit) error {
	if !s.remoteSet {
		s.pending = append(s.pending, c)
		return nil
	}
	if err := s.pc.AddICECandidate(c); err != nil {
		return transfer.NewError("add ICE candidate", err)
	}
	return nil
}

// Close tears the connection down. The session cannot be reused.
func (s *Session) Close() error {
	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	if s.dc != nil {
		s.dc.Close()
	}
	if err := s.pc.Close(); err != nil {
		return transfer.NewError("close peer connection", err)
	}
	return nil
}
