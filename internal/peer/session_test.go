package peer

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BioHazard786/Roomdrop/internal/signaling"
	"github.com/BioHazard786/Roomdrop/internal/testutil"
)

const timeout = 10 * time.Second

// executor runs posted tasks one at a time, like a room's run loop.
type executor struct {
	tasks chan func()
	done  chan struct{}
}

func newExecutor(t *testing.T) *executor {
	e := &executor{tasks: make(chan func(), 1024), done: make(chan struct{})}
	go func() {
		for {
			select {
			case fn := <-e.tasks:
				fn()
			case <-e.done:
				return
			}
		}
	}()
	t.Cleanup(func() { close(e.done) })
	return e
}

func (e *executor) post(fn func()) { e.tasks <- fn }

// call runs fn on the executor and waits for it.
func (e *executor) call(fn func()) {
	done := make(chan struct{})
	e.post(func() {
		fn()
		close(done)
	})
	<-done
}

// holdingSignaler records signals until release, then forwards live.
type holdingSignaler struct {
	mu      sync.Mutex
	held    []signaling.Signal
	forward func(signaling.Signal)
}

func (h *holdingSignaler) SendSignal(sig signaling.Signal) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.forward != nil {
		h.forward(sig)
		return nil
	}
	h.held = append(h.held, sig)
	return nil
}

func (h *holdingSignaler) release(forward func(signaling.Signal)) []signaling.Signal {
	h.mu.Lock()
	defer h.mu.Unlock()
	held := h.held
	h.held = nil
	h.forward = forward
	return held
}

func (h *holdingSignaler) count(kind string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, s := range h.held {
		if s.Type == kind {
			n++
		}
	}
	return n
}

type signalerFunc func(signaling.Signal) error

func (f signalerFunc) SendSignal(s signaling.Signal) error { return f(s) }

type endpoint struct {
	exec     *executor
	session  *Session
	statuses chan Status
	opened   chan *Channel
	frames   chan Frame
}

func newEndpoint(t *testing.T, role Role, sig Signaler) *endpoint {
	t.Helper()
	ep := &endpoint{
		exec:     newExecutor(t),
		statuses: make(chan Status, 16),
		opened:   make(chan *Channel, 1),
		frames:   make(chan Frame, 16),
	}
	hooks := Hooks{
		OnStatus:  func(s Status) { ep.statuses <- s },
		OnOpen:    func(c *Channel) { ep.opened <- c },
		OnMessage: func(f Frame) { ep.frames <- f },
	}
	s, err := New(role, Config{IncludeLoopback: true, LowWaterMark: 1 << 20}, sig, ep.exec.post, hooks, nil)
	if err != nil {
		t.Fatalf("New %s: %v", role, err)
	}
	ep.session = s
	t.Cleanup(func() { ep.exec.call(func() { s.Close() }) })
	return ep
}

func (ep *endpoint) waitStatus(t *testing.T, want Status) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case s := <-ep.statuses:
			if s == want {
				return
			}
		case <-deadline:
			t.Fatalf("status %v not reached", want)
		}
	}
}

func TestHandshakeQueuesEarlyCandidates(t *testing.T) {
	offerSide := &holdingSignaler{}
	var answerer *endpoint
	offerer := newEndpoint(t, Offerer, offerSide)

	answerer = newEndpoint(t, Answerer, signalerFunc(func(sig signaling.Signal) error {
		offerer.exec.post(func() {
			if err := offerer.session.HandleSignal(sig); err != nil {
				t.Errorf("offerer HandleSignal %s: %v", sig.Type, err)
			}
		})
		return nil
	}))

	offerer.exec.call(func() {
		if err := offerer.session.Start(); err != nil {
			t.Errorf("Start: %v", err)
			return
		}
		if got := offerer.session.State(); got != StateLocalOfferCreated {
			t.Errorf("offerer state %v", got)
		}
	})
	testutil.Eventually(t, timeout, func() bool { return offerSide.count(signaling.SignalCandidate) > 0 },
		"offerer gathered no candidates")

	forward := func(sig signaling.Signal) {
		answerer.exec.post(func() {
			if err := answerer.session.HandleSignal(sig); err != nil {
				t.Errorf("answerer HandleSignal %s: %v", sig.Type, err)
			}
		})
	}
	held := offerSide.release(forward)

	// Candidates reach the answerer before the offer they belong to.
	var offer signaling.Signal
	answerer.exec.call(func() {
		queued := 0
		for _, sig := range held {
			if sig.Type == signaling.SignalOffer {
				offer = sig
				continue
			}
			if err := answerer.session.HandleSignal(sig); err != nil {
				t.Errorf("early candidate: %v", err)
				return
			}
			queued++
		}
		if got := answerer.session.PendingCandidates(); got != queued {
			t.Errorf("pending %d, want %d", got, queued)
		}
		if got := answerer.session.State(); got != StateIdle {
			t.Errorf("answerer state %v before offer", got)
		}

		if err := answerer.session.HandleSignal(offer); err != nil {
			t.Errorf("offer: %v", err)
			return
		}
		if got := answerer.session.PendingCandidates(); got != 0 {
			t.Errorf("%d candidates left after remote description", got)
		}
		if got := answerer.session.State(); got != StateLocalAnswerCreated {
			t.Errorf("answerer state %v after offer", got)
		}
	})

	offerer.waitStatus(t, StatusConnected)
	answerer.waitStatus(t, StatusConnected)

	out := testutil.RequireReceive(t, offerer.opened, timeout, "offerer channel")
	testutil.RequireReceive(t, answerer.opened, timeout, "answerer channel")
	if out.Label() != Label {
		t.Fatalf("label %q", out.Label())
	}

	offerer.exec.call(func() {
		if got := offerer.session.State(); got != StateConnected {
			t.Errorf("offerer state %v", got)
		}
		if err := out.SendText(`{"type":"chunk-start","id":"abcd1234"}`); err != nil {
			t.Errorf("SendText: %v", err)
		}
		if err := out.Send([]byte{1, 2, 3}); err != nil {
			t.Errorf("Send: %v", err)
		}
	})

	text := testutil.RequireReceive(t, answerer.frames, timeout)
	if !text.Text || string(text.Data) != `{"type":"chunk-start","id":"abcd1234"}` {
		t.Fatalf("text frame %+v", text)
	}
	bin := testutil.RequireReceive(t, answerer.frames, timeout)
	if bin.Text || len(bin.Data) != 3 {
		t.Fatalf("binary frame %+v", bin)
	}

	answerer.exec.call(func() {
		if got := answerer.session.State(); got != StateConnected {
			t.Errorf("answerer state %v", got)
		}
	})
}

func TestUnexpectedSignals(t *testing.T) {
	offerer := newEndpoint(t, Offerer, signalerFunc(func(signaling.Signal) error { return nil }))
	answerer := newEndpoint(t, Answerer, signalerFunc(func(signaling.Signal) error { return nil }))

	offerer.exec.call(func() {
		if err := offerer.session.HandleSignal(signaling.Answer("v=0")); !errors.Is(err, ErrUnexpectedSignal) {
			t.Errorf("answer before offer: %v", err)
		}
		if err := offerer.session.HandleSignal(signaling.Offer("v=0")); !errors.Is(err, ErrUnexpectedSignal) {
			t.Errorf("offer to offerer: %v", err)
		}
		if err := offerer.session.HandleSignal(signaling.Signal{Type: "teleport"}); !errors.Is(err, ErrUnexpectedSignal) {
			t.Errorf("unknown signal: %v", err)
		}
	})

	answerer.exec.call(func() {
		if err := answerer.session.Start(); err != nil {
			t.Errorf("answerer Start: %v", err)
		}
		if got := answerer.session.State(); got != StateIdle {
			t.Errorf("answerer left idle on Start: %v", got)
		}
		answerer.session.Close()
		if err := answerer.session.HandleSignal(signaling.Offer("v=0")); err == nil {
			t.Error("closed session accepted a signal")
		}
	})
}
