package room

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/BioHazard786/Roomdrop/internal/peer"
	"github.com/BioHazard786/Roomdrop/internal/signaling"
	"github.com/BioHazard786/Roomdrop/internal/testutil"
	"github.com/BioHazard786/Roomdrop/internal/transfer"
)

const timeout = 10 * time.Second

// fakeSession stands in for a WebRTC session. Its channel is opened by
// fakeLink.connect.
type fakeSession struct {
	role  peer.Role
	post  func(func())
	hooks SessionHooks
	state peer.State
}

func (s *fakeSession) Start() error {
	if s.role == peer.Offerer && s.state == peer.StateIdle {
		s.state = peer.StateLocalOfferCreated
	}
	return nil
}

func (s *fakeSession) Reset() error {
	s.state = peer.StateIdle
	return nil
}

func (s *fakeSession) Restart() error {
	s.Reset()
	return s.Start()
}

func (s *fakeSession) HandleSignal(signaling.Signal) error { return nil }
func (s *fakeSession) State() peer.State                   { return s.state }

func (s *fakeSession) Close() error {
	s.state = peer.StateClosed
	return nil
}

// fakeLink joins an offerer and an answerer session in memory. Binary
// frames past cut are silently lost.
type fakeLink struct {
	mu       sync.Mutex
	sessions map[peer.Role]*fakeSession
	cut      int
	sent     int
}

func newFakeLink() *fakeLink {
	return &fakeLink{sessions: make(map[peer.Role]*fakeSession), cut: -1}
}

func (l *fakeLink) factory(role peer.Role, _ peer.Signaler, post func(func()), hooks SessionHooks, _ *slog.Logger) (Session, error) {
	s := &fakeSession{role: role, post: post, hooks: hooks}
	l.mu.Lock()
	l.sessions[role] = s
	l.mu.Unlock()
	return s, nil
}

func (l *fakeLink) cutAfter(frames int) {
	l.mu.Lock()
	l.cut, l.sent = frames, 0
	l.mu.Unlock()
}

func (l *fakeLink) pair() (*fakeSession, *fakeSession) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessions[peer.Offerer], l.sessions[peer.Answerer]
}

func (l *fakeLink) connect() {
	a, b := l.pair()
	for _, p := range [][2]*fakeSession{{a, b}, {b, a}} {
		from, to := p[0], p[1]
		ch := &fakeChannel{link: l, to: to}
		from.post(func() {
			from.hooks.OnStatus(peer.StatusConnected)
			from.hooks.OnOpen(ch)
		})
	}
}

func (l *fakeLink) disconnect() {
	a, b := l.pair()
	for _, s := range []*fakeSession{a, b} {
		s.post(func() { s.hooks.OnStatus(peer.StatusDisconnected) })
	}
}

type fakeChannel struct {
	link *fakeLink
	to   *fakeSession
}

func (c *fakeChannel) Send(data []byte) error {
	c.link.mu.Lock()
	if c.link.cut >= 0 && c.link.sent >= c.link.cut {
		c.link.mu.Unlock()
		return nil
	}
	c.link.sent++
	c.link.mu.Unlock()

	frame := peer.Frame{Data: slices.Clone(data)}
	c.to.post(func() { c.to.hooks.OnMessage(frame) })
	return nil
}

func (c *fakeChannel) SendText(text string) error {
	frame := peer.Frame{Text: true, Data: []byte(text)}
	c.to.post(func() { c.to.hooks.OnMessage(frame) })
	return nil
}

func (c *fakeChannel) BufferedAmount() uint64 { return 0 }

// recorder is an Observer that keeps everything it is told.
type recorder struct {
	mu       sync.Mutex
	statuses []peer.Status
	jobs     map[string]transfer.Snapshot
	changes  []transfer.Snapshot
	clips    []string
}

func newRecorder() *recorder {
	return &recorder{jobs: make(map[string]transfer.Snapshot)}
}

func (r *recorder) RoomStatus(_ string, s peer.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recorder) JobChanged(_ string, s transfer.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[s.ID] = s
	r.changes = append(r.changes, s)
}

func (r *recorder) JobProgress(string, transfer.Progress) {}

func (r *recorder) ClipboardReceived(_ string, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clips = append(r.clips, content)
}

func (r *recorder) status() peer.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return peer.StatusConnecting
	}
	return r.statuses[len(r.statuses)-1]
}

func (r *recorder) job(id string) (transfer.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.jobs[id]
	return s, ok
}

// firstReceive returns the first announced incoming job.
func (r *recorder) firstReceive() (transfer.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.changes {
		if s.Direction == transfer.Receive {
			return s, true
		}
	}
	return transfer.Snapshot{}, false
}

func (r *recorder) count(id string, status transfer.Status) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.changes {
		if s.ID == id && s.Status == status {
			n++
		}
	}
	return n
}

func (r *recorder) waitStatus(t *testing.T, want peer.Status) {
	t.Helper()
	testutil.Eventually(t, timeout, func() bool { return r.status() == want }, "room never reached %v", want)
}

type memorySaver struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemorySaver() *memorySaver {
	return &memorySaver{files: make(map[string][]byte)}
}

func (s *memorySaver) Save(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = slices.Clone(data)
	return nil
}

func (s *memorySaver) get(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.files[name]
	return b, ok
}

type memoryClipboard struct {
	mu      sync.Mutex
	content string
	reads   int
	writes  int
}

func (c *memoryClipboard) Read() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	return c.content, nil
}

func (c *memoryClipboard) Write(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
	c.content = s
	return nil
}

func (c *memoryClipboard) set(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.content = s
}

func (c *memoryClipboard) stats() (content string, reads, writes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content, c.reads, c.writes
}

type testRoom struct {
	*Controller
	obs *recorder
}

func openRoom(t *testing.T, cfg Config) testRoom {
	t.Helper()
	obs := newRecorder()
	cfg.Observer = obs
	c, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open %s: %v", cfg.Role, err)
	}
	t.Cleanup(func() { c.Close(context.Background()) })
	return testRoom{Controller: c, obs: obs}
}

func snapshotJob(t *testing.T, c *Controller, id string) transfer.Snapshot {
	t.Helper()
	snap, err := c.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	for _, j := range snap.Jobs {
		if j.ID == id {
			return j
		}
	}
	return transfer.Snapshot{}
}
