// Package room ties one relay subscription, one peer session and the
// transfer engine and sink of a room together on a single executor.
package room

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/BioHazard786/Roomdrop/internal/clock"
	"github.com/BioHazard786/Roomdrop/internal/peer"
	"github.com/BioHazard786/Roomdrop/internal/protocol"
	"github.com/BioHazard786/Roomdrop/internal/signaling"
	"github.com/BioHazard786/Roomdrop/internal/transfer"
)

// DefaultClipboardInterval is how often the clipboard is polled while sync
// is enabled.
const DefaultClipboardInterval = time.Second

// Bounds for re-joining a relay room that refused us after a reconnect.
const (
	minRejoinDelay = time.Second
	maxRejoinDelay = 30 * time.Second
)

// Config describes one room. Relay and NewSession are required.
type Config struct {
	ID         string
	Role       peer.Role
	Relay      signaling.Relay
	NewSession SessionFactory

	Transfer transfer.Options
	Policy   transfer.SlotPolicy
	Chooser  transfer.Chooser
	Saver    transfer.Saver

	Clipboard         Clipboard
	ClipboardInterval time.Duration

	Clock    clock.Clock
	Observer Observer
	Logger   *slog.Logger
}

// Snapshot is a point-in-time view of a room.
type Snapshot struct {
	ID     string
	Role   peer.Role
	Status peer.Status
	Jobs   []transfer.Snapshot
}

// Controller owns a room. Its exported methods are UI intents: each one is
// run on the room's executor and waits for the result.
type Controller struct {
	id       string
	role     peer.Role
	exec     *executor
	sub      *signaling.Subscription
	session  Session
	engine   *transfer.Engine
	sink     *transfer.Sink
	observer Observer
	clock    clock.Clock
	logger   *slog.Logger

	ch          transfer.Channel
	attached    bool
	status      peer.Status
	peerPresent bool
	closed      bool
	quit        chan struct{}

	joined        bool
	rejoinDelay   time.Duration
	rejoinPending bool

	clipboard    Clipboard
	clipInterval time.Duration
	clipTicker   *clock.Ticker
	clipStop     chan struct{}
	lastClip     string
}

// Open joins the room on the relay and starts its executor. The offerer
// sends its offer as soon as the relay reports the other peer.
func Open(ctx context.Context, cfg Config) (*Controller, error) {
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.ClipboardInterval <= 0 {
		cfg.ClipboardInterval = DefaultClipboardInterval
	}

	sub, err := cfg.Relay.Subscribe(ctx, cfg.ID)
	if err != nil {
		return nil, transfer.NewError("join room "+cfg.ID, err)
	}

	logger := cfg.Logger.With("room", cfg.ID)
	jobs := jobObserver{roomID: cfg.ID, observer: cfg.Observer}
	c := &Controller{
		id:       cfg.ID,
		role:     cfg.Role,
		exec:     newExecutor(),
		sub:      sub,
		engine:   transfer.NewEngine(cfg.Transfer, cfg.Clock, jobs, logger),
		observer: cfg.Observer,
		clock:    cfg.Clock,
		logger:   logger.With("component", "room"),
		status:   peer.StatusConnecting,
		quit:     make(chan struct{}),

		clipboard:    cfg.Clipboard,
		clipInterval: cfg.ClipboardInterval,
	}
	c.sink = transfer.NewSink(transfer.SinkConfig{
		Options:  cfg.Transfer,
		Policy:   cfg.Policy,
		Chooser:  cfg.Chooser,
		Saver:    cfg.Saver,
		Clock:    cfg.Clock,
		Observer: jobs,
		Logger:   logger,
	})

	hooks := SessionHooks{
		OnStatus:      c.onStatus,
		OnOpen:        c.onOpen,
		OnMessage:     c.onFrame,
		OnBufferedLow: c.engine.Pump,
	}
	post := func(fn func()) { c.exec.post(fn) }
	session, err := cfg.NewSession(cfg.Role, sub, post, hooks, logger)
	if err != nil {
		c.exec.stop()
		sub.Close()
		return nil, err
	}
	c.session = session

	c.exec.post(func() { c.observer.RoomStatus(c.id, c.status) })
	go c.relayLoop()

	c.logger.Info("room opened", "role", c.role.String())
	return c, nil
}

func (c *Controller) ID() string      { return c.id }
func (c *Controller) Role() peer.Role { return c.role }

// relayLoop hands relay messages to the executor until the subscription
// closes.
func (c *Controller) relayLoop() {
	for m := range c.sub.Messages() {
		c.exec.post(func() { c.onRelay(m) })
	}
}

func (c *Controller) onRelay(m signaling.Message) {
	if c.closed {
		return
	}

	switch m.Type {
	case signaling.TypeRoomJoined:
		c.logger.Debug("joined relay room", "peers", m.Peers)
		c.joined = true
		c.rejoinDelay = 0
		if m.Peers > 0 {
			c.peerArrived()
		}

	case signaling.TypeUserConnected:
		c.logger.Info("peer joined room")
		c.peerArrived()

	case signaling.TypeUserDisconnected:
		c.logger.Info("peer left room")
		c.peerLeft()

	case signaling.TypeSignal:
		c.peerPresent = true
		if m.Signal.Type == signaling.SignalDisconnect {
			c.logger.Info("peer sent disconnect")
			c.peerLeft()
			return
		}
		if err := c.session.HandleSignal(*m.Signal); err != nil {
			c.logger.Warn("handle signal", "type", m.Signal.Type, "error", err)
		}

	case signaling.TypeError:
		c.logger.Warn("relay rejected request", "error", m.Error)
		if m.Error != signaling.ErrRoomFull.Error() {
			return
		}
		// Once joined, a full room means our stale socket still holds the
		// place. The peer session keeps the status.
		if c.joined {
			c.scheduleRejoin()
			return
		}
		c.setStatus(peer.StatusFailed)

	case signaling.TypeRelayError:
		// The relay client re-joins on its own.
		c.logger.Warn("relay connection lost", "error", m.Error)
	}
}

func (c *Controller) scheduleRejoin() {
	if c.rejoinPending {
		return
	}
	delay := max(c.rejoinDelay, minRejoinDelay)
	c.rejoinDelay = min(delay*2, maxRejoinDelay)
	c.rejoinPending = true
	c.logger.Info("rejoining relay room", "retry_in", delay)

	after := c.clock.After(delay)
	go func() {
		select {
		case <-after:
			c.exec.post(c.rejoin)
		case <-c.quit:
		}
	}()
}

func (c *Controller) rejoin() {
	c.rejoinPending = false
	if c.closed {
		return
	}
	if err := c.sub.Rejoin(); err != nil {
		c.logger.Warn("rejoin relay room", "error", err)
	}
}

// peerArrived re-offers when this side is the offerer.
func (c *Controller) peerArrived() {
	c.peerPresent = true
	if c.role != peer.Offerer {
		return
	}

	var err error
	if c.session.State() == peer.StateIdle {
		err = c.session.Start()
	} else {
		c.detach(transfer.ErrConnectionFailed)
		err = c.session.Restart()
		c.setStatus(peer.StatusConnecting)
	}
	if err != nil {
		c.logger.Warn("send offer", "error", err)
	}
}

// peerLeft interrupts the room's jobs and waits idle for the peer to come
// back.
func (c *Controller) peerLeft() {
	c.peerPresent = false
	c.detach(transfer.ErrConnectionFailed)
	c.ch = nil
	if err := c.session.Reset(); err != nil {
		c.logger.Warn("reset session", "error", err)
	}
	c.setStatus(peer.StatusDisconnected)
}

func (c *Controller) setStatus(s peer.Status) {
	if s == c.status {
		return
	}
	c.status = s
	c.observer.RoomStatus(c.id, s)
}

func (c *Controller) onStatus(s peer.Status) {
	if c.closed {
		return
	}
	c.setStatus(s)

	switch s {
	case peer.StatusConnected:
		// ICE recovered under a channel that stayed open.
		if c.ch != nil && !c.attached {
			c.attach()
		}

	case peer.StatusDisconnected:
		c.detach(transfer.ErrConnectionFailed)

	case peer.StatusFailed:
		c.detach(transfer.ErrConnectionFailed)
		c.ch = nil
		var err error
		if c.role == peer.Offerer && c.peerPresent {
			err = c.session.Restart()
		} else {
			err = c.session.Reset()
		}
		if err != nil {
			c.logger.Warn("replace failed session", "error", err)
		}
	}
}

func (c *Controller) onOpen(ch transfer.Channel) {
	if c.closed {
		return
	}
	c.ch = ch
	c.attach()
}

// attach hands the channel to the engine and repeats every offer the peer
// has not requested yet.
func (c *Controller) attach() {
	c.attached = true
	c.engine.SetChannel(c.ch)
	for _, m := range c.engine.Announcements() {
		if err := transfer.SendControl(c.ch, m); err != nil {
			c.logger.Warn("announce file", "job", m.ID, "error", err)
		}
	}
}

// detach interrupts every in-flight job. Cursors are kept for resume.
func (c *Controller) detach(reason error) {
	c.engine.Interrupt(reason)
	c.sink.Interrupt(reason)
	c.engine.SetChannel(nil)
	c.attached = false
}

func (c *Controller) onFrame(f peer.Frame) {
	if c.closed {
		return
	}
	if !f.Text {
		if err := c.sink.Write(f.Data); err != nil {
			c.logger.Warn("write chunk", "error", err)
		}
		return
	}

	m, err := protocol.Decode(f.Data)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownType) {
			c.logger.Debug("ignoring control message", "error", err)
		} else {
			c.logger.Warn("bad control message", "error", err)
		}
		return
	}

	switch m.Type {
	case protocol.TypeMeta:
		c.sink.Announce(m)

	case protocol.TypeRequestFile:
		if err := c.engine.Start(m.ID, m.Offset); err != nil {
			c.logger.Warn("start transfer", "job", m.ID, "error", err)
			if errors.Is(err, transfer.ErrUnknownTransfer) {
				c.send(protocol.CancelTransfer(m.ID))
			}
		}

	case protocol.TypeChunkStart:
		if err := c.sink.Start(m.ID); err != nil {
			c.logger.Warn("accept chunk stream", "job", m.ID, "error", err)
		}

	case protocol.TypeChunkAbort:
		if err := c.sink.Abort(m.ID); err != nil {
			c.logger.Warn("abort chunk stream", "job", m.ID, "error", err)
		}

	case protocol.TypeCancelTransfer:
		switch {
		case c.engine.Has(m.ID):
			err = c.engine.Cancel(m.ID, false)
		case c.sink.Has(m.ID):
			err = c.sink.Cancel(m.ID)
		default:
			c.logger.Debug("cancel for unknown job", "job", m.ID)
		}
		if err != nil {
			c.logger.Warn("cancel from peer", "job", m.ID, "error", err)
		}

	case protocol.TypeClipboard:
		c.receiveClipboard(m.Content)
	}
}

func (c *Controller) send(m protocol.Message) error {
	if c.ch == nil || !c.attached {
		return transfer.NewError("send "+m.Type, transfer.ErrChannelNotOpen)
	}
	return transfer.SendControl(c.ch, m)
}

// AddFiles offers files to the peer. Offers made before the channel opens
// are announced when it does.
func (c *Controller) AddFiles(ctx context.Context, sources ...transfer.FileSource) ([]transfer.Snapshot, error) {
	var out []transfer.Snapshot
	err := c.exec.call(ctx, func() error {
		if c.closed {
			return ErrClosed
		}
		for _, src := range sources {
			snap, meta := c.engine.Offer(src)
			out = append(out, snap)
			if c.attached {
				if err := c.send(meta); err != nil {
					c.logger.Warn("announce file", "job", snap.ID, "error", err)
				}
			}
		}
		return nil
	})
	return out, err
}

// Download accepts an announced file and asks the peer for it.
func (c *Controller) Download(ctx context.Context, id string) error {
	return c.exec.call(ctx, func() error {
		if c.closed {
			return ErrClosed
		}
		if !c.attached {
			return transfer.NewFileError("request", id, transfer.ErrChannelNotOpen)
		}
		req, err := c.sink.Accept(ctx, id)
		if err != nil {
			return err
		}
		return c.send(req)
	})
}

// Resume asks the peer to continue an interrupted download from its cursor.
func (c *Controller) Resume(ctx context.Context, id string) error {
	return c.exec.call(ctx, func() error {
		if c.closed {
			return ErrClosed
		}
		if !c.attached {
			return transfer.NewFileError("request", id, transfer.ErrChannelNotOpen)
		}
		req, err := c.sink.Resume(id)
		if err != nil {
			return err
		}
		return c.send(req)
	})
}

// Pause stops sending id after the frames already queued.
func (c *Controller) Pause(ctx context.Context, id string) error {
	return c.exec.call(ctx, func() error { return c.engine.Pause(id) })
}

// ResumeSend continues a paused upload.
func (c *Controller) ResumeSend(ctx context.Context, id string) error {
	return c.exec.call(ctx, func() error { return c.engine.Resume(id) })
}

// Cancel aborts a job in either direction and tells the peer.
func (c *Controller) Cancel(ctx context.Context, id string) error {
	return c.exec.call(ctx, func() error {
		if c.engine.Has(id) {
			return c.engine.Cancel(id, c.attached)
		}
		if err := c.sink.Cancel(id); err != nil {
			return err
		}
		if err := c.send(protocol.CancelTransfer(id)); err != nil {
			c.logger.Debug("notify peer of cancel", "job", id, "error", err)
		}
		return nil
	})
}

// SetClipboardSync turns clipboard sharing on or off. Enabling records the
// current clipboard so it is not sent straight away.
func (c *Controller) SetClipboardSync(ctx context.Context, enabled bool) error {
	return c.exec.call(ctx, func() error {
		if c.closed {
			return ErrClosed
		}
		if c.clipboard == nil {
			return transfer.NewError("clipboard sync", errors.New("no clipboard available"))
		}
		if !enabled {
			c.stopClipboard()
			return nil
		}
		if c.clipTicker != nil {
			return nil
		}

		content, err := c.clipboard.Read()
		if err != nil {
			c.logger.Debug("read clipboard", "error", err)
		}
		c.lastClip = content

		ticker := c.clock.NewTicker(c.clipInterval)
		stop := make(chan struct{})
		c.clipTicker, c.clipStop = ticker, stop
		go func() {
			for {
				select {
				case <-ticker.C:
					c.exec.post(c.pollClipboard)
				case <-stop:
					return
				}
			}
		}()
		return nil
	})
}

func (c *Controller) stopClipboard() {
	if c.clipTicker == nil {
		return
	}
	c.clipTicker.Stop()
	close(c.clipStop)
	c.clipTicker, c.clipStop = nil, nil
}

func (c *Controller) pollClipboard() {
	if c.closed || c.clipTicker == nil {
		return
	}
	content, err := c.clipboard.Read()
	if err != nil {
		c.logger.Debug("read clipboard", "error", err)
		return
	}
	if content == "" || content == c.lastClip || c.status != peer.StatusConnected {
		return
	}
	if err := c.send(protocol.Clipboard(content)); err != nil {
		c.logger.Debug("send clipboard", "error", err)
		return
	}
	c.lastClip = content
}

func (c *Controller) receiveClipboard(content string) {
	if c.clipboard == nil {
		return
	}
	c.lastClip = content
	if err := c.clipboard.Write(content); err != nil {
		c.logger.Warn("write clipboard", "error", err)
		return
	}
	c.observer.ClipboardReceived(c.id, content)
}

// Snapshot reports the room status and every job in both directions.
func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := c.exec.call(ctx, func() error {
		snap = Snapshot{
			ID:     c.id,
			Role:   c.role,
			Status: c.status,
			Jobs:   slices.Concat(c.engine.Snapshots(), c.sink.Snapshots()),
		}
		return nil
	})
	return snap, err
}

// Close tells the peer, tears down the session, leaves the relay room and
// aborts every job. The controller cannot be used afterwards.
func (c *Controller) Close(ctx context.Context) error {
	err := c.exec.call(ctx, func() error {
		if c.closed {
			return nil
		}
		if err := c.sub.SendSignal(signaling.Disconnect()); err != nil {
			c.logger.Debug("send disconnect", "error", err)
		}
		c.stopClipboard()
		c.closed = true
		close(c.quit)

		var errs []error
		if err := c.session.Close(); err != nil {
			errs = append(errs, err)
		}
		c.sub.Close()
		c.engine.CancelAll()
		c.sink.CancelAll()
		c.engine.SetChannel(nil)
		c.ch, c.attached = nil, false
		c.setStatus(peer.StatusDisconnected)
		c.logger.Info("room closed")
		return errors.Join(errs...)
	})
	if errors.Is(err, ErrClosed) {
		return nil
	}
	c.exec.stop()
	return err
}
