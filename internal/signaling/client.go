package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BioHazard786/Roomdrop/internal/clock"
	"github.com/BioHazard786/Roomdrop/internal/dns"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendQueueSize  = 64

	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// Client multiplexes every room the process has joined over one websocket
// to the relay. When the connection drops it reconnects with exponential
// backoff and re-joins each subscribed room.
type Client struct {
	serverURL string
	dialer    *websocket.Dialer
	logger    *slog.Logger
	clock     clock.Clock
	backoff   [2]time.Duration

	mu       sync.Mutex
	subs     map[string]*Subscription
	outgoing chan Message
	closed   bool
	cancel   context.CancelFunc
	done     chan struct{}
}

type ClientOption func(*Client)

func WithLogger(l *slog.Logger) ClientOption { return func(c *Client) { c.logger = l } }

func WithClock(clk clock.Clock) ClientOption { return func(c *Client) { c.clock = clk } }

// WithBackoff overrides the reconnect delay bounds.
func WithBackoff(lo, hi time.Duration) ClientOption {
	return func(c *Client) { c.backoff = [2]time.Duration{lo, hi} }
}

// NewClient creates a client for the relay at serverURL. Hosts are resolved
// with a public-DNS fallback.
func NewClient(serverURL string, opts ...ClientOption) *Client {
	c := &Client{
		serverURL: serverURL,
		dialer: &websocket.Dialer{
			NetDialContext:   dns.DialContext,
			HandshakeTimeout: 45 * time.Second,
		},
		logger:  slog.Default(),
		clock:   clock.Real(),
		backoff: [2]time.Duration{minBackoff, maxBackoff},
		subs:    make(map[string]*Subscription),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "relay-client")
	return c
}

// Connect dials the relay once and starts the connection loop. A failed
// first dial is returned so the caller can report it; later drops are
// retried in the background.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.cancel != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	go c.run(runCtx, conn)
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRelayUnavailable, err)
	}
	conn.SetReadLimit(maxMessageSize)
	return conn, nil
}

func (c *Client) run(ctx context.Context, conn *websocket.Conn) {
	defer close(c.done)

	for {
		err := c.serve(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("relay connection lost", "error", err)
		c.broadcast(Message{Type: TypeRelayError, Error: err.Error()})

		conn = c.reconnect(ctx)
		if conn == nil {
			return
		}
		c.logger.Info("relay reconnected")
	}
}

func (c *Client) reconnect(ctx context.Context) *websocket.Conn {
	delay := c.backoff[0]
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.clock.After(delay):
		}

		conn, err := c.dial(ctx)
		if err == nil {
			return conn
		}
		delay = min(delay*2, c.backoff[1])
		c.logger.Warn("relay reconnect failed", "retry_in", delay, "error", err)
	}
}

// serve runs one connection until it fails or ctx ends. Every subscribed
// room is joined before any queued signal goes out.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	c.mu.Lock()
	out := make(chan Message, sendQueueSize+len(c.subs))
	for id := range c.subs {
		out <- Message{Type: TypeJoinRoom, RoomID: id}
	}
	c.outgoing = out
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.outgoing == out {
			c.outgoing = nil
		}
		c.mu.Unlock()
	}()

	errCh := make(chan error, 2)
	stop := make(chan struct{})
	go c.readLoop(conn, errCh)
	go c.writeLoop(conn, out, stop, errCh)

	select {
	case err := <-errCh:
		close(stop)
		return err
	case <-ctx.Done():
		close(stop)
		return ctx.Err()
	}
}

func (c *Client) readLoop(conn *websocket.Conn, errCh chan<- error) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			errCh <- fmt.Errorf("read failed: %w", err)
			return
		}

		msg, err := Decode(data)
		if err != nil {
			c.logger.Warn("dropping relay message", "error", err)
			continue
		}
		c.route(msg)
	}
}

func (c *Client) writeLoop(conn *websocket.Conn, out <-chan Message, stop <-chan struct{}, errCh chan<- error) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-out:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				errCh <- fmt.Errorf("write failed: %w", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				errCh <- fmt.Errorf("ping failed: %w", err)
				return
			}

		case <-stop:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) route(msg Message) {
	if msg.RoomID == "" {
		c.broadcast(msg)
		return
	}

	c.mu.Lock()
	sub := c.subs[msg.RoomID]
	c.mu.Unlock()
	if sub == nil {
		c.logger.Debug("message for unknown room", "room", msg.RoomID, "type", msg.Type)
		return
	}
	sub.deliver(msg)
}

func (c *Client) broadcast(msg Message) {
	c.mu.Lock()
	subs := make([]*Subscription, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		m := msg
		m.RoomID = s.roomID
		s.deliver(m)
	}
}

func (c *Client) enqueue(msg Message) error {
	c.mu.Lock()
	out, closed := c.outgoing, c.closed
	c.mu.Unlock()
	if closed || out == nil {
		return ErrRelayUnavailable
	}

	select {
	case out <- msg:
		return nil
	default:
		return fmt.Errorf("%w: send queue full", ErrRelayUnavailable)
	}
}

// Subscribe joins roomID and returns its message stream. If the relay is
// currently down the join is sent when the connection returns.
func (c *Client) Subscribe(ctx context.Context, roomID string) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if _, ok := c.subs[roomID]; ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("already subscribed to room %s", roomID)
	}
	var sub *Subscription
	sub = newSubscription(roomID, c.enqueue, func() { c.unsubscribe(sub) })
	sub.rejoin = func() error { return c.enqueue(Message{Type: TypeJoinRoom, RoomID: roomID}) }
	c.subs[roomID] = sub
	c.mu.Unlock()

	if err := c.enqueue(Message{Type: TypeJoinRoom, RoomID: roomID}); err != nil {
		c.logger.Warn("join deferred until relay reconnects", "room", roomID, "error", err)
	}
	return sub, nil
}

func (c *Client) unsubscribe(sub *Subscription) {
	c.mu.Lock()
	if c.subs[sub.roomID] == sub {
		delete(c.subs, sub.roomID)
	}
	c.mu.Unlock()

	if err := c.enqueue(Message{Type: TypeLeaveRoom, RoomID: sub.roomID}); err != nil && !errors.Is(err, ErrRelayUnavailable) {
		c.logger.Warn("leave room", "room", sub.roomID, "error", err)
	}
}

// Close shuts the connection and ends every subscription.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	subs := c.subs
	c.subs = make(map[string]*Subscription)
	c.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-c.done
	}
	return nil
}
