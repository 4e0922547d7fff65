package signaling

import (
	"context"
	"sync"
)

// Relay is a rendezvous service rooms subscribe to. Client is the websocket
// implementation and MemoryRelay the in-process one.
type Relay interface {
	Subscribe(ctx context.Context, roomID string) (*Subscription, error)
}

// Subscription is one room's view of a relay. Inbound envelopes are
// delivered in arrival order and never dropped; a slow consumer only grows
// the queue.
type Subscription struct {
	roomID string
	send   func(Message) error
	leave  func()
	rejoin func() error

	out    chan Message
	notify chan struct{}
	done   chan struct{}

	mu     sync.Mutex
	queue  []Message
	closed bool
	once   sync.Once
}

func newSubscription(roomID string, send func(Message) error, leave func()) *Subscription {
	s := &Subscription{
		roomID: roomID,
		send:   send,
		leave:  leave,
		out:    make(chan Message),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Subscription) RoomID() string { return s.roomID }

// Messages yields inbound envelopes. It is closed after Close.
func (s *Subscription) Messages() <-chan Message { return s.out }

// SendSignal forwards a handshake signal to the other room members.
func (s *Subscription) SendSignal(sig Signal) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return s.send(Message{Type: TypeSignal, RoomID: s.roomID, Signal: &sig})
}

// Rejoin asks the relay to admit this subscription again, for when a join
// was refused after a reconnect. Relays that never drop membership treat it
// as a no-op.
func (s *Subscription) Rejoin() error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if s.rejoin == nil {
		return nil
	}
	return s.rejoin()
}

// Close leaves the room and stops delivery.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.queue = nil
		s.mu.Unlock()
		close(s.done)
		if s.leave != nil {
			s.leave()
		}
	})
	return nil
}

func (s *Subscription) deliver(m Message) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, m)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) run() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			}
		}
		m := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- m:
		case <-s.done:
			return
		}
	}
}
