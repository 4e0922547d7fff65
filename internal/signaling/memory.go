package signaling

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrRoomFull is returned when a third member tries to join a room.
var ErrRoomFull = errors.New("room is full")

const roomCapacity = 2

// MemoryRelay is an in-process relay with the same membership events as the
// websocket relay. Tests and single-process demos use it.
type MemoryRelay struct {
	mu    sync.Mutex
	rooms map[string][]*Subscription
}

func NewMemoryRelay() *MemoryRelay {
	return &MemoryRelay{rooms: make(map[string][]*Subscription)}
}

func (r *MemoryRelay) Subscribe(ctx context.Context, roomID string) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.rooms[roomID]
	if len(members) >= roomCapacity {
		return nil, ErrRoomFull
	}

	var sub *Subscription
	sub = newSubscription(roomID,
		func(m Message) error { return r.forward(sub, m) },
		func() { r.leave(sub) },
	)
	r.rooms[roomID] = append(members, sub)

	sub.deliver(Message{Type: TypeRoomJoined, RoomID: roomID, Peers: len(members)})
	for _, other := range members {
		other.deliver(Message{Type: TypeUserConnected, RoomID: roomID})
	}
	return sub, nil
}

func (r *MemoryRelay) forward(from *Subscription, m Message) error {
	if err := m.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.rooms[from.roomID] {
		if other != from {
			other.deliver(m)
		}
	}
	return nil
}

func (r *MemoryRelay) leave(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := slices.DeleteFunc(r.rooms[sub.roomID], func(s *Subscription) bool { return s == sub })
	if len(members) == 0 {
		delete(r.rooms, sub.roomID)
		return
	}
	r.rooms[sub.roomID] = members
	for _, other := range members {
		other.deliver(Message{Type: TypeUserDisconnected, RoomID: sub.roomID})
	}
}

// Members reports how many subscriptions are in roomID.
func (r *MemoryRelay) Members(roomID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms[roomID])
}
