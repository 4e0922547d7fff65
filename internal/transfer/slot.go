package transfer

import "slices"

// SlotPolicy decides what happens to a chunk-start that arrives while a
// different transfer holds the active receive slot.
type SlotPolicy int

const (
	// RejectCompeting refuses the newcomer with ErrSlotBusy, displaces the
	// holder and quarantines the slot until the next accepted chunk-start.
	RejectCompeting SlotPolicy = iota
	// QueueCompeting parks the newcomer until the holder releases. Frames
	// keep going to the holder until it reaches its announced size, so this
	// policy relies on the sender finishing the holder's bytes before it
	// streams the newcomer's.
	QueueCompeting
)

// Grant is the outcome of Acquire.
type Grant int

const (
	Rejected Grant = iota
	Granted
	Queued
)

// Slot is the per-room single-flight lock that attributes untagged binary
// frames to exactly one receiving transfer.
type Slot struct {
	policy      SlotPolicy
	holder      string
	quarantined bool
	queue       []string
}

func NewSlot(policy SlotPolicy) *Slot {
	return &Slot{policy: policy}
}

// Acquire claims the slot for id. Re-acquiring by the current holder is a
// no-op grant. Under RejectCompeting a conflict returns the displaced
// holder together with ErrSlotBusy.
func (s *Slot) Acquire(id string) (grant Grant, displaced string, err error) {
	if s.holder == "" || s.holder == id {
		s.holder = id
		s.quarantined = false
		s.queue = slices.DeleteFunc(s.queue, func(q string) bool { return q == id })
		return Granted, "", nil
	}

	if s.policy == QueueCompeting {
		if !slices.Contains(s.queue, id) {
			s.queue = append(s.queue, id)
		}
		return Queued, "", nil
	}

	displaced = s.holder
	s.holder = ""
	s.quarantined = true
	return Rejected, displaced, ErrSlotBusy
}

// Holder returns the id frames are attributed to. It is false while the
// slot is idle or quarantined.
func (s *Slot) Holder() (string, bool) {
	if s.holder == "" || s.quarantined {
		return "", false
	}
	return s.holder, true
}

func (s *Slot) Quarantined() bool { return s.quarantined }

// Release frees the slot if id holds it and promotes the next queued id.
func (s *Slot) Release(id string) (next string, promoted bool) {
	if s.holder != id {
		s.queue = slices.DeleteFunc(s.queue, func(q string) bool { return q == id })
		return "", false
	}
	s.holder = ""
	if len(s.queue) == 0 {
		return "", false
	}
	next, s.queue = s.queue[0], s.queue[1:]
	s.holder = next
	return next, true
}

// Quarantine drops the holder and every queued id. Frames are discarded
// until the next Acquire. The dropped ids are returned so the caller can
// interrupt them.
func (s *Slot) Quarantine() (dropped []string) {
	if s.holder != "" {
		dropped = append(dropped, s.holder)
	}
	dropped = append(dropped, s.queue...)
	s.holder = ""
	s.queue = nil
	s.quarantined = true
	return dropped
}

// Reset returns the slot to idle, for use when the channel is replaced.
func (s *Slot) Reset() {
	s.holder = ""
	s.queue = nil
	s.quarantined = false
}
