package transfer

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/BioHazard786/Roomdrop/internal/clock"
	"github.com/BioHazard786/Roomdrop/internal/protocol"
)

// Sink is the receiving half of a room. It tracks announced files, owns the
// active receive slot and writes attributed binary frames to each job's
// destination.
//
// Like Engine, Sink is confined to the owning room's executor.
type Sink struct {
	opts     Options
	clock    clock.Clock
	observer Observer
	logger   *slog.Logger
	chooser  Chooser
	saver    Saver
	slot     *Slot

	jobs  map[string]*incoming
	order []string
}

type incoming struct {
	job       Job
	dest      Destination
	requested bool
	sampler   sampler
}

// SinkConfig collects a Sink's collaborators. Chooser and Saver may be nil;
// without a Chooser every accepted file is buffered in memory and needs a
// Saver.
type SinkConfig struct {
	Options  Options
	Policy   SlotPolicy
	Chooser  Chooser
	Saver    Saver
	Clock    clock.Clock
	Observer Observer
	Logger   *slog.Logger
}

func NewSink(cfg SinkConfig) *Sink {
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	return &Sink{
		opts:     cfg.Options.withDefaults(),
		clock:    cfg.Clock,
		observer: cfg.Observer,
		logger:   cfg.Logger.With("component", "sink"),
		chooser:  cfg.Chooser,
		saver:    cfg.Saver,
		slot:     NewSlot(cfg.Policy),
		jobs:     make(map[string]*incoming),
	}
}

// Announce registers a waiting job for a meta message. Repeated
// announcements of a known id are ignored and report false.
func (s *Sink) Announce(m protocol.Message) (Snapshot, bool) {
	if job, ok := s.jobs[m.ID]; ok {
		return job.job.Snapshot(), false
	}
	job := &incoming{
		job: Job{
			ID:        m.ID,
			Name:      m.Name,
			Direction: Receive,
			Size:      m.Size,
			Status:    StatusWaiting,
		},
		sampler: sampler{interval: s.opts.ProgressInterval},
	}
	s.jobs[m.ID] = job
	s.order = append(s.order, m.ID)
	s.logger.Info("file announced", "job", m.ID, "name", m.Name, "size", m.Size)
	s.observer.JobChanged(job.job.Snapshot())
	return job.job.Snapshot(), true
}

// Has reports whether id is a known incoming job.
func (s *Sink) Has(id string) bool {
	_, ok := s.jobs[id]
	return ok
}

// Accept acquires a destination for id and returns the request-file to send.
// If the chooser declines, the error wraps ErrDestinationUnavailable and
// nothing should be sent.
func (s *Sink) Accept(ctx context.Context, id string) (protocol.Message, error) {
	job, ok := s.jobs[id]
	if !ok {
		return protocol.Message{}, NewFileError("accept", id, ErrUnknownTransfer)
	}
	if job.job.Status != StatusWaiting {
		return protocol.Message{}, WrapError("accept", ErrInvalidState, job.job.Status.String())
	}

	if job.dest == nil {
		dest, err := s.acquire(ctx, job)
		if err != nil {
			job.job.Err = err
			s.observer.JobChanged(job.job.Snapshot())
			return protocol.Message{}, err
		}
		job.dest = dest
	}

	job.requested = true
	job.job.Err = nil
	s.observer.JobChanged(job.job.Snapshot())
	return protocol.RequestFile(id, job.job.Cursor), nil
}

func (s *Sink) acquire(ctx context.Context, job *incoming) (Destination, error) {
	if s.chooser != nil {
		dest, err := s.chooser.Choose(ctx, job.job.Name, job.job.Size)
		switch {
		case err == nil:
			return dest, nil
		case !errors.Is(err, ErrStreamingUnsupported):
			return nil, NewFileError("choose destination", job.job.Name, errors.Join(ErrDestinationUnavailable, err))
		}
		s.logger.Debug("streaming unsupported, buffering in memory", "job", job.job.ID)
	}
	if s.saver == nil {
		return nil, WrapError("choose destination", ErrDestinationUnavailable, "no saver for in-memory fallback")
	}
	return newMemoryBuffer(job.job.Name, job.job.Size, s.saver), nil
}

// Resume re-requests an interrupted job from its cursor. The destination
// already holds exactly cursor bytes.
func (s *Sink) Resume(id string) (protocol.Message, error) {
	job, ok := s.jobs[id]
	if !ok {
		return protocol.Message{}, NewFileError("resume", id, ErrUnknownTransfer)
	}
	if job.job.Status != StatusInterrupted || job.dest == nil {
		return protocol.Message{}, WrapError("resume", ErrInvalidState, job.job.Status.String())
	}
	job.job.Status = StatusWaiting
	job.job.Err = nil
	job.requested = true
	s.observer.JobChanged(job.job.Snapshot())
	return protocol.RequestFile(id, job.job.Cursor), nil
}

// Start handles chunk-start: id claims the active receive slot according to
// the slot policy. Frames that follow are attributed to the holder.
func (s *Sink) Start(id string) error {
	job, ok := s.jobs[id]
	if !ok || !job.requested {
		s.quarantine(ErrInvalidState)
		if !ok {
			return NewFileError("chunk-start", id, ErrUnknownTransfer)
		}
		return WrapError("chunk-start", ErrInvalidState, "file was never requested")
	}

	grant, displaced, err := s.slot.Acquire(id)
	if err != nil {
		if prev, ok := s.jobs[displaced]; ok {
			s.interrupt(prev, ErrSlotBusy)
		}
		job.job.Err = err
		s.logger.Warn("competing chunk-start rejected", "job", id, "holder", displaced)
		s.observer.JobChanged(job.job.Snapshot())
		return NewFileError("chunk-start", id, err)
	}
	if grant == Queued {
		s.logger.Info("chunk-start queued behind active receive", "job", id)
		return nil
	}

	s.begin(job)
	return nil
}

func (s *Sink) begin(job *incoming) {
	job.job.Status = StatusTransferring
	job.job.Err = nil
	job.sampler.reset(s.clock.Now(), job.job.Cursor)
	s.observer.JobChanged(job.job.Snapshot())
	if job.job.Cursor >= job.job.Size {
		s.finalize(job)
	}
}

// Abort handles chunk-abort. The sender gave up on id for a local reason, so
// the job is interrupted at its cursor and the slot is released without
// quarantine. A queued chunk-start, if any, is promoted.
func (s *Sink) Abort(id string) error {
	job, ok := s.jobs[id]
	if !ok {
		return NewFileError("chunk-abort", id, ErrUnknownTransfer)
	}
	if job.job.Status.Active() || (job.job.Status == StatusWaiting && job.requested) {
		s.interrupt(job, ErrSenderAborted)
	}
	if next, ok := s.slot.Release(id); ok {
		if nj, ok := s.jobs[next]; ok {
			s.begin(nj)
		}
	}
	return nil
}

// Write attributes one binary frame to the slot holder. Frames with no
// holder are dropped. A destination failure interrupts only that job.
func (s *Sink) Write(data []byte) error {
	id, ok := s.slot.Holder()
	if !ok {
		s.logger.Debug("dropping unattributed frame", "bytes", len(data), "quarantined", s.slot.Quarantined())
		return nil
	}
	job := s.jobs[id]
	if job == nil || job.job.Status != StatusTransferring {
		s.logger.Debug("dropping frame for inactive job", "job", id)
		return nil
	}

	remaining := job.job.Size - job.job.Cursor
	if int64(len(data)) > remaining {
		s.logger.Warn("frame overruns announced size", "job", id, "bytes", len(data), "remaining", remaining)
		data = data[:remaining]
	}

	n, err := job.dest.WriteAt(data, job.job.Cursor)
	job.job.Cursor += int64(n)
	if err != nil {
		werr := NewFileError("write", job.job.Name, errors.Join(ErrWriteFailure, err))
		s.quarantine(werr)
		return werr
	}

	if p, ok := job.sampler.sample(s.clock.Now(), id, job.job.Cursor, job.job.Size, false); ok {
		s.observer.JobProgress(p)
	}
	if job.job.Cursor >= job.job.Size {
		s.finalize(job)
	}
	return nil
}

func (s *Sink) finalize(job *incoming) {
	id := job.job.ID
	if err := job.dest.Close(); err != nil {
		s.quarantine(NewFileError("finalize", job.job.Name, errors.Join(ErrWriteFailure, err)))
		return
	}

	job.job.Status = StatusCompleted
	if p, ok := job.sampler.sample(s.clock.Now(), id, job.job.Cursor, job.job.Size, true); ok {
		s.observer.JobProgress(p)
	}
	s.remove(id)
	s.logger.Info("file received", "job", id, "name", job.job.Name, "size", job.job.Size)
	s.observer.JobChanged(job.job.Snapshot())

	if next, ok := s.slot.Release(id); ok {
		if nj, ok := s.jobs[next]; ok {
			s.begin(nj)
		}
	}
}

// quarantine interrupts every job attributed to the slot and drops frames
// until the next accepted chunk-start.
func (s *Sink) quarantine(reason error) {
	for _, id := range s.slot.Quarantine() {
		if job, ok := s.jobs[id]; ok {
			s.interrupt(job, reason)
		}
	}
}

func (s *Sink) interrupt(job *incoming, reason error) {
	job.job.Status = StatusInterrupted
	job.job.Err = reason
	job.requested = false
	s.logger.Warn("receive interrupted", "job", job.job.ID, "cursor", job.job.Cursor, "error", reason)
	s.observer.JobChanged(job.job.Snapshot())
}

// Cancel aborts id and discards its partial output. The caller sends
// cancel-transfer when the user initiated it.
func (s *Sink) Cancel(id string) error {
	job, ok := s.jobs[id]
	if !ok {
		return NewFileError("cancel", id, ErrUnknownTransfer)
	}
	if holder, held := s.slot.Holder(); held && holder == id {
		s.slot.Quarantine()
	} else {
		s.slot.Release(id)
	}

	if job.dest != nil {
		if err := job.dest.Abort(); err != nil {
			s.logger.Warn("abort destination", "job", id, "error", err)
		}
	}
	job.job.Status = StatusCancelled
	job.job.Err = ErrTransferCancelled
	s.remove(id)
	s.logger.Info("receive cancelled", "job", id)
	s.observer.JobChanged(job.job.Snapshot())
	return nil
}

// Interrupt marks every transferring or requested job as interrupted and
// resets the slot for a fresh channel.
func (s *Sink) Interrupt(reason error) {
	s.slot.Reset()
	for _, id := range s.order {
		job := s.jobs[id]
		if job.job.Status.Active() || (job.job.Status == StatusWaiting && job.requested) {
			s.interrupt(job, reason)
		}
	}
}

// CancelAll aborts every job without notifying the peer.
func (s *Sink) CancelAll() {
	for _, id := range slices.Clone(s.order) {
		_ = s.Cancel(id)
	}
}

func (s *Sink) remove(id string) {
	delete(s.jobs, id)
	s.order = slices.DeleteFunc(s.order, func(o string) bool { return o == id })
}

// Snapshots lists incoming jobs in announcement order.
func (s *Sink) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.jobs[id].job.Snapshot())
	}
	return out
}

// Slot exposes the active receive slot for inspection.
func (s *Sink) Slot() *Slot { return s.slot }
