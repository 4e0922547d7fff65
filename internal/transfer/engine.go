package transfer

import (
	"errors"
	"io"
	"log/slog"
	"slices"

	"github.com/BioHazard786/Roomdrop/internal/clock"
	"github.com/BioHazard786/Roomdrop/internal/protocol"
)

// Engine is the sending half of a room. It keeps the catalog of offered
// files, runs at most one outbound transfer at a time and paces chunk reads
// against the channel's buffered amount.
//
// Engine is not safe for concurrent use. The owning room calls it from its
// single executor goroutine, including the buffered-amount-low callback.
type Engine struct {
	opts     Options
	clock    clock.Clock
	observer Observer
	logger   *slog.Logger
	ch       Channel

	offers map[string]*offer
	jobs   map[string]*outgoing
	order  []string

	active *outgoing
	queue  []request
}

type offer struct {
	id   string
	name string
	size int64
	open func() (Source, error)
}

type outgoing struct {
	offer   *offer
	job     Job
	src     Source
	sampler sampler
}

type request struct {
	id     string
	offset int64
}

func NewEngine(opts Options, clk clock.Clock, observer Observer, logger *slog.Logger) *Engine {
	if observer == nil {
		observer = NopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Engine{
		opts:     opts.withDefaults(),
		clock:    clk,
		observer: observer,
		logger:   logger.With("component", "engine"),
		offers:   make(map[string]*offer),
		jobs:     make(map[string]*outgoing),
	}
}

// SetChannel attaches the channel chunks are written to. Passing nil
// detaches it; Pump is a no-op until a channel is attached again.
func (e *Engine) SetChannel(ch Channel) {
	e.ch = ch
}

// Offer registers a file as available to the peer and returns the meta
// announcement to send.
func (e *Engine) Offer(src FileSource) (Snapshot, protocol.Message) {
	o := &offer{id: NewID(), name: src.Name, size: src.Size, open: src.Open}
	e.offers[o.id] = o
	job := e.register(o)
	e.observer.JobChanged(job.job.Snapshot())
	return job.job.Snapshot(), protocol.Meta(o.id, o.name, o.size)
}

// Announcements returns the meta messages for every offer still waiting to
// be requested, so they can be repeated on a fresh channel.
func (e *Engine) Announcements() []protocol.Message {
	var out []protocol.Message
	for _, id := range e.order {
		if job, ok := e.jobs[id]; ok && job.job.Status == StatusWaiting {
			out = append(out, protocol.Meta(id, job.offer.name, job.offer.size))
		}
	}
	return out
}

func (e *Engine) register(o *offer) *outgoing {
	job := &outgoing{
		offer: o,
		job: Job{
			ID:        o.id,
			Name:      o.name,
			Direction: Send,
			Size:      o.size,
			Status:    StatusWaiting,
		},
		sampler: sampler{interval: e.opts.ProgressInterval},
	}
	e.jobs[o.id] = job
	if !slices.Contains(e.order, o.id) {
		e.order = append(e.order, o.id)
	}
	return job
}

// Has reports whether id is in the offer catalog.
func (e *Engine) Has(id string) bool {
	_, ok := e.offers[id]
	return ok
}

// Start handles request-file. If another transfer is in flight the request
// is queued and started when that one finishes.
func (e *Engine) Start(id string, offset int64) error {
	o, ok := e.offers[id]
	if !ok {
		return NewFileError("start", id, ErrUnknownTransfer)
	}
	if offset < 0 || offset > o.size {
		return WrapError("start", ErrInvalidOffset, o.name)
	}

	job, ok := e.jobs[id]
	if !ok {
		job = e.register(o)
	}

	if e.active != nil && e.active != job {
		e.enqueue(id, offset)
		job.job.Status = StatusWaiting
		e.logger.Info("queued request behind active transfer", "job", id, "active", e.active.job.ID)
		e.observer.JobChanged(job.job.Snapshot())
		return nil
	}

	if e.ch == nil {
		return NewFileError("start", o.name, ErrChannelNotOpen)
	}

	if job.src == nil {
		src, err := o.open()
		if err != nil {
			job.job.Status = StatusInterrupted
			job.job.Err = err
			e.observer.JobChanged(job.job.Snapshot())
			return NewFileError("open", o.name, err)
		}
		job.src = src
	}

	if err := SendControl(e.ch, protocol.ChunkStart(id)); err != nil {
		e.interrupt(job, err)
		return err
	}

	job.job.Cursor = offset
	job.job.Status = StatusTransferring
	job.job.Err = nil
	job.sampler.reset(e.clock.Now(), offset)
	e.active = job
	e.logger.Debug("transfer started", "job", id, "offset", offset, "size", o.size)
	e.observer.JobChanged(job.job.Snapshot())

	e.Pump()
	return nil
}

func (e *Engine) enqueue(id string, offset int64) {
	for i := range e.queue {
		if e.queue[i].id == id {
			e.queue[i].offset = offset
			return
		}
	}
	e.queue = append(e.queue, request{id: id, offset: offset})
}

// Pump schedules chunk reads until the high-water mark would be crossed,
// the active job stops transferring, or the file ends. It is re-invoked by
// the channel's buffered-amount-low event.
func (e *Engine) Pump() {
	for {
		job := e.active
		if job == nil || job.job.Status != StatusTransferring || e.ch == nil {
			return
		}

		remaining := job.job.Size - job.job.Cursor
		if remaining <= 0 {
			e.complete(job)
			continue
		}

		n := int64(e.opts.ChunkSize)
		if remaining < n {
			n = remaining
		}
		if e.ch.BufferedAmount()+uint64(n) > e.opts.HighWaterMark {
			return
		}

		chunk := make([]byte, n)
		read, err := job.src.ReadAt(chunk, job.job.Cursor)
		if int64(read) < n {
			if err == nil || errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			e.interrupt(job, NewFileError("read", job.job.Name, err))
			return
		}

		if err := e.ch.Send(chunk); err != nil {
			e.interrupt(job, NewFileError("send", job.job.Name, err))
			return
		}
		job.job.Cursor += n

		if p, ok := job.sampler.sample(e.clock.Now(), job.job.ID, job.job.Cursor, job.job.Size, false); ok {
			e.observer.JobProgress(p)
		}
	}
}

func (e *Engine) complete(job *outgoing) {
	job.job.Status = StatusCompleted
	if p, ok := job.sampler.sample(e.clock.Now(), job.job.ID, job.job.Cursor, job.job.Size, true); ok {
		e.observer.JobProgress(p)
	}
	e.release(job)
	delete(e.jobs, job.job.ID)
	e.logger.Info("transfer completed", "job", job.job.ID, "name", job.job.Name, "size", job.job.Size)
	e.observer.JobChanged(job.job.Snapshot())
	e.next()
}

func (e *Engine) release(job *outgoing) {
	if job.src != nil {
		if err := job.src.Close(); err != nil {
			e.logger.Warn("close source", "job", job.job.ID, "error", err)
		}
		job.src = nil
	}
	if e.active == job {
		e.active = nil
	}
}

func (e *Engine) next() {
	for e.active == nil && len(e.queue) > 0 {
		req := e.queue[0]
		e.queue = e.queue[1:]
		if err := e.Start(req.id, req.offset); err != nil {
			e.logger.Warn("start queued transfer", "job", req.id, "error", err)
		}
	}
}

// interrupt stops job after a local read or send failure. If its stream had
// started, the peer gets chunk-abort so it frees the receive slot before the
// next chunk-start arrives.
func (e *Engine) interrupt(job *outgoing, err error) {
	streaming := e.active == job
	job.job.Status = StatusInterrupted
	job.job.Err = err
	e.release(job)
	e.logger.Warn("transfer interrupted", "job", job.job.ID, "error", err)
	e.observer.JobChanged(job.job.Snapshot())

	if streaming && e.ch != nil {
		if serr := SendControl(e.ch, protocol.ChunkAbort(job.job.ID)); serr != nil {
			e.logger.Warn("notify peer of abort", "job", job.job.ID, "error", serr)
		}
	}
	e.next()
}

// Pause stops scheduling reads for id. In-flight frames still drain.
func (e *Engine) Pause(id string) error {
	job, ok := e.jobs[id]
	if !ok {
		return NewFileError("pause", id, ErrUnknownTransfer)
	}
	if job.job.Status != StatusTransferring {
		return WrapError("pause", ErrInvalidState, job.job.Status.String())
	}
	job.job.Status = StatusPaused
	e.observer.JobChanged(job.job.Snapshot())
	return nil
}

// Resume continues a paused transfer from the next unread byte.
func (e *Engine) Resume(id string) error {
	job, ok := e.jobs[id]
	if !ok {
		return NewFileError("resume", id, ErrUnknownTransfer)
	}
	if job.job.Status != StatusPaused {
		return WrapError("resume", ErrInvalidState, job.job.Status.String())
	}
	job.job.Status = StatusTransferring
	job.sampler.reset(e.clock.Now(), job.job.Cursor)
	e.observer.JobChanged(job.job.Snapshot())
	e.Pump()
	return nil
}

// Cancel aborts id and withdraws the offer. With notify set the peer is
// told through cancel-transfer.
func (e *Engine) Cancel(id string, notify bool) error {
	o, ok := e.offers[id]
	if !ok {
		return NewFileError("cancel", id, ErrUnknownTransfer)
	}

	job, ok := e.jobs[id]
	if !ok {
		job = &outgoing{offer: o, job: Job{ID: id, Name: o.name, Direction: Send, Size: o.size}}
	}
	wasActive := e.active == job

	job.job.Status = StatusCancelled
	job.job.Err = ErrTransferCancelled
	e.release(job)
	delete(e.jobs, id)
	delete(e.offers, id)
	e.order = slices.DeleteFunc(e.order, func(s string) bool { return s == id })
	e.queue = slices.DeleteFunc(e.queue, func(r request) bool { return r.id == id })
	e.logger.Info("transfer cancelled", "job", id, "notify", notify)
	e.observer.JobChanged(job.job.Snapshot())

	if notify && e.ch != nil {
		if err := SendControl(e.ch, protocol.CancelTransfer(id)); err != nil {
			e.logger.Warn("notify peer of cancel", "job", id, "error", err)
		}
	}
	if wasActive {
		e.next()
	}
	return nil
}

// Interrupt marks every transferring, paused or queued job as interrupted.
// Cursors are kept so the peer can resume with request-file.
func (e *Engine) Interrupt(reason error) {
	queued := make(map[string]bool, len(e.queue))
	for _, r := range e.queue {
		queued[r.id] = true
	}
	e.queue = nil

	for _, id := range e.order {
		job, ok := e.jobs[id]
		if !ok || !(job.job.Status.Active() || queued[id]) {
			continue
		}
		job.job.Status = StatusInterrupted
		job.job.Err = reason
		e.release(job)
		e.observer.JobChanged(job.job.Snapshot())
	}
	e.active = nil
}

// CancelAll aborts every job without notifying the peer.
func (e *Engine) CancelAll() {
	for _, id := range slices.Clone(e.order) {
		_ = e.Cancel(id, false)
	}
}

// Snapshots lists the registered jobs in offer order.
func (e *Engine) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(e.jobs))
	for _, id := range e.order {
		if job, ok := e.jobs[id]; ok {
			out = append(out, job.job.Snapshot())
		}
	}
	return out
}
