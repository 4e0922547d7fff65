package transfer

import "time"

// Flow control and sampling defaults.
const (
	DefaultChunkSize        = 64 * 1024        // 64 KiB per binary frame
	DefaultHighWaterMark    = 16 * 1024 * 1024 // stop scheduling reads above this
	DefaultLowWaterMark     = 1024 * 1024      // buffered-amount-low threshold
	DefaultProgressInterval = 500 * time.Millisecond
)

// Direction tells which side of a transfer a job lives on.
type Direction int

const (
	Send Direction = iota
	Receive
)

func (d Direction) String() string {
	if d == Receive {
		return "receive"
	}
	return "send"
}

// Status is the lifecycle state of a TransferJob.
type Status int

const (
	StatusWaiting Status = iota
	StatusTransferring
	StatusPaused
	StatusInterrupted
	StatusCancelled
	StatusCompleted
)

var statusNames = [...]string{
	StatusWaiting:      "waiting",
	StatusTransferring: "transferring",
	StatusPaused:       "paused",
	StatusInterrupted:  "interrupted",
	StatusCancelled:    "cancelled",
	StatusCompleted:    "completed",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// Active reports whether a job in this status still holds transfer state
// that a disconnect would interrupt.
func (s Status) Active() bool {
	return s == StatusTransferring || s == StatusPaused
}

// Options tunes an Engine or Sink. Zero fields take the defaults above.
type Options struct {
	ChunkSize        int
	HighWaterMark    uint64
	LowWaterMark     uint64
	ProgressInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.HighWaterMark == 0 {
		o.HighWaterMark = DefaultHighWaterMark
	}
	if o.LowWaterMark == 0 {
		o.LowWaterMark = DefaultLowWaterMark
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = DefaultProgressInterval
	}
	return o
}

// Validate rejects settings under which a buffered-amount-low event could
// fire while no chunk fits under the high-water mark.
func (o Options) Validate() error {
	o = o.withDefaults()
	if o.LowWaterMark+uint64(o.ChunkSize) > o.HighWaterMark {
		return WrapError("validate options", ErrInvalidOptions, "low-water mark plus one chunk must not exceed the high-water mark")
	}
	return nil
}
