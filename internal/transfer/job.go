package transfer

import (
	"github.com/BioHazard786/Roomdrop/internal/utils"
)

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Job is the state of one file moving through a room in one direction.
type Job struct {
	ID        string
	Name      string
	Direction Direction
	Size      int64
	Cursor    int64
	Status    Status
	Err       error
}

// Snapshot is an immutable copy of a Job handed to observers.
type Snapshot struct {
	ID        string
	Name      string
	Direction Direction
	Size      int64
	Cursor    int64
	Status    Status
	Err       string
}

func (j *Job) Snapshot() Snapshot {
	s := Snapshot{
		ID:        j.ID,
		Name:      j.Name,
		Direction: j.Direction,
		Size:      j.Size,
		Cursor:    j.Cursor,
		Status:    j.Status,
	}
	if j.Err != nil {
		s.Err = j.Err.Error()
	}
	return s
}

// NewID returns a fresh transfer id of eight random alphanumerics.
func NewID() string {
	return utils.RandomString(8, idAlphabet)
}

// Observer receives job status changes and sampled progress. Calls arrive
// on the owning room's executor and must not block.
type Observer interface {
	JobChanged(Snapshot)
	JobProgress(Progress)
}

// NopObserver discards every notification.
type NopObserver struct{}

func (NopObserver) JobChanged(Snapshot)  {}
func (NopObserver) JobProgress(Progress) {}
