package transfer

import (
	"time"
)

// Progress is one throttled sample of a job's advance.
type Progress struct {
	ID       string
	Done     int64
	Total    int64
	Speed    float64 // bytes per second since the previous sample
	ETA      time.Duration
	ETAKnown bool
}

// sampler throttles progress to one sample per interval and computes the
// instantaneous speed between consecutive samples.
type sampler struct {
	interval  time.Duration
	lastAt    time.Time
	lastBytes int64
}

func (s *sampler) reset(now time.Time, bytes int64) {
	s.lastAt = now
	s.lastBytes = bytes
}

// sample returns a Progress if the interval has elapsed or force is set.
func (s *sampler) sample(now time.Time, id string, done, total int64, force bool) (Progress, bool) {
	elapsed := now.Sub(s.lastAt)
	if !force && elapsed < s.interval {
		return Progress{}, false
	}

	p := Progress{ID: id, Done: done, Total: total}
	if elapsed > 0 {
		p.Speed = float64(done-s.lastBytes) / elapsed.Seconds()
	}
	s.reset(now, done)

	remaining := total - done
	switch {
	case remaining <= 0:
		p.ETAKnown = true
	case p.Speed > 0:
		p.ETA = time.Duration(float64(remaining) / p.Speed * float64(time.Second))
		p.ETAKnown = true
	}
	return p, true
}
