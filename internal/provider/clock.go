package provider

import (
	"fmt"
	"sync"
	"time"
)

// Clock supplies integer-nanosecond timestamps to adapter edges. In record
// mode it wraps the OS clock and remembers every value it hands out, keyed
// by step, so a later replay of the same run can return the exact same
// value instead of calling time.Now again.
type Clock interface {
	// Now returns the current time as integer nanoseconds for the given
	// step. Record-mode implementations call the OS clock and record the
	// result; replay-mode implementations look the value up.
	Now(step int64) (int64, error)
}

// recordingClock wraps the OS clock and remembers every value returned so a
// Recorder can persist it into the event stream.
type recordingClock struct {
	mu        sync.Mutex
	recorded  map[int64]int64
	nowSource func() time.Time
}

// NewRecordingClock constructs a Clock backed by the OS wall clock. The
// returned clock remembers each value it issues so Recorded can be used to
// build the event's clock_ns field.
func NewRecordingClock() Clock {
	return &recordingClock{
		recorded:  make(map[int64]int64),
		nowSource: time.Now,
	}
}

func (c *recordingClock) Now(step int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.recorded[step]; ok {
		return v, nil
	}
	v := c.nowSource().UnixNano()
	c.recorded[step] = v
	return v, nil
}

// Recorded returns the nanosecond value previously issued for step, if any.
func Recorded(c Clock, step int64) (int64, bool) {
	rc, ok := c.(*recordingClock)
	if !ok {
		return 0, false
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	v, ok := rc.recorded[step]
	return v, ok
}

// ReplayClock returns exactly the values recorded at the same step during
// the original run. A lookup for a step that was never recorded is a fatal
// replay mismatch: the caller's edge sequence has diverged from the
// recording.
type ReplayClock struct {
	values map[int64]int64
}

// NewReplayClock constructs a Clock that replays previously recorded
// nanosecond timestamps keyed by step.
func NewReplayClock(values map[int64]int64) *ReplayClock {
	return &ReplayClock{values: values}
}

func (c *ReplayClock) Now(step int64) (int64, error) {
	v, ok := c.values[step]
	if !ok {
		return 0, fmt.Errorf("provider: no recorded clock value for step %d", step)
	}
	return v, nil
}
