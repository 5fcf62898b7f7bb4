package catalog

import (
	"strconv"
	"sync/atomic"
)

const (
	// DefaultGuidStart is the value before the first GUID of the first GuidTracker.
	DefaultGuidStart = -1000
	// GuidRangeSize is the number of GUIDs reserved for each GuidTracker
	// returned by NewGuidTracker.
	GuidRangeSize = 1 << 32
)

// trackers counts the trackers returned by NewGuidTracker.
var trackers atomic.Int64

// GuidTracker hands out placeholder GUIDs for new entities.
// Atlas treats negative GUIDs as local to one request, which lets entities
// of the same batch refer to each other before the catalog has assigned
// permanent GUIDs.
//
// A GuidTracker is owned by a single workflow run and is not safe for
// concurrent use.
type GuidTracker struct {
	current  int64
	increase bool
}

// NewGuidTracker returns a tracker that counts down from its own range
// of GuidRangeSize negative GUIDs. The first tracker of a process starts
// below DefaultGuidStart, so its first GUID is "-1001". Distinct trackers
// never hand out the same GUID.
func NewGuidTracker() *GuidTracker {
	n := trackers.Add(1) - 1
	return NewGuidTrackerFrom(DefaultGuidStart-n*GuidRangeSize, false)
}

// NewGuidTrackerFrom returns a tracker starting after start, counting up if increase is set.
func NewGuidTrackerFrom(start int64, increase bool) *GuidTracker {
	return &GuidTracker{current: start, increase: increase}
}

// Next returns a new GUID. GUIDs are never reused by the same tracker.
func (g *GuidTracker) Next() string {
	if g.increase {
		g.current++
	} else {
		g.current--
	}
	return strconv.FormatInt(g.current, 10)
}
