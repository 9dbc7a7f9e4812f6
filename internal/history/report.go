package history

import (
	"sync/atomic"

	"github.com/ALT-F4-LLC/rewind/internal/model"
)

// Reporter receives diagnostic events from rebuilds. Implementations must be
// safe for concurrent use.
type Reporter interface {
	// Simultaneous is called for every set of activities sharing a timestamp.
	Simultaneous(kind model.Kind, size int)
	// Fallback is called when no consistent order exists for such a set.
	Fallback(kind model.Kind, size int)
	// Inconsistency is called for every repaired mismatch.
	Inconsistency(kind model.Kind, reason string)
	// Rebuilt is called once per successfully rebuilt entity.
	Rebuilt(kind model.Kind, isNew bool, activities int)
}

// Reporters fans events out to several reporters.
type Reporters []Reporter

func (rs Reporters) Simultaneous(kind model.Kind, size int) {
	for _, r := range rs {
		r.Simultaneous(kind, size)
	}
}

func (rs Reporters) Fallback(kind model.Kind, size int) {
	for _, r := range rs {
		r.Fallback(kind, size)
	}
}

func (rs Reporters) Inconsistency(kind model.Kind, reason string) {
	for _, r := range rs {
		r.Inconsistency(kind, reason)
	}
}

func (rs Reporters) Rebuilt(kind model.Kind, isNew bool, activities int) {
	for _, r := range rs {
		r.Rebuilt(kind, isNew, activities)
	}
}

// maxTrackedSize caps the set sizes tracked individually by Stats.
const maxTrackedSize = 16

// ActivityBuckets labels the activity-count buckets used to tally rebuilt entities.
var ActivityBuckets = []string{"0", "1-5", "6-10", ">10"}

// ActivityBucket returns the index into ActivityBuckets for an activity count.
func ActivityBucket(activities int) int {
	switch {
	case activities == 0:
		return 0
	case activities <= 5:
		return 1
	case activities <= 10:
		return 2
	default:
		return 3
	}
}

// Stats counts events in memory.
type Stats struct {
	simultaneous    [maxTrackedSize + 1]atomic.Int64
	fallback        [maxTrackedSize + 1]atomic.Int64
	inconsistencies atomic.Int64
	// entities is indexed by [existing][bucket].
	entities [2][4]atomic.Int64
}

func clampSize(size int) int {
	return min(max(size, 0), maxTrackedSize)
}

func (s *Stats) Simultaneous(_ model.Kind, size int) { s.simultaneous[clampSize(size)].Add(1) }
func (s *Stats) Fallback(_ model.Kind, size int)     { s.fallback[clampSize(size)].Add(1) }
func (s *Stats) Inconsistency(model.Kind, string)    { s.inconsistencies.Add(1) }

func (s *Stats) Rebuilt(_ model.Kind, isNew bool, activities int) {
	existing := 1
	if isNew {
		existing = 0
	}
	s.entities[existing][ActivityBucket(activities)].Add(1)
}

// TallyRow is one cell of the entity tally.
type TallyRow struct {
	New        bool   `json:"new"`
	Activities string `json:"activities"`
	Count      int64  `json:"count"`
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Simultaneous    map[int]int64 `json:"simultaneous"`
	Fallback        map[int]int64 `json:"fallback"`
	Inconsistencies int64         `json:"inconsistencies"`
	Entities        []TallyRow    `json:"entities"`
}

// Snapshot copies the current counts. Zero counts are left out.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Simultaneous:    make(map[int]int64),
		Fallback:        make(map[int]int64),
		Inconsistencies: s.inconsistencies.Load(),
	}
	for size := range s.simultaneous {
		if n := s.simultaneous[size].Load(); n > 0 {
			snap.Simultaneous[size] = n
		}
		if n := s.fallback[size].Load(); n > 0 {
			snap.Fallback[size] = n
		}
	}
	for existing := range s.entities {
		for bucket := range s.entities[existing] {
			if n := s.entities[existing][bucket].Load(); n > 0 {
				snap.Entities = append(snap.Entities, TallyRow{
					New:        existing == 0,
					Activities: ActivityBuckets[bucket],
					Count:      n,
				})
			}
		}
	}
	return snap
}

// Total returns the number of rebuilt entities.
func (snap StatsSnapshot) Total() int64 {
	var total int64
	for _, row := range snap.Entities {
		total += row.Count
	}
	return total
}

type nopReporter struct{}

func (nopReporter) Simultaneous(model.Kind, int)     {}
func (nopReporter) Fallback(model.Kind, int)         {}
func (nopReporter) Inconsistency(model.Kind, string) {}
func (nopReporter) Rebuilt(model.Kind, bool, int)    {}
