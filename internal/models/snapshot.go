package models

import (
	"sort"
	"time"
)

// ProcessSnapshot is an immutable, pid-ascending capture of one provider query.
// The zero value is an empty snapshot.
type ProcessSnapshot struct {
	records []ProcessRecord
	index   map[int32]int
	takenAt time.Time
}

// NewProcessSnapshot copies records, orders them by pid and drops duplicate pids
// (first occurrence wins).
func NewProcessSnapshot(records []ProcessRecord, takenAt time.Time) *ProcessSnapshot {
	sorted := make([]ProcessRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PID < sorted[j].PID
	})

	snap := &ProcessSnapshot{
		records: sorted[:0],
		index:   make(map[int32]int, len(sorted)),
		takenAt: takenAt,
	}
	for _, r := range sorted {
		if _, seen := snap.index[r.PID]; seen {
			continue
		}
		snap.index[r.PID] = len(snap.records)
		snap.records = append(snap.records, r)
	}
	return snap
}

// Len returns the number of records
func (s *ProcessSnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// At returns the i-th record in pid order
func (s *ProcessSnapshot) At(i int) ProcessRecord {
	return s.records[i]
}

// Records returns a copy of the records in pid order
func (s *ProcessSnapshot) Records() []ProcessRecord {
	if s == nil {
		return nil
	}
	out := make([]ProcessRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Lookup finds a record by pid
func (s *ProcessSnapshot) Lookup(pid int32) (ProcessRecord, bool) {
	if s == nil {
		return ProcessRecord{}, false
	}
	i, ok := s.index[pid]
	if !ok {
		return ProcessRecord{}, false
	}
	return s.records[i], true
}

// TakenAt is when the provider query completed
func (s *ProcessSnapshot) TakenAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.takenAt
}
