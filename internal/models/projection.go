package models

import "time"

// ProjectedRow is one visible table row. Presentation maps fields to columns.
type ProjectedRow struct {
	PID             int32          `json:"pid"`
	ParentPID       int32          `json:"parent_pid"`
	Name            string         `json:"name"`
	DisplayName     string         `json:"display_name"`
	CPUPercent      float64        `json:"cpu_percent"`
	ResidentMemory  uint64         `json:"resident_memory_bytes"`
	Memory          string         `json:"memory"`
	State           ProcessState   `json:"state"`
	Classification  Classification `json:"classification"`
	StartTimeMillis int64          `json:"start_time_ms"`
	ExecutablePath  string         `json:"executable_path,omitempty"`
}

// Projection is the filtered, sorted, selection-resolved view of one snapshot.
// SelectedIndex is only meaningful when Resolved is true.
type Projection struct {
	Rows          []ProjectedRow `json:"rows"`
	Resolved      bool           `json:"resolved"`
	SelectedIndex int            `json:"selected_index"`
	View          ViewState      `json:"view"`
	Total         int            `json:"total"`
	TakenAt       time.Time      `json:"taken_at"`
	Stale         bool           `json:"stale"`
	Sequence      uint64         `json:"sequence"`
}

// SelectedRow returns the resolved selection, if any
func (p Projection) SelectedRow() (ProjectedRow, bool) {
	if !p.Resolved || p.SelectedIndex < 0 || p.SelectedIndex >= len(p.Rows) {
		return ProjectedRow{}, false
	}
	return p.Rows[p.SelectedIndex], true
}
