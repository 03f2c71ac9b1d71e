package models

import "time"

// Sample is one point of a chart series
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// HistoricalDataWindow holds the chart series for the real-time view.
// ProcessCPU follows whichever pid is selected; it restarts when the selection changes.
type HistoricalDataWindow struct {
	CPU        []Sample `json:"cpu"`
	Memory     []Sample `json:"memory"`
	ProcessPID int32    `json:"process_pid,omitempty"`
	ProcessCPU []Sample `json:"process_cpu"`
}
