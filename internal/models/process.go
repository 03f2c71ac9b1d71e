package models

import "time"

// ProcessState mirrors the host OS process state taxonomy
type ProcessState string

const (
	StateRunning  ProcessState = "running"
	StateSleeping ProcessState = "sleeping"
	StateWaiting  ProcessState = "waiting"
	StateZombie   ProcessState = "zombie"
	StateStopped  ProcessState = "stopped"
	StateOther    ProcessState = "other"
)

// ProcessRecord is one OS process as seen at sample time
type ProcessRecord struct {
	PID             int32        `json:"pid"`
	ParentPID       int32        `json:"parent_pid"`
	Name            string       `json:"name"`
	CPUFraction     float64      `json:"cpu_fraction"` // cumulative load, nominally [0, 1]
	ResidentMemory  uint64       `json:"resident_memory_bytes"`
	State           ProcessState `json:"state"`
	StartTimeMillis int64        `json:"start_time_ms"` // 0 = unknown
	ExecutablePath  string       `json:"executable_path,omitempty"`
}

// Classification is the three-way tag used for filtering and display
type Classification string

const (
	ClassGuardians Classification = "guardians"
	ClassAllies    Classification = "allies"
	ClassEnemies   Classification = "enemies"
)

// ProcessDetails is the expanded view of a single process
type ProcessDetails struct {
	ProjectedRow
	StartTime string `json:"start_time"`
	// Stale is set when the provider could not be read and the record comes
	// from the last good snapshot
	Stale bool `json:"stale,omitempty"`
}

// ProcessCounts summarizes the latest snapshot by classification
type ProcessCounts struct {
	Total     int       `json:"total"`
	Guardians int       `json:"guardians"`
	Allies    int       `json:"allies"`
	Enemies   int       `json:"enemies"`
	Stale     bool      `json:"stale"`
	TakenAt   time.Time `json:"taken_at"`
}
