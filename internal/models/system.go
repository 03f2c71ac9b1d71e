package models

import "time"

// CPUStatus is host-wide CPU usage
type CPUStatus struct {
	UsagePercent float64   `json:"usage_percent"`
	PerCore      []float64 `json:"per_core,omitempty"`
	CoreCount    int       `json:"core_count"`
	LoadAverage  float64   `json:"load_average_1m"`
}

// MemoryStatus is host-wide physical memory usage
type MemoryStatus struct {
	TotalGB      float64 `json:"total_gb"`
	UsedGB       float64 `json:"used_gb"`
	AvailableGB  float64 `json:"available_gb"`
	UsagePercent float64 `json:"usage_percent"`
}

// DiskStatus is usage and cumulative I/O of one mount point
type DiskStatus struct {
	Path         string  `json:"path"`
	Filesystem   string  `json:"filesystem"`
	TotalGB      float64 `json:"total_gb"`
	UsedGB       float64 `json:"used_gb"`
	FreeGB       float64 `json:"free_gb"`
	UsagePercent float64 `json:"usage_percent"`
	ReadBytes    uint64  `json:"read_bytes"`
	WriteBytes   uint64  `json:"write_bytes"`
}

// NetworkStatus aggregates counters across all interfaces
type NetworkStatus struct {
	Interfaces    int     `json:"interfaces"`
	BytesSent     uint64  `json:"bytes_sent"`
	BytesRecv     uint64  `json:"bytes_recv"`
	BytesSentRate float64 `json:"bytes_sent_rate"` // bytes/sec
	BytesRecvRate float64 `json:"bytes_recv_rate"` // bytes/sec
	ErrorsIn      uint64  `json:"errors_in"`
	ErrorsOut     uint64  `json:"errors_out"`
}

// SystemStatus is what the system monitor view shows
type SystemStatus struct {
	CPU       *CPUStatus     `json:"cpu"`
	Memory    *MemoryStatus  `json:"memory"`
	Disk      *DiskStatus    `json:"disk"`
	Network   *NetworkStatus `json:"network"`
	Processes int            `json:"processes"`
	Timestamp time.Time      `json:"timestamp"`
}
