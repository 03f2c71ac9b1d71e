package services

import (
	"context"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"

	"guardians/internal/logging"
	"guardians/internal/models"
)

var metricsLog = logging.L("metrics")

const GB = 1024 * 1024 * 1024

// SystemReader reads host-wide resource usage
type SystemReader interface {
	CPU(ctx context.Context) (*models.CPUStatus, error)
	Memory(ctx context.Context) (*models.MemoryStatus, error)
	Disk(ctx context.Context, path string) (*models.DiskStatus, error)
	// Network returns cumulative counters; rates are left zero.
	Network(ctx context.Context) (*models.NetworkStatus, error)
}

// HostSystem is the gopsutil SystemReader
type HostSystem struct{}

func (HostSystem) CPU(ctx context.Context) (*models.CPUStatus, error) {
	percentage, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, err
	}
	status := &models.CPUStatus{}
	if len(percentage) > 0 {
		status.UsagePercent = percentage[0]
	}

	if perCore, err := cpu.PercentWithContext(ctx, 0, true); err == nil {
		status.PerCore = perCore
	} else {
		metricsLog.Debug("per-core cpu usage unavailable", logging.KeyError, err)
	}
	if count, err := cpu.CountsWithContext(ctx, true); err == nil {
		status.CoreCount = count
	}
	// load average is not available on windows
	if avg, err := load.AvgWithContext(ctx); err == nil {
		status.LoadAverage = avg.Load1
	}
	return status, nil
}

func (HostSystem) Memory(ctx context.Context) (*models.MemoryStatus, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return &models.MemoryStatus{
		TotalGB:      float64(vm.Total) / GB,
		UsedGB:       float64(vm.Used) / GB,
		AvailableGB:  float64(vm.Available) / GB,
		UsagePercent: vm.UsedPercent,
	}, nil
}

func (HostSystem) Disk(ctx context.Context, path string) (*models.DiskStatus, error) {
	if path == "" {
		path = "/"
	}
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return nil, err
	}
	status := &models.DiskStatus{
		Path:         path,
		Filesystem:   usage.Fstype,
		TotalGB:      float64(usage.Total) / GB,
		UsedGB:       float64(usage.Used) / GB,
		FreeGB:       float64(usage.Free) / GB,
		UsagePercent: usage.UsedPercent,
	}
	if counters, err := disk.IOCountersWithContext(ctx); err == nil {
		for _, c := range counters {
			status.ReadBytes += c.ReadBytes
			status.WriteBytes += c.WriteBytes
		}
	}
	return status, nil
}

func (HostSystem) Network(ctx context.Context) (*models.NetworkStatus, error) {
	counters, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		return nil, err
	}
	status := &models.NetworkStatus{Interfaces: len(counters)}
	for _, c := range counters {
		status.BytesSent += c.BytesSent
		status.BytesRecv += c.BytesRecv
		status.ErrorsIn += c.Errin
		status.ErrorsOut += c.Errout
	}
	return status, nil
}
