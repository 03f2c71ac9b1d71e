package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"guardians/internal/models"
)

const defaultMetricsTTL = time.Second

type cached[T any] struct {
	value *T
	at    time.Time
}

// MetricsCache fronts a SystemReader with a short TTL so several clients
// polling the system view cost one host read per TTL.
type MetricsCache struct {
	reader SystemReader
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	cpu     cached[models.CPUStatus]
	memory  cached[models.MemoryStatus]
	disk    cached[models.DiskStatus]
	network cached[models.NetworkStatus]
	lastNet struct {
		sent, recv uint64
		at         time.Time
	}
}

func NewMetricsCache(reader SystemReader, ttl time.Duration) *MetricsCache {
	if ttl <= 0 {
		ttl = defaultMetricsTTL
	}
	return &MetricsCache{reader: reader, ttl: ttl, now: time.Now}
}

// loadCached returns the cached value when fresh, otherwise calls fetch and
// stores its result. The host read happens without holding the lock.
func loadCached[T any](mc *MetricsCache, slot *cached[T], fetch func() (*T, error)) (*T, error) {
	mc.mu.Lock()
	if slot.value != nil && mc.now().Sub(slot.at) < mc.ttl {
		v := slot.value
		mc.mu.Unlock()
		return v, nil
	}
	mc.mu.Unlock()

	v, err := fetch()
	if err != nil {
		return nil, err
	}

	mc.mu.Lock()
	slot.value = v
	slot.at = mc.now()
	mc.mu.Unlock()
	return v, nil
}

func (mc *MetricsCache) CPU(ctx context.Context) (*models.CPUStatus, error) {
	return loadCached(mc, &mc.cpu, func() (*models.CPUStatus, error) { return mc.reader.CPU(ctx) })
}

func (mc *MetricsCache) Memory(ctx context.Context) (*models.MemoryStatus, error) {
	return loadCached(mc, &mc.memory, func() (*models.MemoryStatus, error) { return mc.reader.Memory(ctx) })
}

func (mc *MetricsCache) Disk(ctx context.Context) (*models.DiskStatus, error) {
	return loadCached(mc, &mc.disk, func() (*models.DiskStatus, error) { return mc.reader.Disk(ctx, "/") })
}

// Network returns aggregated counters with send/receive rates computed
// against the previous fresh read.
func (mc *MetricsCache) Network(ctx context.Context) (*models.NetworkStatus, error) {
	return loadCached(mc, &mc.network, func() (*models.NetworkStatus, error) {
		status, err := mc.reader.Network(ctx)
		if err != nil {
			return nil, err
		}
		out := *status

		mc.mu.Lock()
		defer mc.mu.Unlock()
		now := mc.now()
		if !mc.lastNet.at.IsZero() {
			if delta := now.Sub(mc.lastNet.at).Seconds(); delta > 0 {
				// counter resets would go negative
				if out.BytesSent >= mc.lastNet.sent {
					out.BytesSentRate = float64(out.BytesSent-mc.lastNet.sent) / delta
				}
				if out.BytesRecv >= mc.lastNet.recv {
					out.BytesRecvRate = float64(out.BytesRecv-mc.lastNet.recv) / delta
				}
			}
		}
		mc.lastNet.sent, mc.lastNet.recv, mc.lastNet.at = out.BytesSent, out.BytesRecv, now
		return &out, nil
	})
}

// Status is one combined reading for the system monitor view
func (mc *MetricsCache) Status(ctx context.Context, processes int) (*models.SystemStatus, error) {
	cpuStatus, err := mc.CPU(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get CPU usage: %w", err)
	}
	memStatus, err := mc.Memory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get memory usage: %w", err)
	}
	diskStatus, err := mc.Disk(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get disk usage: %w", err)
	}
	netStatus, err := mc.Network(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get network usage: %w", err)
	}
	return &models.SystemStatus{
		CPU:       cpuStatus,
		Memory:    memStatus,
		Disk:      diskStatus,
		Network:   netStatus,
		Processes: processes,
		Timestamp: mc.now(),
	}, nil
}

// Clear drops every cached reading
func (mc *MetricsCache) Clear() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.cpu = cached[models.CPUStatus]{}
	mc.memory = cached[models.MemoryStatus]{}
	mc.disk = cached[models.DiskStatus]{}
	mc.network = cached[models.NetworkStatus]{}
}
