package services

import (
	"context"
	"slices"
	"sync"
	"time"

	"guardians/internal/logging"
	"guardians/internal/models"
)

var historyLog = logging.L("history")

const defaultHistoryPoints = 60

// HistoryCollector keeps the real-time chart series: host CPU and memory on
// its own ticker, and the selected process's CPU fed by the monitor.
type HistoryCollector struct {
	reader    SystemReader
	interval  time.Duration
	maxPoints int
	now       func() time.Time

	mu         sync.RWMutex
	cpu        []models.Sample
	memory     []models.Sample
	processPID int32
	processCPU []models.Sample

	cancel context.CancelFunc
	done   chan struct{}
}

func NewHistoryCollector(reader SystemReader, interval time.Duration, points int) *HistoryCollector {
	if points <= 0 {
		points = defaultHistoryPoints
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &HistoryCollector{reader: reader, interval: interval, maxPoints: points, now: time.Now}
}

// Start launches the collection loop; it is a no-op when already running
func (hc *HistoryCollector) Start(ctx context.Context) {
	hc.mu.Lock()
	if hc.cancel != nil {
		hc.mu.Unlock()
		return
	}
	ctx, hc.cancel = context.WithCancel(ctx)
	hc.done = make(chan struct{})
	done := hc.done
	hc.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(hc.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				hc.Collect(ctx)
			}
		}
	}()
	historyLog.Info("history collector started", "interval", hc.interval, "points", hc.maxPoints)
}

// Stop ends the collection loop and waits for it
func (hc *HistoryCollector) Stop() {
	hc.mu.Lock()
	cancel, done := hc.cancel, hc.done
	hc.cancel, hc.done = nil, nil
	hc.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	historyLog.Info("history collector stopped")
}

// Collect appends one host reading. Host calls run outside the lock.
func (hc *HistoryCollector) Collect(ctx context.Context) {
	now := hc.now()
	cpuStatus, cpuErr := hc.reader.CPU(ctx)
	memStatus, memErr := hc.reader.Memory(ctx)

	hc.mu.Lock()
	defer hc.mu.Unlock()
	if cpuErr == nil {
		hc.cpu = hc.appendPoint(hc.cpu, models.Sample{Timestamp: now, Value: cpuStatus.UsagePercent})
	} else {
		historyLog.Debug("cpu reading failed", logging.KeyError, cpuErr)
	}
	if memErr == nil {
		hc.memory = hc.appendPoint(hc.memory, models.Sample{Timestamp: now, Value: memStatus.UsagePercent})
	} else {
		historyLog.Debug("memory reading failed", logging.KeyError, memErr)
	}
}

// RecordProcess appends the selected process's CPU percentage. A different
// pid restarts the series.
func (hc *HistoryCollector) RecordProcess(pid int32, cpuPercent float64, at time.Time) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if pid != hc.processPID {
		hc.processPID = pid
		hc.processCPU = nil
	}
	hc.processCPU = hc.appendPoint(hc.processCPU, models.Sample{Timestamp: at, Value: cpuPercent})
}

// ClearProcess drops the process series, used when nothing is selected
func (hc *HistoryCollector) ClearProcess() {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.processPID = 0
	hc.processCPU = nil
}

func (hc *HistoryCollector) appendPoint(series []models.Sample, s models.Sample) []models.Sample {
	series = append(series, s)
	if over := len(series) - hc.maxPoints; over > 0 {
		series = slices.Delete(series, 0, over)
	}
	return series
}

// Window returns points newer than duration; zero means everything
func (hc *HistoryCollector) Window(duration time.Duration) models.HistoricalDataWindow {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	var cutoff time.Time
	if duration > 0 {
		cutoff = hc.now().Add(-duration)
	}
	return models.HistoricalDataWindow{
		CPU:        since(hc.cpu, cutoff),
		Memory:     since(hc.memory, cutoff),
		ProcessPID: hc.processPID,
		ProcessCPU: since(hc.processCPU, cutoff),
	}
}

func since(series []models.Sample, cutoff time.Time) []models.Sample {
	out := []models.Sample{}
	for _, s := range series {
		if s.Timestamp.After(cutoff) {
			out = append(out, s)
		}
	}
	return out
}
