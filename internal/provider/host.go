package provider

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shirou/gopsutil/v3/process"

	"guardians/internal/logging"
	"guardians/internal/models"
)

var log = logging.L("provider")

const defaultExeCacheSize = 4096

// exeKey includes the start time so a reused pid never inherits a stale path
type exeKey struct {
	pid     int32
	created int64
}

// Host is the gopsutil-backed provider, available on every supported OS.
type Host struct {
	exeCache  *lru.Cache[exeKey, string]
	killGrace time.Duration
}

// NewHost creates the gopsutil provider
func NewHost(exeCacheSize int, killGrace time.Duration) (*Host, error) {
	if exeCacheSize <= 0 {
		exeCacheSize = defaultExeCacheSize
	}
	cache, err := lru.New[exeKey, string](exeCacheSize)
	if err != nil {
		return nil, err
	}
	return &Host{exeCache: cache, killGrace: killGrace}, nil
}

func (h *Host) ListProcesses(ctx context.Context) ([]models.ProcessRecord, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	records := make([]models.ProcessRecord, 0, len(procs))
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: enumeration interrupted: %v", ErrProviderUnavailable, err)
		}
		rec, err := h.record(ctx, p)
		if err != nil {
			// exited between enumeration and inspection
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (h *Host) GetProcess(ctx context.Context, pid int32) (models.ProcessRecord, bool, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		if isGone(err) {
			return models.ProcessRecord{}, false, nil
		}
		return models.ProcessRecord{}, false, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	rec, err := h.record(ctx, p)
	if err != nil {
		if isGone(err) {
			return models.ProcessRecord{}, false, nil
		}
		return models.ProcessRecord{}, false, classify("inspect", pid, err)
	}
	return rec, true, nil
}

// record reads one process. Only the name is mandatory; other fields fall
// back to zero values the way the table shows them.
func (h *Host) record(ctx context.Context, p *process.Process) (models.ProcessRecord, error) {
	name, err := p.NameWithContext(ctx)
	if err != nil {
		return models.ProcessRecord{}, err
	}

	rec := models.ProcessRecord{
		PID:   p.Pid,
		Name:  name,
		State: models.StateOther,
	}
	if ppid, err := p.PpidWithContext(ctx); err == nil {
		rec.ParentPID = ppid
	}
	if pct, err := p.CPUPercentWithContext(ctx); err == nil {
		rec.CPUFraction = pct / 100
	}
	if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		rec.ResidentMemory = mem.RSS
	}
	if status, err := p.StatusWithContext(ctx); err == nil && len(status) > 0 {
		rec.State = mapGopsutilStatus(status[0])
	}
	if created, err := p.CreateTimeWithContext(ctx); err == nil {
		rec.StartTimeMillis = created
	}
	rec.ExecutablePath = h.exe(ctx, p, rec.StartTimeMillis)
	return rec, nil
}

func (h *Host) exe(ctx context.Context, p *process.Process, created int64) string {
	key := exeKey{pid: p.Pid, created: created}
	if path, ok := h.exeCache.Get(key); ok {
		return path
	}
	path, err := p.ExeWithContext(ctx)
	if err != nil {
		path = ""
	}
	h.exeCache.Add(key, path)
	return path
}

// mapGopsutilStatus folds gopsutil's status names into ProcessState
func mapGopsutilStatus(status string) models.ProcessState {
	switch status {
	case "running", "R":
		return models.StateRunning
	case "sleep", "idle", "S", "I":
		return models.StateSleeping
	case "wait", "lock", "disk-sleep", "D", "L", "W":
		return models.StateWaiting
	case "zombie", "Z":
		return models.StateZombie
	case "stop", "T", "t":
		return models.StateStopped
	default:
		return models.StateOther
	}
}

func (h *Host) open(ctx context.Context, op string, pid int32) (*process.Process, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("%w: invalid pid %d", ErrInvalidArgument, pid)
	}
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil, classify(op, pid, err)
	}
	return p, nil
}

// Terminate asks the process to exit and force-kills it if it is still
// running after the grace period.
func (h *Host) Terminate(ctx context.Context, pid int32) error {
	p, err := h.open(ctx, "terminate", pid)
	if err != nil {
		return err
	}
	if err := p.TerminateWithContext(ctx); err != nil {
		return classify("terminate", pid, err)
	}

	deadline := time.Now().Add(h.killGrace)
	for time.Now().Before(deadline) {
		running, err := p.IsRunningWithContext(ctx)
		if err != nil || !running {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("terminate pid %d: %w", pid, ErrTimeout)
		case <-time.After(25 * time.Millisecond):
		}
	}

	log.Info("process ignored terminate request, killing", logging.KeyPID, pid)
	if err := p.KillWithContext(ctx); err != nil && !isGone(err) {
		return classify("kill", pid, err)
	}
	return nil
}

func (h *Host) Suspend(ctx context.Context, pid int32) error {
	p, err := h.open(ctx, "suspend", pid)
	if err != nil {
		return err
	}
	return classify("suspend", pid, p.SuspendWithContext(ctx))
}

func (h *Host) Resume(ctx context.Context, pid int32) error {
	p, err := h.open(ctx, "resume", pid)
	if err != nil {
		return err
	}
	return classify("resume", pid, p.ResumeWithContext(ctx))
}

func (h *Host) SetPriority(ctx context.Context, pid int32, native int) error {
	if _, err := h.open(ctx, "set priority", pid); err != nil {
		return err
	}
	return classify("set priority", pid, setNativePriority(pid, native))
}

func (h *Host) NativePriority(level models.PriorityLevel) (int, error) {
	return nativePriority(level)
}
