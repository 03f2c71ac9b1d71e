//go:build linux

package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"

	"guardians/internal/models"
)

// Procfs reads /proc through prometheus/procfs and controls processes with
// signals.
type Procfs struct {
	fs        procfs.FS
	killGrace time.Duration
	now       func() time.Time
}

// NewProcfs creates a /proc-backed provider rooted at root ("" = /proc)
func NewProcfs(root string, killGrace time.Duration) (*Procfs, error) {
	if root == "" {
		root = procfs.DefaultMountPoint
	}
	fs, err := procfs.NewFS(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if _, err := fs.Stat(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return &Procfs{fs: fs, killGrace: killGrace, now: time.Now}, nil
}

func (p *Procfs) ListProcesses(ctx context.Context) ([]models.ProcessRecord, error) {
	procs, err := p.fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	now := p.now()
	records := make([]models.ProcessRecord, 0, len(procs))
	for _, proc := range procs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: enumeration interrupted: %v", ErrProviderUnavailable, err)
		}
		rec, err := p.read(proc, now)
		if err != nil {
			// exited while we were reading
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (p *Procfs) GetProcess(ctx context.Context, pid int32) (models.ProcessRecord, bool, error) {
	proc, err := p.fs.Proc(int(pid))
	if err == nil {
		var rec models.ProcessRecord
		if rec, err = p.read(proc, p.now()); err == nil {
			return rec, true, nil
		}
	}
	if errors.Is(err, os.ErrNotExist) {
		return models.ProcessRecord{}, false, nil
	}
	return models.ProcessRecord{}, false, classify("inspect", pid, err)
}

func (p *Procfs) read(proc procfs.Proc, now time.Time) (models.ProcessRecord, error) {
	stat, err := proc.Stat()
	if err != nil {
		return models.ProcessRecord{}, err
	}

	rec := models.ProcessRecord{
		PID:            int32(proc.PID),
		ParentPID:      int32(stat.PPID),
		Name:           stat.Comm,
		State:          mapProcState(stat.State),
		ResidentMemory: uint64(max(stat.ResidentMemory(), 0)),
	}

	if start, err := stat.StartTime(); err == nil && start > 0 {
		rec.StartTimeMillis = int64(start * 1000)
		if age := float64(now.UnixMilli())/1000 - start; age > 0 {
			rec.CPUFraction = stat.CPUTime() / age
		}
	}
	if exe, err := proc.Executable(); err == nil {
		rec.ExecutablePath = exe
	}
	return rec, nil
}

// mapProcState converts /proc state codes
func mapProcState(state string) models.ProcessState {
	if len(state) == 0 {
		return models.StateOther
	}
	switch state[0] {
	case 'R':
		return models.StateRunning
	case 'S', 'I':
		return models.StateSleeping
	case 'D', 'W', 'P':
		return models.StateWaiting
	case 'Z':
		return models.StateZombie
	case 'T', 't':
		return models.StateStopped
	default:
		return models.StateOther
	}
}

func (p *Procfs) signal(op string, pid int32, sig unix.Signal) error {
	if pid <= 0 {
		return fmt.Errorf("%w: invalid pid %d", ErrInvalidArgument, pid)
	}
	return classify(op, pid, unix.Kill(int(pid), sig))
}

// Terminate sends SIGTERM, then SIGKILL if the process outlives the grace period
func (p *Procfs) Terminate(ctx context.Context, pid int32) error {
	if err := p.signal("terminate", pid, unix.SIGTERM); err != nil {
		return err
	}

	deadline := time.Now().Add(p.killGrace)
	for time.Now().Before(deadline) {
		if errors.Is(unix.Kill(int(pid), 0), unix.ESRCH) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("terminate pid %d: %w", pid, ErrTimeout)
		case <-time.After(25 * time.Millisecond):
		}
	}

	err := p.signal("kill", pid, unix.SIGKILL)
	if errors.Is(err, ErrProcessGone) {
		return nil
	}
	return err
}

func (p *Procfs) Suspend(ctx context.Context, pid int32) error {
	return p.signal("suspend", pid, unix.SIGSTOP)
}

func (p *Procfs) Resume(ctx context.Context, pid int32) error {
	return p.signal("resume", pid, unix.SIGCONT)
}

func (p *Procfs) SetPriority(ctx context.Context, pid int32, native int) error {
	if pid <= 0 {
		return fmt.Errorf("%w: invalid pid %d", ErrInvalidArgument, pid)
	}
	return classify("set priority", pid, setNativePriority(pid, native))
}

func (p *Procfs) NativePriority(level models.PriorityLevel) (int, error) {
	return nativePriority(level)
}
