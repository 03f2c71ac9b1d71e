// Package provider wraps host OS process queries and process control behind
// a capability interface with swappable host-specific backends.
package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"guardians/internal/models"
)

// ProcessProvider is the host capability consumed by the sampler and the
// action dispatcher. Implementations must be safe for concurrent use.
type ProcessProvider interface {
	// ListProcesses enumerates every process. Any failure of the enumeration
	// itself is reported as ErrProviderUnavailable and no records are returned.
	ListProcesses(ctx context.Context) ([]models.ProcessRecord, error)
	// GetProcess looks up one pid; ok is false when it does not exist.
	GetProcess(ctx context.Context, pid int32) (rec models.ProcessRecord, ok bool, err error)
	Terminate(ctx context.Context, pid int32) error
	Suspend(ctx context.Context, pid int32) error
	Resume(ctx context.Context, pid int32) error
	// SetPriority applies a host-native priority value, see NativePriority.
	SetPriority(ctx context.Context, pid int32, native int) error
	// NativePriority maps a level onto the host's priority encoding.
	NativePriority(level models.PriorityLevel) (int, error)
}

// Backend names accepted by New
const (
	BackendGopsutil = "gopsutil"
	BackendProcfs   = "procfs"
)

// Options selects and tunes a backend
type Options struct {
	Backend      string
	ExeCacheSize int
	KillGrace    time.Duration
	ProcRoot     string // procfs only, defaults to /proc
}

// New builds the configured backend
func New(opts Options) (ProcessProvider, error) {
	if opts.KillGrace <= 0 {
		opts.KillGrace = 250 * time.Millisecond
	}
	switch strings.ToLower(opts.Backend) {
	case "", BackendGopsutil:
		h, err := NewHost(opts.ExeCacheSize, opts.KillGrace)
		if err != nil {
			return nil, err
		}
		return h, nil
	case BackendProcfs:
		p, err := NewProcfs(opts.ProcRoot, opts.KillGrace)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("%w: unknown provider backend %q", ErrInvalidArgument, opts.Backend)
}
