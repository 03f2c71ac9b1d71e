// Package providertest provides a scriptable in-memory ProcessProvider.
package providertest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"guardians/internal/models"
	"guardians/internal/provider"
)

// Call records one control operation received by the fake
type Call struct {
	Op     string
	PID    int32
	Native int
}

// Fake is a ProcessProvider whose records, failures and latencies are set by
// the test. Terminated pids disappear from subsequent listings.
type Fake struct {
	mu       sync.Mutex
	records  []models.ProcessRecord
	listErr  error
	opErrs   map[string]error
	delays   map[string]time.Duration
	calls    []Call
	lists    int
	priority map[models.PriorityLevel]int
}

// Operation names understood by FailOp and Delay
const (
	OpList      = "list"
	OpGet       = "get"
	OpTerminate = "terminate"
	OpSuspend   = "suspend"
	OpResume    = "resume"
	OpPriority  = "priority"
)

func New(records ...models.ProcessRecord) *Fake {
	return &Fake{
		records: slices.Clone(records),
		opErrs:  map[string]error{},
		delays:  map[string]time.Duration{},
		priority: map[models.PriorityLevel]int{
			models.PriorityLow:         19,
			models.PriorityBelowNormal: 10,
			models.PriorityNormal:      0,
			models.PriorityAboveNormal: -5,
			models.PriorityHigh:        -10,
			models.PriorityRealtime:    -20,
		},
	}
}

func (f *Fake) SetRecords(records ...models.ProcessRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = slices.Clone(records)
}

// FailList makes every ListProcesses call fail with err (nil clears it)
func (f *Fake) FailList(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

// FailOp makes op fail with err (nil clears it)
func (f *Fake) FailOp(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.opErrs, op)
		return
	}
	f.opErrs[op] = err
}

// Delay makes op block for d or until its context ends
func (f *Fake) Delay(op string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays[op] = d
}

func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// Lists is the number of ListProcesses calls made so far
func (f *Fake) Lists() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

func (f *Fake) wait(ctx context.Context, op string) error {
	f.mu.Lock()
	d := f.delays[op]
	f.mu.Unlock()
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Fake) ListProcesses(ctx context.Context) ([]models.ProcessRecord, error) {
	f.mu.Lock()
	f.lists++
	f.mu.Unlock()

	if err := f.wait(ctx, OpList); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrProviderUnavailable, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return slices.Clone(f.records), nil
}

func (f *Fake) GetProcess(ctx context.Context, pid int32) (models.ProcessRecord, bool, error) {
	if err := f.wait(ctx, OpGet); err != nil {
		return models.ProcessRecord{}, false, fmt.Errorf("%w: %v", provider.ErrProviderUnavailable, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.opErrs[OpGet]; err != nil {
		return models.ProcessRecord{}, false, err
	}
	for _, r := range f.records {
		if r.PID == pid {
			return r, true, nil
		}
	}
	return models.ProcessRecord{}, false, nil
}

func (f *Fake) control(ctx context.Context, op string, pid int32, native int) error {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Op: op, PID: pid, Native: native})
	f.mu.Unlock()

	if err := f.wait(ctx, op); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.opErrs[op]; err != nil {
		return err
	}
	idx := slices.IndexFunc(f.records, func(r models.ProcessRecord) bool { return r.PID == pid })
	if idx < 0 {
		return fmt.Errorf("%s pid %d: %w", op, pid, provider.ErrProcessGone)
	}
	switch op {
	case OpTerminate:
		f.records = slices.Delete(f.records, idx, idx+1)
	case OpSuspend:
		f.records[idx].State = models.StateStopped
	case OpResume:
		f.records[idx].State = models.StateRunning
	}
	return nil
}

func (f *Fake) Terminate(ctx context.Context, pid int32) error {
	return f.control(ctx, OpTerminate, pid, 0)
}

func (f *Fake) Suspend(ctx context.Context, pid int32) error {
	return f.control(ctx, OpSuspend, pid, 0)
}

func (f *Fake) Resume(ctx context.Context, pid int32) error {
	return f.control(ctx, OpResume, pid, 0)
}

func (f *Fake) SetPriority(ctx context.Context, pid int32, native int) error {
	return f.control(ctx, OpPriority, pid, native)
}

func (f *Fake) NativePriority(level models.PriorityLevel) (int, error) {
	n, ok := f.priority[level]
	if !ok {
		return 0, fmt.Errorf("%w: unknown priority level %q", provider.ErrInvalidArgument, level)
	}
	return n, nil
}

var _ provider.ProcessProvider = (*Fake)(nil)
