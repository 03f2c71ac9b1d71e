package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"guardians/internal/imetrics"
	"guardians/internal/logging"
	"guardians/internal/models"
	"guardians/internal/provider"
)

var samplerLog = logging.L("sampler")

// SampleResult is the outcome of one enumeration. Seq increases with every
// attempt, so a consumer can drop results older than one it already applied.
type SampleResult struct {
	Seq      uint64
	Snapshot *models.ProcessSnapshot
	Err      error
	Took     time.Duration
}

// Sampler turns provider enumerations into immutable snapshots and keeps
// the last good one.
type Sampler struct {
	provider provider.ProcessProvider
	metrics  imetrics.Reporter
	now      func() time.Time

	inFlight atomic.Bool
	seq      atomic.Uint64

	mu      sync.RWMutex
	latest  *models.ProcessSnapshot
	failing bool
	lastErr error
}

func NewSampler(p provider.ProcessProvider, metrics imetrics.Reporter) *Sampler {
	if metrics == nil {
		metrics = imetrics.NoopReporter{}
	}
	return &Sampler{provider: p, metrics: metrics, now: time.Now}
}

// Sample enumerates once. It is all-or-nothing: on error no snapshot is
// produced and the previously retained one stays current.
func (s *Sampler) Sample(ctx context.Context) SampleResult {
	res := SampleResult{Seq: s.seq.Add(1)}
	start := s.now()

	records, err := s.provider.ListProcesses(ctx)
	res.Took = s.now().Sub(start)
	if err != nil {
		if !errors.Is(err, provider.ErrProviderUnavailable) {
			err = fmt.Errorf("%w: %v", provider.ErrProviderUnavailable, err)
		}
		res.Err = err
		s.recordFailure(err)
		s.metrics.SampleFinished(imetrics.SampleFailed, res.Took, 0)
		return res
	}

	res.Snapshot = models.NewProcessSnapshot(records, start)
	s.recordSuccess(res.Snapshot)
	s.metrics.SampleFinished(imetrics.SampleOK, res.Took, res.Snapshot.Len())
	return res
}

// Tick starts a sample in the background and hands its result to deliver.
// When the previous sample is still running the tick is skipped, not
// queued, and Tick returns false.
func (s *Sampler) Tick(ctx context.Context, deliver func(SampleResult)) bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.metrics.SampleFinished(imetrics.SampleSkipped, 0, 0)
		samplerLog.Debug("previous sample still in flight, skipping tick")
		return false
	}
	go func() {
		res := s.Sample(ctx)
		// cleared before delivery so the receiver may tick again at once
		s.inFlight.Store(false)
		deliver(res)
	}()
	return true
}

// Inspect reads a single process straight from the provider, bypassing the
// retained snapshot
func (s *Sampler) Inspect(ctx context.Context, pid int32) (models.ProcessRecord, bool, error) {
	return s.provider.GetProcess(ctx, pid)
}

// InFlight reports whether a background sample is running
func (s *Sampler) InFlight() bool {
	return s.inFlight.Load()
}

// Latest is the last successful snapshot (nil before the first) and whether
// the most recent attempt failed.
func (s *Sampler) Latest() (*models.ProcessSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.failing
}

// LastError is the error of the current failure streak, nil when healthy
func (s *Sampler) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Sampler) recordSuccess(snap *models.ProcessSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		samplerLog.Info("process sampling recovered", "processes", snap.Len())
	}
	s.latest = snap
	s.failing = false
	s.lastErr = nil
}

func (s *Sampler) recordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.failing {
		samplerLog.Warn("process sampling failed, keeping previous snapshot", logging.KeyError, err)
	}
	s.failing = true
	s.lastErr = err
}
