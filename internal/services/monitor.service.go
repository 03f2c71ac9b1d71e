package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"guardians/internal/logging"
	"guardians/internal/models"
	"guardians/internal/provider"
)

var monitorLog = logging.L("monitor")

var (
	// ErrNotSelected rejects actions on a pid that is not the resolved selection
	ErrNotSelected = errors.New("pid is not the resolved selection")

	ErrAlreadyStarted = errors.New("monitor already started")
)

const (
	defaultSampleInterval = time.Second
	defaultStopTimeout    = 5 * time.Second
	actionBuffer          = 32
)

// Monitor is the scheduler. One goroutine owns the sampling ticker, every
// projection pass and the handling of action results; intents reach it
// through the ViewStore and the Dispatcher.
type Monitor struct {
	sampler    *Sampler
	view       *ViewStore
	dispatcher *Dispatcher
	history    *HistoryCollector
	interval   time.Duration

	samples chan SampleResult
	refresh chan struct{}

	mu      sync.RWMutex
	snap    *models.ProcessSnapshot
	stale   bool
	latest  models.Projection
	subs    map[*Subscription]struct{}
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool

	// loop-owned
	appliedSeq     uint64
	projectionSeq  uint64
	refreshPending bool
}

// MonitorOptions tunes a Monitor; zero values take defaults
type MonitorOptions struct {
	Interval time.Duration
	History  *HistoryCollector
}

func NewMonitor(sampler *Sampler, view *ViewStore, dispatcher *Dispatcher, opts MonitorOptions) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = defaultSampleInterval
	}
	return &Monitor{
		sampler:    sampler,
		view:       view,
		dispatcher: dispatcher,
		history:    opts.History,
		interval:   opts.Interval,
		samples:    make(chan SampleResult, 1),
		refresh:    make(chan struct{}, 1),
		subs:       map[*Subscription]struct{}{},
		latest:     models.Projection{SelectedIndex: -1, Rows: []models.ProjectedRow{}},
	}
}

// View is the store intents are applied to
func (m *Monitor) View() *ViewStore {
	return m.view
}

// Start samples immediately, then every interval, until Stop or ctx ends.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.cancel != nil || m.stopped {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	if m.history != nil {
		m.history.Start(ctx)
	}
	go m.run(ctx)
	monitorLog.Info("process monitor started", "interval", m.interval)
	return nil
}

// Stop drains pending actions, then stops the loop. Safe to call twice.
func (m *Monitor) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultStopTimeout)
	defer cancel()
	m.Shutdown(ctx)
}

// Shutdown is Stop bounded by ctx
func (m *Monitor) Shutdown(ctx context.Context) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	// the loop keeps consuming results while queued actions finish
	m.dispatcher.Close(ctx)
	if cancel != nil {
		cancel()
		<-done
	}
	if m.history != nil {
		m.history.Stop()
	}

	m.mu.Lock()
	for sub := range m.subs {
		sub.close()
	}
	clear(m.subs)
	m.mu.Unlock()
	monitorLog.Info("process monitor stopped")
}

// Refresh requests a sample now. If one is in flight, another runs right
// after it.
func (m *Monitor) Refresh() {
	select {
	case m.refresh <- struct{}{}:
	default:
	}
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.tick(ctx, false)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx, false)
		case <-m.refresh:
			m.tick(ctx, true)
		case res := <-m.samples:
			m.applySample(res)
			if m.refreshPending {
				m.refreshPending = false
				m.tick(ctx, true)
			}
		case <-m.view.Changed():
			m.reproject()
		case res := <-m.dispatcher.Results():
			m.applyAction(ctx, res)
		}
	}
}

// tick starts a sample. Timer ticks that collide with an in-flight sample
// are dropped; explicit refreshes are remembered instead.
func (m *Monitor) tick(ctx context.Context, explicit bool) {
	started := m.sampler.Tick(ctx, func(res SampleResult) {
		select {
		case m.samples <- res:
		case <-ctx.Done():
		}
	})
	if !started && explicit {
		m.refreshPending = true
	}
}

func (m *Monitor) applySample(res SampleResult) {
	if res.Seq <= m.appliedSeq {
		return
	}
	m.appliedSeq = res.Seq

	m.mu.Lock()
	if res.Err != nil {
		m.stale = true
	} else {
		m.snap = res.Snapshot
		m.stale = false
	}
	m.mu.Unlock()

	proj := m.reproject()
	if res.Err == nil && m.history != nil {
		if row, ok := proj.SelectedRow(); ok {
			m.history.RecordProcess(row.PID, row.CPUPercent, res.Snapshot.TakenAt())
		}
	}
}

// reproject runs the projector against the current snapshot and view and
// publishes the result
func (m *Monitor) reproject() models.Projection {
	view := m.view.Snapshot()

	m.mu.Lock()
	proj := Project(m.snap, view)
	proj.Stale = m.stale
	m.projectionSeq++
	proj.Sequence = m.projectionSeq
	m.latest = proj
	subs := make([]*Subscription, 0, len(m.subs))
	for sub := range m.subs {
		subs = append(subs, sub)
	}
	m.mu.Unlock()

	if m.history != nil && view.SelectedPID == nil {
		m.history.ClearProcess()
	}
	for _, sub := range subs {
		sub.sendProjection(proj)
	}
	return proj
}

func (m *Monitor) applyAction(ctx context.Context, res models.ActionResult) {
	gone := res.ErrorKind == models.ErrorKindProcessGone
	if (res.Kind == models.ActionTerminate && res.OK) || gone {
		m.view.ClearSelectionIf(res.PID)
		m.tick(ctx, true)
	}

	m.mu.RLock()
	subs := make([]*Subscription, 0, len(m.subs))
	for sub := range m.subs {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()
	for _, sub := range subs {
		sub.sendAction(res)
	}
}

// Latest is the most recent projection. Its rows must not be modified.
func (m *Monitor) Latest() models.Projection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// Lookup finds pid in the latest snapshot
func (m *Monitor) Lookup(pid int32) (models.ProcessRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.Lookup(pid)
}

// Inspect reads pid fresh from the provider. A pid that no longer exists
// clears a matching selection and requests a sample. While the provider is
// unavailable the retained record is returned marked stale.
func (m *Monitor) Inspect(ctx context.Context, pid int32) (models.ProcessDetails, error) {
	rec, ok, err := m.sampler.Inspect(ctx, pid)
	switch {
	case err == nil && ok:
		return NewProcessDetails(rec), nil
	case err == nil || errors.Is(err, provider.ErrProcessGone):
		_, cached := m.Lookup(pid)
		if m.view.ClearSelectionIf(pid) || cached {
			monitorLog.Debug("inspected process is gone", logging.KeyPID, pid)
			m.Refresh()
		}
		return models.ProcessDetails{}, fmt.Errorf("inspect pid %d: %w", pid, provider.ErrProcessGone)
	case errors.Is(err, provider.ErrProviderUnavailable):
		if rec, cached := m.Lookup(pid); cached {
			details := NewProcessDetails(rec)
			details.Stale = true
			return details, nil
		}
	}
	return models.ProcessDetails{}, err
}

// Counts summarizes the latest snapshot by classification
func (m *Monitor) Counts() models.ProcessCounts {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := models.ProcessCounts{Total: m.snap.Len(), Stale: m.stale, TakenAt: m.snap.TakenAt()}
	for i := range m.snap.Len() {
		switch Classify(m.snap.At(i)) {
		case models.ClassGuardians:
			counts.Guardians++
		case models.ClassAllies:
			counts.Allies++
		case models.ClassEnemies:
			counts.Enemies++
		}
	}
	return counts
}

// InvokeAction dispatches req if its pid is the resolved selection of the
// latest snapshot under the current view. The outcome is published as an
// action event.
func (m *Monitor) InvokeAction(req models.ActionRequest) (models.ActionRequest, error) {
	view := m.view.Snapshot()
	m.mu.RLock()
	row, ok := Project(m.snap, view).SelectedRow()
	m.mu.RUnlock()
	if !ok || row.PID != req.PID {
		return req, fmt.Errorf("%s pid %d: %w", req.Kind, req.PID, ErrNotSelected)
	}
	return m.dispatcher.Dispatch(req)
}

// Subscribe registers a listener. The current projection is delivered first.
func (m *Monitor) Subscribe() *Subscription {
	sub := newSubscription()
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		sub.close()
		return sub
	}
	m.subs[sub] = struct{}{}
	latest := m.latest
	m.mu.Unlock()
	sub.sendProjection(latest)
	return sub
}

// Unsubscribe removes and closes sub
func (m *Monitor) Unsubscribe(sub *Subscription) {
	m.mu.Lock()
	_, ok := m.subs[sub]
	delete(m.subs, sub)
	m.mu.Unlock()
	if ok {
		sub.close()
	}
}

// Subscription receives monitor events. Projections are latest-wins: a slow
// reader only ever sees the newest one. Action results are queued.
type Subscription struct {
	projections chan models.Projection
	actions     chan models.ActionResult
	mu          sync.Mutex
	closed      bool
	done        chan struct{}
}

func newSubscription() *Subscription {
	return &Subscription{
		projections: make(chan models.Projection, 1),
		actions:     make(chan models.ActionResult, actionBuffer),
		done:        make(chan struct{}),
	}
}

func (s *Subscription) sendProjection(p models.Projection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	// replace any projection the reader has not picked up yet
	select {
	case <-s.projections:
	default:
	}
	s.projections <- p
}

func (s *Subscription) sendAction(res models.ActionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.actions <- res:
	default:
		monitorLog.Warn("subscriber not reading, dropping action result", "id", res.ID)
	}
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
}

// Done is closed when the subscription ends
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Next blocks for the next event. Pending action results are delivered
// before projections.
func (s *Subscription) Next(ctx context.Context) (models.Event, error) {
	select {
	case res := <-s.actions:
		return models.Event{Type: models.EventActionResult, Action: &res}, nil
	default:
	}
	select {
	case res := <-s.actions:
		return models.Event{Type: models.EventActionResult, Action: &res}, nil
	case p := <-s.projections:
		return models.Event{Type: models.EventProjection, Projection: &p}, nil
	case <-s.done:
		return models.Event{}, errors.New("subscription closed")
	case <-ctx.Done():
		return models.Event{}, ctx.Err()
	}
}
