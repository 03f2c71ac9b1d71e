package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardians/internal/models"
	"guardians/internal/provider"
	"guardians/internal/provider/providertest"
	"guardians/internal/workerpool"
)

const waitFor = 5 * time.Second

func newTestMonitor(t *testing.T, fake *providertest.Fake, history *HistoryCollector) *Monitor {
	t.Helper()
	sampler := NewSampler(fake, nil)
	dispatcher := NewDispatcher(fake, workerpool.New(2, 8), time.Second, nil)
	// ticks only happen on start and on explicit refresh
	m := NewMonitor(sampler, NewViewStore(), dispatcher, MonitorOptions{Interval: time.Hour, History: history})
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Stop)
	return m
}

// nextEvent waits for an event of type typ that satisfies ok
func nextEvent(t *testing.T, sub *Subscription, typ string, ok func(models.Event) bool) models.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	for {
		ev, err := sub.Next(ctx)
		require.NoError(t, err, "waiting for %s event", typ)
		if ev.Type == typ && (ok == nil || ok(ev)) {
			return ev
		}
	}
}

func hasRows(n int) func(models.Event) bool {
	return func(ev models.Event) bool { return len(ev.Projection.Rows) == n }
}

func TestMonitorPublishesProjections(t *testing.T) {
	fake := providertest.New(sampleRecords...)
	m := newTestMonitor(t, fake, nil)
	sub := m.Subscribe()

	ev := nextEvent(t, sub, models.EventProjection, hasRows(len(sampleRecords)))
	assert.Equal(t, len(sampleRecords), ev.Projection.Total)

	m.View().SetClassFilter(models.FilterEnemies)
	ev = nextEvent(t, sub, models.EventProjection, hasRows(1))
	assert.Equal(t, int32(300), ev.Projection.Rows[0].PID)
	assert.Equal(t, models.FilterEnemies, ev.Projection.View.ClassFilter)

	counts := m.Counts()
	assert.Equal(t, len(sampleRecords), counts.Total)
	assert.Equal(t, 2, counts.Guardians)
	assert.Equal(t, 1, counts.Enemies)
	assert.Equal(t, 2, counts.Allies)

	rec, ok := m.Lookup(301)
	require.True(t, ok)
	assert.Equal(t, "chrome.exe", rec.Name)
}

func TestMonitorTerminateClearsSelectionAndRefreshes(t *testing.T) {
	fake := providertest.New(sampleRecords...)
	m := newTestMonitor(t, fake, nil)
	sub := m.Subscribe()
	nextEvent(t, sub, models.EventProjection, hasRows(len(sampleRecords)))

	m.View().Select(300)
	nextEvent(t, sub, models.EventProjection, func(ev models.Event) bool { return ev.Projection.Resolved })
	lists := fake.Lists()

	req, err := m.InvokeAction(models.ActionRequest{Kind: models.ActionTerminate, PID: 300})
	require.NoError(t, err)

	res := nextEvent(t, sub, models.EventActionResult, nil)
	assert.Equal(t, req.ID, res.Action.ID)
	assert.True(t, res.Action.OK)

	ev := nextEvent(t, sub, models.EventProjection, hasRows(len(sampleRecords)-1))
	assert.Nil(t, ev.Projection.View.SelectedPID)
	assert.False(t, ev.Projection.Resolved)
	assert.Nil(t, m.View().Snapshot().SelectedPID)
	assert.Greater(t, fake.Lists(), lists, "terminate must trigger an immediate sample")
}

func TestMonitorFailedTerminateKeepsSelection(t *testing.T) {
	records := append([]models.ProcessRecord{}, sampleRecords...)
	records = append(records, models.ProcessRecord{PID: 9999, Name: "stubborn"})
	fake := providertest.New(records...)
	fake.FailOp(providertest.OpTerminate, errors.New("terminate refused"))
	m := newTestMonitor(t, fake, nil)
	sub := m.Subscribe()
	nextEvent(t, sub, models.EventProjection, hasRows(len(records)))

	m.View().Select(9999)
	nextEvent(t, sub, models.EventProjection, func(ev models.Event) bool { return ev.Projection.Resolved })

	_, err := m.InvokeAction(models.ActionRequest{Kind: models.ActionTerminate, PID: 9999})
	require.NoError(t, err)
	res := nextEvent(t, sub, models.EventActionResult, nil)
	assert.False(t, res.Action.OK)
	assert.Equal(t, models.ErrorKindFailed, res.Action.ErrorKind)

	sel := m.View().Snapshot().SelectedPID
	require.NotNil(t, sel)
	assert.Equal(t, int32(9999), *sel)

	// sampling carries on
	lists := fake.Lists()
	m.Refresh()
	assert.Eventually(t, func() bool { return fake.Lists() > lists }, waitFor, 5*time.Millisecond)
}

func TestMonitorProcessGoneClearsSelection(t *testing.T) {
	fake := providertest.New(sampleRecords...)
	m := newTestMonitor(t, fake, nil)
	sub := m.Subscribe()
	nextEvent(t, sub, models.EventProjection, hasRows(len(sampleRecords)))

	m.View().Select(302)
	nextEvent(t, sub, models.EventProjection, func(ev models.Event) bool { return ev.Projection.Resolved })
	fake.FailOp(providertest.OpSuspend, provider.ErrProcessGone)

	_, err := m.InvokeAction(models.ActionRequest{Kind: models.ActionSuspend, PID: 302})
	require.NoError(t, err)
	res := nextEvent(t, sub, models.EventActionResult, nil)
	assert.Equal(t, models.ErrorKindProcessGone, res.Action.ErrorKind)
	assert.Eventually(t, func() bool { return m.View().Snapshot().SelectedPID == nil }, waitFor, 5*time.Millisecond)
}

func TestMonitorRejectsUnselectedPID(t *testing.T) {
	fake := providertest.New(sampleRecords...)
	m := newTestMonitor(t, fake, nil)
	sub := m.Subscribe()
	nextEvent(t, sub, models.EventProjection, hasRows(len(sampleRecords)))

	_, err := m.InvokeAction(models.ActionRequest{Kind: models.ActionTerminate, PID: 300})
	assert.ErrorIs(t, err, ErrNotSelected)

	m.View().Select(300)
	_, err = m.InvokeAction(models.ActionRequest{Kind: models.ActionTerminate, PID: 301})
	assert.ErrorIs(t, err, ErrNotSelected)

	// selected but filtered out is not resolved either
	m.View().SetSearchText("dragon")
	_, err = m.InvokeAction(models.ActionRequest{Kind: models.ActionTerminate, PID: 300})
	assert.ErrorIs(t, err, ErrNotSelected)
	assert.Empty(t, fake.Calls())
}

func TestMonitorSamplingFailureKeepsRows(t *testing.T) {
	fake := providertest.New(sampleRecords...)
	m := newTestMonitor(t, fake, nil)
	sub := m.Subscribe()
	nextEvent(t, sub, models.EventProjection, hasRows(len(sampleRecords)))

	fake.FailList(provider.ErrProviderUnavailable)
	m.Refresh()
	ev := nextEvent(t, sub, models.EventProjection, func(ev models.Event) bool { return ev.Projection.Stale })
	assert.Len(t, ev.Projection.Rows, len(sampleRecords))

	fake.FailList(nil)
	m.Refresh()
	nextEvent(t, sub, models.EventProjection, func(ev models.Event) bool { return !ev.Projection.Stale })
}

func TestMonitorRefreshWhileInFlightRunsAfter(t *testing.T) {
	fake := providertest.New(sampleRecords...)
	m := newTestMonitor(t, fake, nil)
	sub := m.Subscribe()
	nextEvent(t, sub, models.EventProjection, hasRows(len(sampleRecords)))

	fake.Delay(providertest.OpList, 100*time.Millisecond)
	before := fake.Lists()
	m.Refresh()
	require.Eventually(t, func() bool { return fake.Lists() == before+1 }, waitFor, time.Millisecond)

	// arrives while the first refresh is still sampling
	fake.SetRecords(sampleRecords[:2]...)
	m.Refresh()
	nextEvent(t, sub, models.EventProjection, hasRows(2))
	assert.Eventually(t, func() bool { return fake.Lists() == before+2 }, waitFor, time.Millisecond,
		"refresh requested mid-sample must run once the sample completes")
}

func TestMonitorFeedsHistory(t *testing.T) {
	fake := providertest.New(sampleRecords...)
	history := NewHistoryCollector(&fakeSystem{}, time.Hour, 10)
	m := newTestMonitor(t, fake, history)
	sub := m.Subscribe()
	nextEvent(t, sub, models.EventProjection, hasRows(len(sampleRecords)))

	m.View().Select(50)
	nextEvent(t, sub, models.EventProjection, func(ev models.Event) bool { return ev.Projection.Resolved })
	m.Refresh()
	assert.Eventually(t, func() bool { return len(history.Window(0).ProcessCPU) > 0 }, waitFor, 5*time.Millisecond)

	w := history.Window(0)
	assert.Equal(t, int32(50), w.ProcessPID)
	assert.InDelta(t, 73.0, w.ProcessCPU[0].Value, 1e-9)
}

func TestMonitorStartTwice(t *testing.T) {
	m := newTestMonitor(t, providertest.New(), nil)
	assert.ErrorIs(t, m.Start(context.Background()), ErrAlreadyStarted)
	m.Stop()
	m.Stop()

	sub := m.Subscribe()
	select {
	case <-sub.Done():
	default:
		t.Fatal("subscribing to a stopped monitor returns a closed subscription")
	}
}

func TestMonitorInspectReadsProvider(t *testing.T) {
	fake := providertest.New(sampleRecords...)
	m := newTestMonitor(t, fake, nil)
	sub := m.Subscribe()
	nextEvent(t, sub, models.EventProjection, hasRows(len(sampleRecords)))

	records := append([]models.ProcessRecord{}, sampleRecords...)
	fake.SetRecords(append(records, models.ProcessRecord{PID: 777, Name: "late.exe", StartTimeMillis: 1700000000000})...)
	_, cached := m.Lookup(777)
	require.False(t, cached)

	details, err := m.Inspect(context.Background(), 777)
	require.NoError(t, err)
	assert.Equal(t, int32(777), details.PID)
	assert.Equal(t, "late.exe", details.Name)
	assert.NotEmpty(t, details.StartTime)
	assert.False(t, details.Stale)
}

func TestMonitorInspectGoneClearsSelection(t *testing.T) {
	fake := providertest.New(sampleRecords...)
	m := newTestMonitor(t, fake, nil)
	sub := m.Subscribe()
	nextEvent(t, sub, models.EventProjection, hasRows(len(sampleRecords)))

	m.View().Select(302)
	nextEvent(t, sub, models.EventProjection, func(ev models.Event) bool { return ev.Projection.Resolved })

	var remaining []models.ProcessRecord
	for _, r := range sampleRecords {
		if r.PID != 302 {
			remaining = append(remaining, r)
		}
	}
	fake.SetRecords(remaining...)
	lists := fake.Lists()

	_, err := m.Inspect(context.Background(), 302)
	assert.ErrorIs(t, err, provider.ErrProcessGone)
	assert.Nil(t, m.View().Snapshot().SelectedPID)
	assert.Eventually(t, func() bool { return fake.Lists() > lists }, waitFor, 5*time.Millisecond)
	nextEvent(t, sub, models.EventProjection, hasRows(len(remaining)))
}

func TestMonitorInspectUnknownPIDKeepsSelection(t *testing.T) {
	fake := providertest.New(sampleRecords...)
	m := newTestMonitor(t, fake, nil)
	sub := m.Subscribe()
	nextEvent(t, sub, models.EventProjection, hasRows(len(sampleRecords)))
	m.View().Select(300)

	_, err := m.Inspect(context.Background(), 4242)
	assert.ErrorIs(t, err, provider.ErrProcessGone)
	sel := m.View().Snapshot().SelectedPID
	require.NotNil(t, sel)
	assert.Equal(t, int32(300), *sel)
}

func TestMonitorInspectUnavailableUsesSnapshot(t *testing.T) {
	fake := providertest.New(sampleRecords...)
	m := newTestMonitor(t, fake, nil)
	sub := m.Subscribe()
	nextEvent(t, sub, models.EventProjection, hasRows(len(sampleRecords)))
	fake.FailOp(providertest.OpGet, provider.ErrProviderUnavailable)

	details, err := m.Inspect(context.Background(), 301)
	require.NoError(t, err)
	assert.True(t, details.Stale)
	assert.Equal(t, "chrome.exe", details.Name)

	_, err = m.Inspect(context.Background(), 4242)
	assert.ErrorIs(t, err, provider.ErrProviderUnavailable)
}
