//go:build linux

package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardians/internal/models"
)

// statTail pads a /proc/[pid]/stat prefix out to the kernel's full field count
const statTail = " 18446744073709551615 1 1 0 0 0 0 0 0 0 0 0 0 17 0 0 0 0 0 0 0 0 0 0 0 0 0 0\n"

func writeProcTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"stat": "cpu  1 2 3 4 5 6 7 8 9 10\ncpu0 1 2 3 4 5 6 7 8 9 10\nbtime 1700000000\nprocesses 10\n",
		// utime=300 stime=200 ticks, started 500s after boot, rss 10 pages
		"42/stat": "42 (my (odd) app) S 1 42 42 0 -1 4194560 100 0 0 0 300 200 0 0 20 0 1 0 50000 123456 10" + statTail,
		"7/stat":  "7 (zombie) Z 1 7 7 0 -1 0 0 0 0 0 0 0 0 0 20 0 1 0 100 0 0" + statTail,
		"9/stat":  "9 (broken",
	}
	for name, body := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, "self"), 0o755))
	require.NoError(t, os.Symlink("/usr/bin/odd", filepath.Join(root, "42", "exe")))
	return root
}

func newTestProcfs(t *testing.T) *Procfs {
	t.Helper()
	p, err := NewProcfs(writeProcTree(t), time.Millisecond)
	require.NoError(t, err)
	p.now = func() time.Time { return time.Unix(1700001000, 0) }
	return p
}

func TestProcfsList(t *testing.T) {
	p := newTestProcfs(t)

	records, err := p.ListProcesses(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	byPID := map[int32]models.ProcessRecord{}
	for _, r := range records {
		byPID[r.PID] = r
	}

	app := byPID[42]
	assert.Equal(t, "my (odd) app", app.Name)
	assert.Equal(t, int32(1), app.ParentPID)
	assert.Equal(t, models.StateSleeping, app.State)
	assert.Equal(t, uint64(10*os.Getpagesize()), app.ResidentMemory)
	assert.Equal(t, int64(1700000000*1000+500*1000), app.StartTimeMillis)
	assert.InDelta(t, 0.01, app.CPUFraction, 1e-9) // 5s of cpu over 500s of age
	assert.Equal(t, "/usr/bin/odd", app.ExecutablePath)

	assert.Equal(t, models.StateZombie, byPID[7].State)
	assert.Empty(t, byPID[7].ExecutablePath)
}

func TestProcfsGetProcess(t *testing.T) {
	p := newTestProcfs(t)

	rec, ok, err := p.GetProcess(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(42), rec.PID)
	assert.Equal(t, "my (odd) app", rec.Name)
	assert.InDelta(t, 0.01, rec.CPUFraction, 1e-9)

	_, ok, err = p.GetProcess(context.Background(), 31337)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProcfsMissingRoot(t *testing.T) {
	_, err := NewProcfs(filepath.Join(t.TempDir(), "nope"), time.Millisecond)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestProcfsListCanceled(t *testing.T) {
	p := newTestProcfs(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	records, err := p.ListProcesses(ctx)
	assert.Nil(t, records)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestProcfsRequiresStat(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "1"), 0o755))
	_, err := NewProcfs(root, time.Millisecond)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestMapProcState(t *testing.T) {
	assert.Equal(t, models.StateRunning, mapProcState("R"))
	assert.Equal(t, models.StateSleeping, mapProcState("I"))
	assert.Equal(t, models.StateWaiting, mapProcState("D"))
	assert.Equal(t, models.StateStopped, mapProcState("t"))
	assert.Equal(t, models.StateOther, mapProcState("X"))
	assert.Equal(t, models.StateOther, mapProcState(""))
}

func TestProcfsSignalsMissingPID(t *testing.T) {
	p := newTestProcfs(t)

	assert.ErrorIs(t, p.Suspend(context.Background(), 0), ErrInvalidArgument)
	// pid_max is far below this, so the kernel reports ESRCH
	assert.ErrorIs(t, p.Resume(context.Background(), 1<<30), ErrProcessGone)
}
