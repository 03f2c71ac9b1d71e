package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProcessSnapshot_OrdersByPID(t *testing.T) {
	snap := NewProcessSnapshot([]ProcessRecord{
		{PID: 300, Name: "c"},
		{PID: 4, Name: "a"},
		{PID: 50, Name: "b"},
	}, time.Now())

	require.Equal(t, 3, snap.Len())
	assert.Equal(t, int32(4), snap.At(0).PID)
	assert.Equal(t, int32(50), snap.At(1).PID)
	assert.Equal(t, int32(300), snap.At(2).PID)
}

func TestNewProcessSnapshot_DropsDuplicatePIDs(t *testing.T) {
	snap := NewProcessSnapshot([]ProcessRecord{
		{PID: 7, Name: "first"},
		{PID: 7, Name: "second"},
		{PID: 1, Name: "init"},
	}, time.Now())

	require.Equal(t, 2, snap.Len())
	rec, ok := snap.Lookup(7)
	require.True(t, ok)
	assert.Equal(t, "first", rec.Name)
}

func TestProcessSnapshot_IsolatedFromInput(t *testing.T) {
	in := []ProcessRecord{{PID: 1, Name: "init"}}
	snap := NewProcessSnapshot(in, time.Now())
	in[0].Name = "mutated"

	out := snap.Records()
	out[0].Name = "mutated too"

	assert.Equal(t, "init", snap.At(0).Name)
}

func TestProcessSnapshot_NilIsEmpty(t *testing.T) {
	var snap *ProcessSnapshot
	assert.Equal(t, 0, snap.Len())
	assert.Nil(t, snap.Records())
	_, ok := snap.Lookup(1)
	assert.False(t, ok)
	assert.True(t, snap.TakenAt().IsZero())
}
