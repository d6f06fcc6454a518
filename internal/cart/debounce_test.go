package cart

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncerTrailingEdge(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(25*time.Millisecond, func() { calls.Add(1) })

	for i := 0; i < 4; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, d.Pending())
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, d.Pending())
}

func TestDebouncerCancel(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(10*time.Millisecond, func() { calls.Add(1) })

	d.Trigger()
	assert.True(t, d.Cancel())
	assert.False(t, d.Cancel())
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestDebouncerStopIgnoresLaterTriggers(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(5*time.Millisecond, func() { calls.Add(1) })
	d.Stop()
	d.Trigger()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
	assert.False(t, d.Pending())
}
