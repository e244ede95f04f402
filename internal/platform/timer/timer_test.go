package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestSlot_FiresAfterDelay(t *testing.T) {
	clock := clockwork.NewFakeClock()
	slot := NewSlot(clock)

	var fired atomic.Int32
	slot.Schedule(5*time.Second, func() { fired.Add(1) })
	assert.True(t, slot.Pending())

	clock.Advance(4 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())

	clock.Advance(1 * time.Second)
	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return !slot.Pending() }, time.Second, 5*time.Millisecond)
}

func TestSlot_RescheduleReplacesPending(t *testing.T) {
	clock := clockwork.NewFakeClock()
	slot := NewSlot(clock)

	var first, second atomic.Int32
	slot.Schedule(time.Second, func() { first.Add(1) })
	slot.Schedule(3*time.Second, func() { second.Add(1) })

	clock.Advance(5 * time.Second)
	assert.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), first.Load(), "replaced callback must not run")
}

func TestSlot_CancelIsIdempotent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	slot := NewSlot(clock)

	var fired atomic.Int32
	slot.Schedule(time.Second, func() { fired.Add(1) })
	slot.Cancel()
	slot.Cancel()

	clock.Advance(2 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
	assert.False(t, slot.Pending())
}

func TestSlot_NegativeDelayRunsImmediately(t *testing.T) {
	clock := clockwork.NewFakeClock()
	slot := NewSlot(clock)

	var fired atomic.Int32
	slot.Schedule(-time.Minute, func() { fired.Add(1) })

	clock.Advance(0)
	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestInterval_TicksUntilStopped(t *testing.T) {
	clock := clockwork.NewFakeClock()
	iv := NewInterval(clock)

	var ticks atomic.Int32
	assert.True(t, iv.Start(30*time.Second, func() { ticks.Add(1) }))
	assert.True(t, iv.Running())

	clock.Advance(30 * time.Second)
	assert.Eventually(t, func() bool { return ticks.Load() == 1 }, time.Second, 5*time.Millisecond)

	iv.Stop()
	assert.False(t, iv.Running())

	clock.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), ticks.Load())
}

func TestInterval_StartTwiceKeepsSingleLoop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	iv := NewInterval(clock)
	defer iv.Stop()

	var ticks atomic.Int32
	assert.True(t, iv.Start(time.Second, func() { ticks.Add(1) }))
	assert.False(t, iv.Start(time.Second, func() { ticks.Add(100) }))

	clock.Advance(time.Second)
	assert.Eventually(t, func() bool { return ticks.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), ticks.Load())
}

func TestInterval_StopWithoutStart(t *testing.T) {
	iv := NewInterval(clockwork.NewFakeClock())
	iv.Stop()
	assert.False(t, iv.Running())
}
