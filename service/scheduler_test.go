package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWallClockMonotonic(t *testing.T) {
	clock := MakeWallClock()
	require.Equal(t, int64(0), clock.Time())

	clock.Advance(1000)
	require.Equal(t, int64(1000), clock.Time())

	// stale stamps never move the clock backwards
	clock.Advance(500)
	require.Equal(t, int64(1000), clock.Time())
}

func TestSchedulerFiresAtDeadline(t *testing.T) {
	clock := MakeWallClock()
	sched := MakeScheduler(clock)

	fired := 0
	sched.Schedule(1000, func() { fired++ })

	clock.Advance(999)
	sched.Tick()
	require.Equal(t, 0, fired)

	clock.Advance(1000)
	sched.Tick()
	require.Equal(t, 1, fired)

	// a fired timer never fires again
	clock.Advance(2000)
	sched.Tick()
	require.Equal(t, 1, fired)
}

func TestSchedulerFiresInOrder(t *testing.T) {
	clock := MakeWallClock()
	sched := MakeScheduler(clock)

	var order []int
	sched.ScheduleAt(300, func() { order = append(order, 3) })
	sched.ScheduleAt(100, func() { order = append(order, 1) })
	sched.ScheduleAt(200, func() { order = append(order, 2) })
	sched.ScheduleAt(100, func() { order = append(order, 4) })

	clock.Advance(300)
	sched.Tick()

	// deadline order, schedule order within the same deadline
	require.Equal(t, []int{1, 4, 2, 3}, order)
}

func TestSchedulerCancel(t *testing.T) {
	clock := MakeWallClock()
	sched := MakeScheduler(clock)

	fired := false
	timer := sched.Schedule(100, func() { fired = true })
	timer.Cancel()

	clock.Advance(100)
	sched.Tick()
	require.False(t, fired)
}

func TestSchedulerFireMaySchedule(t *testing.T) {
	clock := MakeWallClock()
	sched := MakeScheduler(clock)

	var order []int
	sched.ScheduleAt(100, func() {
		order = append(order, 1)
		sched.ScheduleAt(150, func() { order = append(order, 2) })
	})

	clock.Advance(200)
	sched.Tick()
	require.Equal(t, []int{1, 2}, order)
}
