package kernel

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockMutualExclusion(t *testing.T) {
	k := newTestKernel(t, SchedulerRoundRobin)
	NewAlarm(k)
	lock := NewLock(k)

	inside, maxInside, total := 0, 0, 0
	var threads []*Thread
	for i := 0; i < 4; i++ {
		threads = append(threads, k.Fork(fmt.Sprintf("w%d", i), func() {
			for j := 0; j < 10; j++ {
				lock.Acquire()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				k.Yield()
				total++
				inside--
				lock.Release()
			}
		}))
	}
	for _, th := range threads {
		th.Join()
	}
	assert.Equal(t, 1, maxInside)
	assert.Equal(t, 40, total)
}

func TestLockMisuse(t *testing.T) {
	k := newTestKernel(t, SchedulerRoundRobin)
	lock := NewLock(k)

	assert.False(t, lock.IsHeldByCurrentThread())
	assert.Panics(t, lock.Release)

	lock.Acquire()
	assert.True(t, lock.IsHeldByCurrentThread())
	assert.Panics(t, lock.Acquire)
	lock.Release()
}

func TestConditionProducerConsumer(t *testing.T) {
	k := newTestKernel(t, SchedulerRoundRobin)
	lock := NewLock(k)
	nonEmpty := NewCondition2(k, lock)

	var items []int
	var got []int
	consumer := k.Fork("consumer", func() {
		for len(got) < 5 {
			lock.Acquire()
			for len(items) == 0 {
				nonEmpty.Sleep()
			}
			got = append(got, items[0])
			items = items[1:]
			lock.Release()
		}
	})
	producer := k.Fork("producer", func() {
		for i := 0; i < 5; i++ {
			lock.Acquire()
			items = append(items, i)
			nonEmpty.Wake()
			lock.Release()
			k.Yield()
		}
	})
	producer.Join()
	consumer.Join()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestConditionWakeWithoutWaiters(t *testing.T) {
	k := newTestKernel(t, SchedulerRoundRobin)
	lock := NewLock(k)
	cond := NewCondition2(k, lock)

	lock.Acquire()
	cond.Wake()
	cond.WakeAll()
	lock.Release()

	assert.Panics(t, cond.Wake)
	assert.Panics(t, cond.Sleep)
}

func TestConditionSleepReleasesAndBlocksAtomically(t *testing.T) {
	k := newTestKernel(t, SchedulerRoundRobin)
	lock := NewLock(k)
	cond := NewCondition2(k, lock)
	main := k.CurrentThread()

	var rec recorder
	lock.Acquire()
	waker := k.Fork("waker", func() {
		lock.Acquire()
		// the lock is handed over inside Sleep: by now main must be queued
		// on the condition and blocked, or this wake would be lost
		rec.add("waker holds lock, main %s, %d waiting", main.Status(), cond.waitQueue.Len())
		cond.Wake()
		lock.Release()
	})
	for lock.waitQueue.Len() == 0 {
		k.Yield()
	}

	rec.add("main sleeping")
	cond.Sleep()
	rec.add("main woke")
	assert.True(t, lock.IsHeldByCurrentThread())
	lock.Release()
	waker.Join()

	assert.Equal(t, []string{
		"main sleeping",
		"waker holds lock, main blocked, 1 waiting",
		"main woke",
	}, rec.events)
}

func TestConditionWakeAllOnlyCurrentWaiters(t *testing.T) {
	k := newTestKernel(t, SchedulerRoundRobin)
	lock := NewLock(k)
	cond := NewCondition2(k, lock)

	woken := 0
	var threads []*Thread
	for i := 0; i < 3; i++ {
		threads = append(threads, k.Fork(fmt.Sprintf("sleeper-%d", i), func() {
			lock.Acquire()
			cond.Sleep()
			woken++
			lock.Release()
		}))
	}
	// let every sleeper block
	k.Yield()

	late := k.Fork("late", func() {
		lock.Acquire()
		cond.Sleep()
		woken++
		lock.Release()
	})

	lock.Acquire()
	cond.WakeAll()
	lock.Release()
	for _, th := range threads {
		th.Join()
	}
	assert.Equal(t, 3, woken)
	assert.Equal(t, StatusBlocked, late.Status())

	lock.Acquire()
	cond.Wake()
	lock.Release()
	late.Join()
	assert.Equal(t, 4, woken)
}

func TestAlarmWaitUntil(t *testing.T) {
	k := newTestKernel(t, SchedulerRoundRobin)
	a := NewAlarm(k)
	timer := k.Machine().Timer

	start := timer.Time()
	a.WaitUntil(1000)
	assert.Greater(t, timer.Time(), start+1000)

	start = timer.Time()
	a.WaitUntil(0)
	assert.Greater(t, timer.Time(), start)

	start = timer.Time()
	a.WaitUntil(-50)
	assert.Greater(t, timer.Time(), start)
	assert.Zero(t, a.Sleeping())
}

func TestAlarmWakesInDeadlineOrder(t *testing.T) {
	k := newTestKernel(t, SchedulerRoundRobin)
	a := NewAlarm(k)
	timer := k.Machine().Timer

	type wake struct {
		name     string
		deadline uint64
		at       uint64
	}
	var wakes []wake
	var threads []*Thread
	for _, d := range []int64{3000, 1000, 2000, 1000} {
		d := d
		name := fmt.Sprintf("sleep-%d-%d", d, len(threads))
		threads = append(threads, k.Fork(name, func() {
			deadline := timer.Time() + uint64(d)
			a.WaitUntil(d)
			wakes = append(wakes, wake{name: name, deadline: deadline, at: timer.Time()})
		}))
	}
	for _, th := range threads {
		th.Join()
	}

	require.Len(t, wakes, 4)
	var names []string
	for _, w := range wakes {
		names = append(names, w.name)
		assert.Greater(t, w.at, w.deadline, w.name)
	}
	assert.Equal(t, []string{"sleep-1000-1", "sleep-1000-3", "sleep-2000-2", "sleep-3000-0"}, names)
}

func TestAlarmWakesEveryDueThreadInOneInterrupt(t *testing.T) {
	k := newTestKernel(t, SchedulerRoundRobin)
	a := NewAlarm(k)
	timer := k.Machine().Timer

	type wake struct {
		name      string
		deadline  uint64
		at        uint64
		interrupt uint64
	}
	var wakes []wake
	var threads []*Thread
	for _, d := range []int64{50, 100, 150, 800} {
		d := d
		name := fmt.Sprintf("sleep-%d", d)
		threads = append(threads, k.Fork(name, func() {
			// line up every sleeper just after the same timer interrupt
			a.WaitUntil(0)
			deadline := timer.Time() + uint64(d)
			a.WaitUntil(d)
			wakes = append(wakes, wake{name: name, deadline: deadline, at: timer.Time(), interrupt: timer.Interrupts()})
		}))
	}
	for _, th := range threads {
		th.Join()
	}

	require.Len(t, wakes, 4)
	for _, w := range wakes {
		assert.Greater(t, w.at, w.deadline, w.name)
	}
	assert.Equal(t, wakes[0].interrupt, wakes[1].interrupt)
	assert.Equal(t, wakes[0].interrupt, wakes[2].interrupt)
	assert.Equal(t, "sleep-800", wakes[3].name)
	assert.Greater(t, wakes[3].interrupt, wakes[0].interrupt)
}

func TestCommunicatorPingPong(t *testing.T) {
	k := newTestKernel(t, SchedulerRoundRobin)
	c := NewCommunicator[int](k)

	var heard int
	listener := k.Fork("listener", func() { heard = c.Listen() })
	c.Speak(42)
	listener.Join()
	assert.Equal(t, 42, heard)

	speaker := k.Fork("speaker", func() { c.Speak(7) })
	assert.Equal(t, 7, c.Listen())
	speaker.Join()
}

func TestCommunicatorNeitherReturnsAlone(t *testing.T) {
	k := newTestKernel(t, SchedulerRoundRobin)
	c := NewCommunicator[string](k)

	spoke := false
	speaker := k.Fork("speaker", func() {
		c.Speak("hello")
		spoke = true
	})
	for i := 0; i < 5; i++ {
		k.Yield()
	}
	assert.False(t, spoke)
	assert.Equal(t, StatusBlocked, speaker.Status())

	assert.Equal(t, "hello", c.Listen())
	speaker.Join()
	assert.True(t, spoke)
}

func TestCommunicatorDeliversEachWordOnce(t *testing.T) {
	k := newTestKernel(t, SchedulerRoundRobin)
	NewAlarm(k)
	c := NewCommunicator[int](k)

	const n = 8
	var heard []int
	var threads []*Thread
	for i := 0; i < n; i++ {
		i := i
		threads = append(threads,
			k.Fork(fmt.Sprintf("listener-%d", i), func() { heard = append(heard, c.Listen()) }),
			k.Fork(fmt.Sprintf("speaker-%d", i), func() { c.Speak(100 + i) }),
		)
	}
	for _, th := range threads {
		th.Join()
	}

	sort.Ints(heard)
	want := make([]int, n)
	for i := range want {
		want[i] = 100 + i
	}
	assert.Equal(t, want, heard)
}
