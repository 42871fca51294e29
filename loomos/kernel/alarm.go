package kernel

import "golang.org/x/exp/slices"

// Alarm lets threads sleep until a point in simulated time. It takes over
// the machine timer: every tick readies the threads that are due and
// preempts the running thread.
type Alarm struct {
	k       *Kernel
	waiters []alarmWaiter // by wake time, then arrival
}

type alarmWaiter struct {
	thread *Thread
	wake   uint64
}

// NewAlarm installs the alarm as the timer interrupt handler.
func NewAlarm(k *Kernel) *Alarm {
	a := &Alarm{k: k}
	k.m.Timer.SetInterruptHandler(a.timerInterrupt)
	return a
}

// WaitUntil blocks the current thread until the clock has passed now+x.
// Non-positive x waits for the next timer tick. Waking depends on timer
// granularity, so a thread may sleep well past its wake time.
func (a *Alarm) WaitUntil(x int64) {
	k := a.k

	status := k.intr.Disable()
	now := k.m.Timer.Time()
	wake := now
	if x > 0 {
		wake += uint64(x)
	}

	cur := k.current
	k.debugf(dbgAlarm, "%s sleeping until %d (time = %d)", cur, wake, now)

	i := slices.IndexFunc(a.waiters, func(w alarmWaiter) bool { return w.wake > wake })
	if i < 0 {
		i = len(a.waiters)
	}
	a.waiters = slices.Insert(a.waiters, i, alarmWaiter{thread: cur, wake: wake})

	k.Sleep()
	k.intr.Restore(status)
}

// Sleeping returns the number of threads waiting on the alarm.
func (a *Alarm) Sleeping() int { return len(a.waiters) }

func (a *Alarm) timerInterrupt() {
	k := a.k

	status := k.intr.Disable()
	now := k.m.Timer.Time()
	k.debugf(dbgAlarm, "In interrupt handler (time = %d)", now)

	n := 0
	for n < len(a.waiters) && now > a.waiters[n].wake {
		w := a.waiters[n]
		k.debugf(dbgAlarm, "Waking %s (wake = %d)", w.thread, w.wake)
		w.thread.Ready()
		a.waiters[n] = alarmWaiter{}
		n++
	}
	a.waiters = slices.Delete(a.waiters, 0, n)
	k.intr.Restore(status)

	k.Yield()
}
