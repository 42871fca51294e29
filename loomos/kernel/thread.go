package kernel

import (
	"cmp"
	"fmt"

	"golang.org/x/exp/slices"

	"loom/hal"
)

// ThreadID is unique per kernel and assigned in creation order. The first
// thread (the one that booted the kernel) is 0.
type ThreadID uint64

// Status is the lifecycle state of a thread.
type Status uint8

const (
	StatusNew Status = iota
	StatusReady
	StatusRunning
	StatusBlocked
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusReady:
		return "ready"
	case StatusRunning:
		return "running"
	case StatusBlocked:
		return "blocked"
	case StatusFinished:
		return "finished"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Thread is a kernel thread of control. At most one thread is Running at a
// time; every other thread is parked on its TCB.
type Thread struct {
	k      *Kernel
	id     ThreadID
	name   string
	status Status
	target func()
	tcb    *hal.TCB

	joiners  ThreadQueue
	joinedBy []ThreadID
}

func (t *Thread) ID() ThreadID   { return t.id }
func (t *Thread) Name() string   { return t.name }
func (t *Thread) Status() Status { return t.status }

// SetName changes the debug name and returns t for chaining.
func (t *Thread) SetName(name string) *Thread {
	t.name = name
	return t
}

// SetTarget sets the function a new thread runs once forked.
func (t *Thread) SetTarget(fn func()) *Thread {
	assertf(t.status == StatusNew, "cannot retarget thread %s in state %s", t, t.status)
	t.target = fn
	return t
}

func (t *Thread) String() string {
	return fmt.Sprintf("%s (#%d)", t.name, t.id)
}

// Compare orders threads by creation.
func (t *Thread) Compare(o *Thread) int {
	return cmp.Compare(t.id, o.id)
}

// Priority returns the base priority the scheduler holds for t.
func (t *Thread) Priority() int { return t.k.Priority(t) }

// SetPriority sets t's base priority.
func (t *Thread) SetPriority(priority int) { t.k.SetPriority(t, priority) }

// Fork makes a new thread eligible to run. The caller keeps the CPU.
func (t *Thread) Fork() {
	k := t.k
	assertf(t.status == StatusNew, "cannot fork thread %s in state %s", t, t.status)
	assertf(t.target != nil, "thread %s has no target", t)

	k.debugf(dbgThread, "Forking thread: %s Runnable: %p", t, t.target)

	status := k.intr.Disable()
	t.tcb.Start(t.runThread)
	t.Ready()
	k.intr.Restore(status)
}

// Ready moves t to the Ready state and hands it to the ready queue. The idle
// thread is marked Ready but never queued. Interrupts must be disabled.
func (t *Thread) Ready() {
	k := t.k
	k.debugf(dbgThread, "Ready thread: %s", t)

	assertf(k.intr.Disabled(), "Ready(%s) with interrupts enabled", t)
	assertf(t.status != StatusReady, "thread %s is already ready", t)
	assertf(t.status != StatusFinished, "thread %s has finished", t)

	t.status = StatusReady
	if t != k.idle {
		k.readyQueue.WaitForAccess(t)
	}
	for _, o := range k.observers {
		o.ThreadReady(t)
	}
}

// Join blocks the current thread until t finishes. It returns at once if t
// has already finished. A thread may not join itself, and may join a given
// thread only once.
func (t *Thread) Join() {
	k := t.k
	k.debugf(dbgThread, "Joining to thread: %s", t)

	cur := k.current
	assertf(t != cur, "thread %s cannot join itself", t)

	status := k.intr.Disable()
	assertf(!slices.Contains(t.joinedBy, cur.id), "thread %s already joined %s", cur, t)
	t.joinedBy = append(t.joinedBy, cur.id)

	if t.status != StatusFinished {
		t.joiners.WaitForAccess(cur)
		k.Sleep()
	}
	k.intr.Restore(status)
}

func (t *Thread) runThread() {
	defer func() {
		if r := recover(); r != nil {
			triggerPanic(PanicInfo{Thread: t.String(), Value: r})
			panic(r)
		}
	}()

	t.begin()
	t.target()
	t.k.Finish()
}

func (t *Thread) begin() {
	k := t.k
	k.debugf(dbgThread, "Beginning thread: %s", t)

	assertf(t == k.current, "thread %s began while %s is current", t, k.current)

	t.restoreState()
	k.intr.Enable()
}

// run hands the CPU to t. The caller's state must already reflect why it is
// giving the CPU up.
func (t *Thread) run() {
	k := t.k
	assertf(k.intr.Disabled(), "run(%s) with interrupts enabled", t)

	k.current.saveState()

	k.debugf(dbgThread, "Switching from: %s to: %s", k.current, t)

	k.current = t
	t.tcb.ContextSwitch()

	k.current.restoreState()
}

func (t *Thread) saveState() {
	k := t.k
	assertf(k.intr.Disabled(), "saveState(%s) with interrupts enabled", t)
	assertf(t == k.current, "saveState(%s) while %s is current", t, k.current)
}

// restoreState marks t Running and destroys the previous thread if it
// finished.
func (t *Thread) restoreState() {
	k := t.k
	k.debugf(dbgThread, "Running thread: %s", t)

	assertf(k.intr.Disabled(), "restoreState(%s) with interrupts enabled", t)
	assertf(t == k.current, "restoreState(%s) while %s is current", t, k.current)
	assertf(t.tcb == k.m.CurrentTCB(), "thread %s resumed on a foreign context", t)

	for _, o := range k.observers {
		o.ThreadRunning(t)
	}
	t.status = StatusRunning

	if d := k.toBeDestroyed; d != nil {
		k.debugf(dbgThread, "Destroying thread: %s", d)
		d.tcb.Destroy()
		d.tcb = nil
		k.sched.Forget(d)
		k.toBeDestroyed = nil
	}
}

func (t *Thread) wakeJoiners() {
	k := t.k
	status := k.intr.Disable()
	for j := t.joiners.NextThread(); j != nil; j = t.joiners.NextThread() {
		j.Ready()
	}
	k.intr.Restore(status)
}
