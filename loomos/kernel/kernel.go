// Package kernel implements a cooperative, single-CPU thread core on top of
// the simulated machine in package hal: thread dispatch, pluggable ready
// queue policies, and the blocking primitives built on them.
//
// Every exported blocking operation must be called from a kernel thread,
// that is from the goroutine currently holding the CPU.
package kernel

import (
	"fmt"

	"loom/hal"
)

// Observer receives dispatch events. Hooks run on the thread holding the CPU
// with interrupts disabled; they must not block or call back into the kernel.
type Observer interface {
	ThreadReady(t *Thread)
	ThreadRunning(t *Thread)
	ThreadBlocked(t *Thread)
	ThreadFinishing(t *Thread)
}

// NopObserver can be embedded to implement only some hooks.
type NopObserver struct{}

func (NopObserver) ThreadReady(*Thread)     {}
func (NopObserver) ThreadRunning(*Thread)   {}
func (NopObserver) ThreadBlocked(*Thread)   {}
func (NopObserver) ThreadFinishing(*Thread) {}

// Option configures a Kernel.
type Option func(*Kernel)

// WithObserver registers o for dispatch events.
func WithObserver(o Observer) Option {
	return func(k *Kernel) { k.observers = append(k.observers, o) }
}

// WithDebug enables debug output for the given flag characters. '+' enables
// everything.
func WithDebug(flags string) Option {
	return func(k *Kernel) { k.dbg = debugFlags(flags) }
}

// WithLogger overrides the machine logger for debug output.
func WithLogger(l hal.Logger) Option {
	return func(k *Kernel) {
		if l != nil {
			k.log = l
		}
	}
}

// Kernel owns the dispatch state: the running thread, the ready queue and
// the thread waiting to be destroyed.
type Kernel struct {
	m     *hal.Machine
	intr  *hal.Interrupt
	sched Scheduler

	readyQueue    ThreadQueue
	current       *Thread
	idle          *Thread
	toBeDestroyed *Thread
	numCreated    ThreadID

	observers []Observer
	dbg       debugFlags
	log       hal.Logger
}

// New boots the kernel on m. The calling goroutine becomes the first thread,
// named "main", and the idle thread is forked. Interrupts are left as they
// were; callers normally enable them once their devices are wired.
func New(m *hal.Machine, sched Scheduler, opts ...Option) *Kernel {
	k := &Kernel{
		m:     m,
		intr:  m.Interrupt,
		sched: sched,
		log:   m.Logger(),
	}
	for _, opt := range opts {
		opt(k)
	}

	status := k.intr.Disable()

	k.readyQueue = sched.NewThreadQueue(false)

	main := k.newThread("main")
	k.readyQueue.Acquire(main)
	k.current = main
	main.tcb = m.AdoptTCB()
	main.restoreState()

	k.idle = k.NewThread("idle", func() {
		for {
			k.Yield()
		}
	})
	k.idle.Fork()

	k.intr.Restore(status)
	return k
}

// Machine returns the machine the kernel runs on.
func (k *Kernel) Machine() *hal.Machine { return k.m }

// Scheduler returns the active scheduling policy.
func (k *Kernel) Scheduler() Scheduler { return k.sched }

// CurrentThread returns the thread holding the CPU.
func (k *Kernel) CurrentThread() *Thread {
	assertf(k.current != nil, "no current thread")
	return k.current
}

// IdleThread returns the thread dispatched when nothing else is ready.
func (k *Kernel) IdleThread() *Thread { return k.idle }

// NewThread allocates a thread in the New state. It does not run until
// forked.
func (k *Kernel) NewThread(name string, target func()) *Thread {
	t := k.newThread(name)
	t.target = target
	t.tcb = k.m.NewTCB()
	return t
}

func (k *Kernel) newThread(name string) *Thread {
	t := &Thread{
		k:      k,
		id:     k.numCreated,
		name:   name,
		status: StatusNew,
	}
	k.numCreated++

	status := k.intr.Disable()
	t.joiners = k.sched.NewThreadQueue(true)
	t.joiners.Acquire(t)
	k.intr.Restore(status)
	return t
}

// Fork creates and forks a thread in one step.
func (k *Kernel) Fork(name string, target func()) *Thread {
	t := k.NewThread(name, target)
	t.Fork()
	return t
}

// Yield gives up the CPU if another thread is ready. The caller stays
// runnable and resumes later; it returns immediately if nothing else is
// ready.
func (k *Kernel) Yield() {
	cur := k.current
	k.debugf(dbgThread, "Yielding thread: %s", cur)

	assertf(cur.status == StatusRunning, "Yield from %s in state %s", cur, cur.status)

	status := k.intr.Disable()
	cur.Ready()
	k.runNextThread()
	k.intr.Restore(status)
}

// Sleep relinquishes the CPU because the current thread has finished or is
// blocked. A blocked caller must already be queued somewhere it will be
// readied from. Interrupts must be disabled.
func (k *Kernel) Sleep() {
	cur := k.current
	k.debugf(dbgThread, "Sleeping thread: %s", cur)

	assertf(k.intr.Disabled(), "Sleep with interrupts enabled")

	if cur.status != StatusFinished {
		cur.status = StatusBlocked
		for _, o := range k.observers {
			o.ThreadBlocked(cur)
		}
	}
	k.runNextThread()
}

// Finish ends the current thread. Its joiners are readied and its context is
// reclaimed by the next thread to run. Finish does not return.
func (k *Kernel) Finish() {
	cur := k.current
	k.debugf(dbgThread, "Finishing thread: %s", cur)

	cur.wakeJoiners()

	k.intr.Disable()
	for _, o := range k.observers {
		o.ThreadFinishing(cur)
	}

	assertf(k.toBeDestroyed == nil, "thread %s was never destroyed", k.toBeDestroyed)
	k.toBeDestroyed = cur
	cur.status = StatusFinished

	k.Sleep()
	panic(fmt.Sprintf("finished thread %s was resumed", cur))
}

func (k *Kernel) runNextThread() {
	next := k.readyQueue.NextThread()
	if next == nil {
		next = k.idle
	}
	next.run()
}

// Terminate halts the machine. Every parked context is released; the caller
// should return promptly afterwards.
func (k *Kernel) Terminate() {
	k.debugf(dbgThread, "Terminating at time %d", k.intr.Time())
	k.m.Halt()
}

// SetPriority sets t's base priority under the active scheduler.
func (k *Kernel) SetPriority(t *Thread, priority int) {
	status := k.intr.Disable()
	k.debugf(dbgPriority, "Priority of %s set to %d", t, priority)
	k.sched.SetPriority(t, priority)
	k.intr.Restore(status)
}

// Priority returns t's base priority.
func (k *Kernel) Priority(t *Thread) int {
	status := k.intr.Disable()
	p := k.sched.Priority(t)
	k.intr.Restore(status)
	return p
}

// EffectivePriority returns t's priority including donations.
func (k *Kernel) EffectivePriority(t *Thread) int {
	status := k.intr.Disable()
	p := k.sched.EffectivePriority(t)
	k.intr.Restore(status)
	return p
}

// IncreasePriority raises the current thread's priority by one step if the
// scheduler allows it.
func (k *Kernel) IncreasePriority() bool {
	status := k.intr.Disable()
	ok := k.sched.IncreasePriority(k.current)
	k.intr.Restore(status)
	return ok
}

// DecreasePriority lowers the current thread's priority by one step if the
// scheduler allows it.
func (k *Kernel) DecreasePriority() bool {
	status := k.intr.Disable()
	ok := k.sched.DecreasePriority(k.current)
	k.intr.Restore(status)
	return ok
}
