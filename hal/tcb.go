package hal

import "runtime"

// TCB is a raw execution context.
//
// Each context is a goroutine parked on its own wake channel. Switching hands
// the CPU over by waking the target and parking the caller, so at most one
// context runs kernel code at any time.
type TCB struct {
	m  *Machine
	id uint64

	wake chan struct{}
	done chan struct{}

	started   bool
	destroyed bool
}

// NewTCB allocates a context that has not been started yet.
func (m *Machine) NewTCB() *TCB {
	m.nextTCB++
	return &TCB{
		m:    m,
		id:   m.nextTCB,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// AdoptTCB turns the calling goroutine into the first context of the machine.
func (m *Machine) AdoptTCB() *TCB {
	if m.cur != nil {
		fault("adopt", "machine already has a running context")
	}
	t := m.NewTCB()
	t.started = true
	m.cur = t
	return t
}

// ID returns the context number, for debugging.
func (t *TCB) ID() uint64 { return t.id }

// Destroyed reports whether Destroy was called.
func (t *TCB) Destroyed() bool { return t.destroyed }

// Start creates the goroutine backing the context. It stays parked until the
// first switch to the context, then runs fn. fn must never return: a context
// leaves the CPU by switching away and is reclaimed by Destroy.
func (t *TCB) Start(fn func()) {
	if t.started {
		fault("start", "context %d already started", t.id)
	}
	t.started = true
	go func() {
		t.park()
		fn()
		fault("start", "context %d returned from its body", t.id)
	}()
}

// ContextSwitch gives the CPU to t and parks the current context until some
// context switches back to it. Switching to the current context is a no-op.
func (t *TCB) ContextSwitch() {
	m := t.m
	if !t.started || t.destroyed {
		fault("switch", "context %d is not runnable", t.id)
	}
	m.switches++

	from := m.cur
	if from == t {
		return
	}
	m.cur = t
	t.wake <- struct{}{}
	from.park()
}

// Destroy releases a parked context. Its goroutine exits without running
// any further kernel code.
func (t *TCB) Destroy() {
	if t == t.m.cur {
		fault("destroy", "context %d is running", t.id)
	}
	if t.destroyed {
		fault("destroy", "context %d destroyed twice", t.id)
	}
	t.destroyed = true
	close(t.done)
}

func (t *TCB) park() {
	select {
	case <-t.wake:
	case <-t.done:
		runtime.Goexit()
	case <-t.m.halt:
		runtime.Goexit()
	}
}
