package hal

import (
	"cmp"
	"fmt"

	"golang.org/x/exp/slices"
)

// Interrupt simulates the interrupt controller of a single CPU.
//
// Every transition from masked to unmasked advances the clock by one kernel
// tick and delivers the interrupts that have come due. Handlers run with
// interrupts masked, on whichever context unmasked them, and may switch to
// another context before returning.
type Interrupt struct {
	enabled    bool
	now        uint64
	kernelTick uint64
	maxTicks   uint64

	seq     uint64
	pending []pendingInterrupt

	log   Logger
	debug bool
}

type pendingInterrupt struct {
	time    uint64
	seq     uint64
	kind    string
	handler func()
}

func comparePending(a, b pendingInterrupt) int {
	if c := cmp.Compare(a.time, b.time); c != 0 {
		return c
	}
	return cmp.Compare(a.seq, b.seq)
}

func newInterrupt(cfg Config, log Logger) *Interrupt {
	return &Interrupt{
		kernelTick: cfg.KernelTick,
		maxTicks:   cfg.MaxTicks,
		log:        log,
		debug:      cfg.Debug,
	}
}

// Enable unmasks interrupts.
func (i *Interrupt) Enable() { i.SetStatus(true) }

// Disable masks interrupts and returns whether they were enabled before.
func (i *Interrupt) Disable() bool { return i.SetStatus(false) }

// Restore sets the mask back to a status previously returned by Disable.
func (i *Interrupt) Restore(status bool) { i.SetStatus(status) }

// SetStatus sets the mask and returns the previous status. Going from masked
// to unmasked is a kernel tick.
func (i *Interrupt) SetStatus(status bool) bool {
	old := i.enabled
	i.enabled = status
	if !old && status {
		i.tick()
	}
	return old
}

// Enabled reports whether interrupts are unmasked.
func (i *Interrupt) Enabled() bool { return i.enabled }

// Disabled reports whether interrupts are masked.
func (i *Interrupt) Disabled() bool { return !i.enabled }

// Time returns the number of ticks since the machine started.
func (i *Interrupt) Time() uint64 { return i.now }

// Pending returns the number of scheduled interrupts.
func (i *Interrupt) Pending() int { return len(i.pending) }

// Schedule arranges for handler to run at the first tick at least after
// ticks from now. Interrupts due at the same tick run in scheduling order.
func (i *Interrupt) Schedule(after uint64, kind string, handler func()) {
	if after == 0 {
		after = 1
	}
	p := pendingInterrupt{
		time:    i.now + after,
		seq:     i.seq,
		kind:    kind,
		handler: handler,
	}
	i.seq++

	idx, _ := slices.BinarySearchFunc(i.pending, p, comparePending)
	i.pending = slices.Insert(i.pending, idx, p)
}

func (i *Interrupt) tick() {
	i.now += i.kernelTick
	if i.debug {
		i.log.WriteLineString(fmt.Sprintf("== Tick %d ==", i.now))
	}
	if i.maxTicks > 0 && i.now > i.maxTicks {
		fault("tick", "watchdog expired at tick %d", i.now)
	}

	i.enabled = false
	i.checkIfDue()
	i.enabled = true
}

func (i *Interrupt) checkIfDue() {
	// The entry is removed before its handler runs: a handler that switches
	// contexts lets other ticks deliver the rest of the list.
	for len(i.pending) > 0 && i.pending[0].time <= i.now {
		next := i.pending[0]
		i.pending = slices.Delete(i.pending, 0, 1)
		if i.debug {
			i.log.WriteLineString(fmt.Sprintf("Invoking interrupt handler: %s (scheduled at %d)", next.kind, next.time))
		}
		next.handler()
	}
}
