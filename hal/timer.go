package hal

import "math/rand"

// Timer is a periodic interrupt source driven by the interrupt controller's
// clock.
type Timer struct {
	intr    *Interrupt
	period  uint64
	rng     *rand.Rand
	handler func()

	count uint64
	last  uint64
}

func newTimer(intr *Interrupt, cfg Config) *Timer {
	t := &Timer{intr: intr, period: cfg.TimerTicks}
	if cfg.RandomizeTimer {
		t.rng = rand.New(rand.NewSource(cfg.Seed))
	}
	t.schedule()
	return t
}

// SetInterruptHandler installs the function called on every timer interrupt.
// A nil handler leaves the timer running with nobody listening.
func (t *Timer) SetInterruptHandler(handler func()) {
	t.handler = handler
}

// Time returns the current clock value.
func (t *Timer) Time() uint64 { return t.intr.Time() }

// Interrupts returns the number of timer interrupts delivered so far.
func (t *Timer) Interrupts() uint64 { return t.count }

// LastInterrupt returns the clock value at the last timer interrupt.
func (t *Timer) LastInterrupt() uint64 { return t.last }

func (t *Timer) schedule() {
	delay := t.period
	if t.rng != nil {
		spread := delay / 10
		if spread > 0 {
			delay = delay - spread/2 + uint64(t.rng.Int63n(int64(spread)+1))
		}
	}
	t.intr.Schedule(delay, "timer", t.fire)
}

func (t *Timer) fire() {
	t.schedule()
	t.count++
	t.last = t.intr.Time()
	if t.handler != nil {
		t.handler()
	}
}
