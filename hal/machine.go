package hal

import (
	"fmt"
	"sync"
)

// Config describes the simulated CPU.
type Config struct {
	// KernelTick is how far the clock advances each time interrupts are
	// unmasked.
	KernelTick uint64
	// TimerTicks is the period of the timer interrupt.
	TimerTicks uint64
	// RandomizeTimer jitters each timer period by up to ±5%.
	RandomizeTimer bool
	// Seed feeds the timer jitter. Runs with the same seed are reproducible.
	Seed int64
	// MaxTicks stops the machine with a Fault once the clock passes it.
	// Zero disables the watchdog.
	MaxTicks uint64
	// Debug logs every tick and every delivered interrupt.
	Debug bool
}

// DefaultConfig returns the default machine configuration.
func DefaultConfig() Config {
	return Config{
		KernelTick: 10,
		TimerTicks: 500,
	}
}

// Fault is raised (as a panic value) when the simulated hardware is misused.
type Fault struct {
	Op  string
	Msg string
}

func (f *Fault) Error() string { return "machine fault: " + f.Op + ": " + f.Msg }

func fault(op, format string, args ...any) {
	panic(&Fault{Op: op, Msg: fmt.Sprintf(format, args...)})
}

// Machine is a single simulated CPU: an interrupt controller with its clock,
// a periodic timer, and the execution contexts multiplexed onto it.
//
// Exactly one context runs at a time. The machine is not safe for use by
// goroutines other than the one holding the CPU.
type Machine struct {
	Interrupt *Interrupt
	Timer     *Timer

	log Logger

	cur      *TCB
	nextTCB  uint64
	switches uint64

	halt     chan struct{}
	haltOnce sync.Once
}

// NewMachine creates a machine with interrupts masked and the timer armed.
func NewMachine(cfg Config, log Logger) *Machine {
	def := DefaultConfig()
	if cfg.KernelTick == 0 {
		cfg.KernelTick = def.KernelTick
	}
	if cfg.TimerTicks == 0 {
		cfg.TimerTicks = def.TimerTicks
	}
	if log == nil {
		log = NopLogger{}
	}

	m := &Machine{
		log:  log,
		halt: make(chan struct{}),
	}
	m.Interrupt = newInterrupt(cfg, log)
	m.Timer = newTimer(m.Interrupt, cfg)
	return m
}

// Logger returns the machine console.
func (m *Machine) Logger() Logger { return m.log }

// CurrentTCB returns the context holding the CPU.
func (m *Machine) CurrentTCB() *TCB { return m.cur }

// ContextSwitches returns the number of switches performed so far.
func (m *Machine) ContextSwitches() uint64 { return m.switches }

// Halt stops the machine. Every parked context is released and its goroutine
// exits; the caller keeps running.
func (m *Machine) Halt() {
	m.haltOnce.Do(func() {
		close(m.halt)
	})
}

// Halted reports whether Halt was called.
func (m *Machine) Halted() bool {
	select {
	case <-m.halt:
		return true
	default:
		return false
	}
}
