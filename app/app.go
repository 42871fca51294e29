// Package app boots the kernel on a simulated machine and connects it to a
// host: console lines go to the host logger and the monitor screen.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"loom/hal"
	"loom/internal/buildinfo"
	"loom/internal/config"
	"loom/loomos/console"
	"loom/loomos/kernel"
	"loom/loomos/monitor"
	"loom/loomos/tasks"
	"loom/loomos/tracing"
)

// ErrKernelPanic is returned by the step function once a kernel thread has
// panicked.
var ErrKernelPanic = errors.New("kernel panic")

// Config selects what the system boots into.
type Config struct {
	Boot config.Config
	// Trace receives OpenTelemetry spans when not nil.
	Trace io.Writer
	// ExitOnHalt makes the step function return hal.ErrStop once the
	// machine halts. Otherwise the last screen stays up.
	ExitOnHalt bool
}

type system struct {
	h   hal.HAL
	cfg Config

	ring   console.Ring
	log    *console.Logger
	m      *hal.Machine
	table  *monitor.Table
	screen *monitor.Screen
	tracer *tracing.Tracer
	bootID string

	done chan struct{}
	err  error
}

// New boots the system and returns its step function. Boot errors are
// reported by the first step.
func New(h hal.HAL, cfg Config) func() error {
	s, err := newSystem(h, cfg)
	if err != nil {
		return func() error { return err }
	}
	installPanicHandler(h)
	go s.boot()
	return s.step
}

func newSystem(h hal.HAL, cfg Config) (*system, error) {
	s := &system{
		h:    h,
		cfg:  cfg,
		done: make(chan struct{}),
	}
	s.log = console.NewLogger(&s.ring, true)
	s.m = hal.NewMachine(cfg.Boot.MachineConfig(), s.log)
	s.table = monitor.NewTable(false, s.m.Interrupt.Time)

	if d := h.Display(); d != nil {
		s.screen = monitor.NewScreen(d.Framebuffer(), "loom "+buildinfo.Short())
	}

	s.bootID = uuid.NewString()
	if cfg.Trace != nil {
		tr, err := tracing.New(cfg.Trace, buildinfo.Short(), s.m.Interrupt.Time)
		if err != nil {
			return nil, fmt.Errorf("tracing: %w", err)
		}
		s.tracer = tr
		s.bootID = tr.BootID
	}
	return s, nil
}

// boot runs on its own goroutine, which becomes the kernel's main thread.
func (s *system) boot() {
	defer close(s.done)
	defer func() {
		if r := recover(); r != nil {
			s.m.Halt()
			s.err = fmt.Errorf("%w: main: %v", ErrKernelPanic, r)
			s.log.WriteLineString(s.err.Error())
		}
	}()

	cfg := s.cfg.Boot
	sched, err := kernel.NewScheduler(cfg.Scheduler, s.m.Interrupt)
	if err != nil {
		s.err = err
		return
	}

	opts := []kernel.Option{
		kernel.WithDebug(cfg.Debug),
		kernel.WithObserver(s.table),
	}
	if s.tracer != nil {
		opts = append(opts, kernel.WithObserver(s.tracer))
	}
	k := kernel.New(s.m, sched, opts...)
	alarm := kernel.NewAlarm(k)
	s.m.Interrupt.Enable()

	s.log.WriteLineString(fmt.Sprintf("loom %s boot %s scheduler %s", buildinfo.Short(), s.bootID, cfg.Scheduler))

	names := cfg.Tasks
	if len(names) == 0 {
		names = tasks.Names()
	}
	env := &tasks.Env{Kernel: k, Alarm: alarm, Out: s.log}
	if err := tasks.Run(env, names...); err != nil {
		s.err = err
		s.log.WriteLineString("FAIL " + err.Error())
	}

	s.log.WriteLineString(fmt.Sprintf("Machine halting! Ticks: %d, timer interrupts: %d, context switches: %d",
		s.m.Interrupt.Time(), s.m.Timer.Interrupts(), s.m.ContextSwitches()))
	k.Terminate()

	if s.tracer != nil {
		if err := s.tracer.Shutdown(context.Background()); err != nil && s.err == nil {
			s.err = fmt.Errorf("tracing: %w", err)
		}
	}
}

func (s *system) step() error {
	if kernel.InPanicMode() {
		if s.cfg.ExitOnHalt {
			return ErrKernelPanic
		}
		return nil
	}

	s.drain()
	select {
	case <-s.done:
		s.drain()
		if s.err != nil {
			return s.err
		}
		if s.cfg.ExitOnHalt {
			return hal.ErrStop
		}
	default:
	}

	if s.screen != nil {
		s.screen.DrawTable(s.table.Snapshot())
		return s.screen.Present()
	}
	return nil
}

func (s *system) drain() {
	out := s.h.Logger()
	s.ring.Drain(func(line string) {
		if out != nil {
			out.WriteLineString(line)
		}
		if s.screen != nil {
			s.screen.WriteLine(line)
		}
	})
}
