// Package config loads the boot configuration: defaults, then an optional
// YAML file, then LOOM_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"

	"loom/hal"
	"loom/loomos/kernel"
)

// Config is the boot configuration.
type Config struct {
	// Scheduler names the ready queue policy: roundrobin or priority.
	Scheduler string `yaml:"scheduler" env:"LOOM_SCHEDULER"`
	// Debug holds kernel debug flag characters. 'm' also traces the
	// machine clock.
	Debug string `yaml:"debug" env:"LOOM_DEBUG"`
	// Trace is a file receiving OpenTelemetry spans, "-" for stdout. Empty
	// disables tracing.
	Trace string `yaml:"trace" env:"LOOM_TRACE"`
	// Tasks run in order once the kernel is up. Empty runs every task.
	Tasks []string `yaml:"tasks" env:"LOOM_TASKS" envSeparator:","`

	Machine Machine `yaml:"machine"`
}

// Machine configures the simulated CPU.
type Machine struct {
	KernelTick     uint64 `yaml:"kernelTick" env:"LOOM_KERNEL_TICK"`
	TimerTicks     uint64 `yaml:"timerTicks" env:"LOOM_TIMER_TICKS"`
	RandomizeTimer bool   `yaml:"randomizeTimer" env:"LOOM_RANDOMIZE_TIMER"`
	Seed           int64  `yaml:"seed" env:"LOOM_SEED"`
	MaxTicks       uint64 `yaml:"maxTicks" env:"LOOM_MAX_TICKS"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	mc := hal.DefaultConfig()
	return Config{
		Scheduler: kernel.SchedulerRoundRobin,
		Machine: Machine{
			KernelTick: mc.KernelTick,
			TimerTicks: mc.TimerTicks,
		},
	}
}

// Load reads the file at path (if not empty) over the defaults, applies the
// environment and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := decode(b, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("environment: %w", err)
	}
	return cfg, cfg.Validate()
}

// Parse decodes YAML over the defaults without looking at the environment.
func Parse(b []byte) (Config, error) {
	cfg := Default()
	if err := decode(b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func decode(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch strings.ToLower(c.Scheduler) {
	case kernel.SchedulerRoundRobin, kernel.SchedulerPriority:
	default:
		return fmt.Errorf("scheduler: unknown policy %q", c.Scheduler)
	}
	for _, r := range c.Debug {
		if !strings.ContainsRune(DebugFlags, r) {
			return fmt.Errorf("debug: unknown flag %q", r)
		}
	}
	if c.Machine.KernelTick == 0 {
		return errors.New("machine.kernelTick: must be positive")
	}
	if c.Machine.TimerTicks < c.Machine.KernelTick {
		return fmt.Errorf("machine.timerTicks: %d is shorter than a kernel tick", c.Machine.TimerTicks)
	}
	return nil
}

// DebugFlags lists the accepted debug flag characters.
const DebugFlags = "tacsplm+"

// MachineConfig converts the machine section for hal.NewMachine.
func (c Config) MachineConfig() hal.Config {
	return hal.Config{
		KernelTick:     c.Machine.KernelTick,
		TimerTicks:     c.Machine.TimerTicks,
		RandomizeTimer: c.Machine.RandomizeTimer,
		Seed:           c.Machine.Seed,
		MaxTicks:       c.Machine.MaxTicks,
		Debug:          strings.ContainsAny(c.Debug, "m+"),
	}
}
