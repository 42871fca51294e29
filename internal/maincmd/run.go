package maincmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mna/mainer"

	"loom/app"
	"loom/hal"
	"loom/internal/config"
	"loom/loomos/tasks"
)

func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	cfg, err := c.loadConfig(args)
	if err != nil {
		return printError(stdio, err)
	}

	var trace io.Writer
	switch cfg.Trace {
	case "":
	case "-":
		trace = stdio.Stdout
	default:
		f, err := os.Create(cfg.Trace)
		if err != nil {
			return printError(stdio, fmt.Errorf("trace: %w", err))
		}
		defer f.Close()
		trace = f
	}

	appCfg := app.Config{Boot: cfg, Trace: trace, ExitOnHalt: c.Headless}
	newApp := func(h hal.HAL) func() error { return app.New(h, appCfg) }

	if c.Headless {
		err = hal.RunHeadlessWith(ctx, hal.NewWithWriter(stdio.Stdout), newApp,
			hal.HeadlessConfig{Hz: c.Hz, Ticks: uint64(c.Ticks)})
		if errors.Is(err, context.Canceled) {
			err = nil
		}
	} else {
		err = hal.RunWindow(newApp)
	}
	return printError(stdio, err)
}

// loadConfig layers the config file, the environment, then the flags that
// were set explicitly.
func (c *Cmd) loadConfig(args []string) (config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return cfg, err
	}

	if c.flags["scheduler"] {
		cfg.Scheduler = c.Scheduler
	}
	if c.flags["debug"] {
		cfg.Debug = c.Debug
	}
	if c.flags["seed"] {
		cfg.Machine.RandomizeTimer = true
		cfg.Machine.Seed = int64(c.Seed)
	}
	if c.flags["trace"] {
		cfg.Trace = c.Trace
	}
	if len(args) > 0 {
		for _, name := range args {
			if _, ok := tasks.Lookup(name); !ok {
				return cfg, fmt.Errorf("run: unknown task %q", name)
			}
		}
		cfg.Tasks = args
	}
	return cfg, cfg.Validate()
}
