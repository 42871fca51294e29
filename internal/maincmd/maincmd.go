package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/mna/mainer"
)

const binName = "loom"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] <command> [<task>...]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] <command> [<task>...]
       %[1]s -h|--help
       %[1]s -v|--version

Cooperative thread kernel running on a simulated single-CPU machine.

The <command> can be one of:
       list                      List the tasks the kernel can run.
       run                       Boot the kernel and run the given
                                 tasks in order (all tasks if none
                                 is given), then halt.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.

Valid flag options for the <run> command are:
       --config PATH             Load the YAML configuration at PATH.
                                 LOOM_* environment variables override
                                 it, and flags override both.
       --scheduler NAME          Ready queue policy: roundrobin or
                                 priority.
       --debug FLAGS             Kernel debug output: t threads,
                                 a alarm, c conditions, s communicators,
                                 p priorities, l locks, m machine,
                                 + everything.
       --seed N                  Jitter the timer with seed N.
       --trace PATH              Write OpenTelemetry spans to PATH
                                 ('-' for stdout).
       --headless                Run without a window and exit when
                                 the machine halts.
       --hz N                    Host steps per second when headless
                                 (default 60).
       --ticks N                 Stop after N host steps when headless
                                 (0 = until the machine halts).
`, binName)
)

type Cmd struct {
	BuildVersion string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`

	Config    string `flag:"config"`
	Scheduler string `flag:"scheduler"`
	Debug     string `flag:"debug"`
	Seed      int    `flag:"seed"`
	Trace     string `flag:"trace"`
	Headless  bool   `flag:"headless"`
	Hz        int    `flag:"hz"`
	Ticks     int    `flag:"ticks"`

	args  []string
	flags map[string]bool
	cmdFn func(context.Context, mainer.Stdio, []string) error
}

var runFlags = []string{"config", "scheduler", "debug", "seed", "trace", "headless", "hz", "ticks"}

func (c *Cmd) SetArgs(args []string) {
	c.args = args
}

func (c *Cmd) SetFlags(flags map[string]bool) {
	c.flags = flags
}

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}

	if len(c.args) == 0 {
		return errors.New("no command specified")
	}

	cmdName := c.args[0]

	commands := buildCmds(c)
	c.cmdFn = commands[cmdName]
	if c.cmdFn == nil {
		return fmt.Errorf("unknown command: %s", c.args[0])
	}

	if cmdName != "run" {
		for _, f := range runFlags {
			if c.flags[f] {
				return fmt.Errorf("%s: invalid flag '%s'", cmdName, f)
			}
		}
	}
	if c.Hz < 0 || c.Ticks < 0 {
		return fmt.Errorf("%s: --hz and --ticks must not be negative", cmdName)
	}
	return nil
}

func printError(stdio mainer.Stdio, err error) error {
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
	}
	return err
}

func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{
		EnvVars:   false, // configuration reads LOOM_* itself
		EnvPrefix: strings.ToUpper(binName) + "_",
	}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success

	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s\n", binName, c.BuildVersion)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if err := c.cmdFn(ctx, stdio, c.args[1:]); err != nil {
		// each command takes care of printing its errors, just return with an error code
		return mainer.Failure
	}
	return mainer.Success
}

// valid commands are those that take a mainer.Stdio and a slice of strings as
// input, and return an error as output.
func buildCmds(v interface{}) map[string]func(context.Context, mainer.Stdio, []string) error {
	cmds := make(map[string]func(context.Context, mainer.Stdio, []string) error)

	vv := reflect.ValueOf(v)
	vt := vv.Type()
	for i := 0; i < vt.NumMethod(); i++ {
		m := vt.Method(i)
		mt := m.Type

		// must take 4 parameters (including receiver) and return 1
		if mt.NumIn() != 4 || mt.NumOut() != 1 {
			continue
		}

		if rt := mt.Out(0); rt.Kind() != reflect.Interface || rt.Name() != "error" {
			continue
		}
		if p0 := mt.In(0); p0.Kind() != reflect.Ptr || p0.Elem().Name() != "Cmd" {
			continue
		}
		if p1 := mt.In(1); p1.Kind() != reflect.Interface || p1.Name() != "Context" {
			continue
		}
		if p2 := mt.In(2); p2.Kind() != reflect.Struct || p2.Name() != "Stdio" {
			continue
		}
		if p3 := mt.In(3); p3.Kind() != reflect.Slice || p3.Elem().Name() != "string" {
			continue
		}
		cmds[strings.ToLower(m.Name)] = vv.Method(i).Interface().(func(context.Context, mainer.Stdio, []string) error)
	}
	return cmds
}
