// Package tasks holds the programs the kernel can boot into. Each task
// exercises one primitive, checks its own results and reports a short,
// schedule-independent summary.
package tasks

import (
	"fmt"
	"sort"

	"loom/hal"
	"loom/loomos/kernel"
)

// Env is what a task sees of the running system.
type Env struct {
	Kernel *kernel.Kernel
	Alarm  *kernel.Alarm
	Out    hal.Logger
}

// Printf writes one line of task output.
func (e *Env) Printf(format string, args ...any) {
	if e.Out == nil {
		return
	}
	e.Out.WriteLineString(fmt.Sprintf(format, args...))
}

// Task is a named program run on the main kernel thread.
type Task struct {
	Name        string
	Description string
	Run         func(env *Env) error
}

var registry = map[string]Task{}

// Register adds t to the registry. It panics on a duplicate name.
func Register(t Task) {
	if _, ok := registry[t.Name]; ok {
		panic("tasks: duplicate task " + t.Name)
	}
	registry[t.Name] = t
}

// Lookup returns the task registered under name.
func Lookup(name string) (Task, bool) {
	t, ok := registry[name]
	return t, ok
}

// All returns every registered task sorted by name.
func All() []Task {
	all := make([]Task, 0, len(registry))
	for _, t := range registry {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// Names returns the sorted task names.
func Names() []string {
	var names []string
	for _, t := range All() {
		names = append(names, t.Name)
	}
	return names
}

// Run runs the named tasks in order on the current kernel thread and stops
// at the first failure.
func Run(env *Env, names ...string) error {
	for _, name := range names {
		t, ok := Lookup(name)
		if !ok {
			return fmt.Errorf("unknown task %q", name)
		}
		env.Printf("== %s ==", t.Name)
		if err := t.Run(env); err != nil {
			return fmt.Errorf("%s: %w", t.Name, err)
		}
	}
	return nil
}

// joinAll joins every thread in order.
func joinAll(threads []*kernel.Thread) {
	for _, t := range threads {
		t.Join()
	}
}
