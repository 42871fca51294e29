package tasks

import (
	"fmt"

	"loom/loomos/kernel"
)

func init() {
	Register(Task{
		Name:        "joins",
		Description: "Workers yield a different number of times; joiners wait on them in reverse order.",
		Run:         runJoins,
	})
}

const joinWorkers = 5

func runJoins(env *Env) error {
	k := env.Kernel

	done := make([]bool, joinWorkers)
	yields := 0
	workers := make([]*kernel.Thread, joinWorkers)
	for i := range workers {
		i := i
		workers[i] = k.Fork(fmt.Sprintf("worker-%d", i), func() {
			for j := 0; j <= i; j++ {
				yields++
				k.Yield()
			}
			done[i] = true
		})
	}

	// a second thread joins the slowest worker alongside main
	watcher := k.Fork("watcher", func() { workers[joinWorkers-1].Join() })

	for i := joinWorkers - 1; i >= 0; i-- {
		workers[i].Join()
		if !done[i] {
			return fmt.Errorf("join on %s returned before it finished", workers[i])
		}
	}
	watcher.Join()

	for _, w := range workers {
		if w.Status() != kernel.StatusFinished {
			return fmt.Errorf("%s is %s after join", w, w.Status())
		}
	}
	env.Printf("joins: %d workers finished after %d yields", joinWorkers, yields)
	return nil
}
