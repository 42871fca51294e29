package tasks

import (
	"fmt"

	"loom/loomos/kernel"
)

func init() {
	Register(Task{
		Name:        "donation",
		Description: "A high priority thread waits on a lock held by a low priority one while a medium thread competes.",
		Run:         runDonation,
	})
}

func runDonation(env *Env) error {
	k := env.Kernel
	if _, ok := k.Scheduler().(*kernel.PriorityScheduler); !ok {
		env.Printf("donation: skipped, needs the priority scheduler")
		return nil
	}

	lock := kernel.NewLock(k)
	var (
		order        []string
		donated      int
		high, medium *kernel.Thread
	)
	low := k.Fork("low", func() {
		lock.Acquire()
		high = k.NewThread("high", func() {
			lock.Acquire()
			order = append(order, "high")
			lock.Release()
		})
		high.SetPriority(5)
		medium = k.NewThread("medium", func() { order = append(order, "medium") })
		medium.SetPriority(3)
		high.Fork()
		medium.Fork()

		k.Yield()
		donated = k.EffectivePriority(k.CurrentThread())
		order = append(order, "low")
		lock.Release()
	})
	low.Join()
	high.Join()
	medium.Join()

	if donated != 5 {
		return fmt.Errorf("lock holder ran at priority %d, want 5", donated)
	}
	if len(order) != 3 || order[0] != "low" || order[2] != "medium" {
		return fmt.Errorf("ran in order %v", order)
	}
	env.Printf("donation: lock holder ran at %d, order %v", donated, order)
	return nil
}
