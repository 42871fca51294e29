package tasks

import (
	"fmt"

	"loom/loomos/kernel"
)

func init() {
	Register(Task{
		Name:        "condvar",
		Description: "Producers and consumers share a bounded buffer guarded by a lock and two conditions.",
		Run:         runCondVar,
	})
}

const (
	condVarCapacity = 2
	condVarPairs    = 2
	condVarItems    = 10 // per producer
)

type boundedBuffer struct {
	lock     *kernel.Lock
	notFull  *kernel.Condition2
	notEmpty *kernel.Condition2
	items    []int
}

func newBoundedBuffer(k *kernel.Kernel) *boundedBuffer {
	lock := kernel.NewLock(k)
	return &boundedBuffer{
		lock:     lock,
		notFull:  kernel.NewCondition2(k, lock),
		notEmpty: kernel.NewCondition2(k, lock),
	}
}

func (b *boundedBuffer) put(v int) {
	b.lock.Acquire()
	for len(b.items) == condVarCapacity {
		b.notFull.Sleep()
	}
	b.items = append(b.items, v)
	b.notEmpty.Wake()
	b.lock.Release()
}

func (b *boundedBuffer) take() int {
	b.lock.Acquire()
	for len(b.items) == 0 {
		b.notEmpty.Sleep()
	}
	v := b.items[0]
	b.items = b.items[1:]
	b.notFull.Wake()
	b.lock.Release()
	return v
}

func runCondVar(env *Env) error {
	k := env.Kernel
	buf := newBoundedBuffer(k)

	sum, count, overflow := 0, 0, 0
	var threads []*kernel.Thread
	for p := 0; p < condVarPairs; p++ {
		p := p
		threads = append(threads,
			k.Fork(fmt.Sprintf("producer-%d", p), func() {
				for i := 0; i < condVarItems; i++ {
					buf.put(p*condVarItems + i)
				}
			}),
			k.Fork(fmt.Sprintf("consumer-%d", p), func() {
				for i := 0; i < condVarItems; i++ {
					sum += buf.take()
					count++
					if len(buf.items) > condVarCapacity {
						overflow++
					}
				}
			}),
		)
	}
	joinAll(threads)

	total := condVarPairs * condVarItems
	if want := total * (total - 1) / 2; count != total || sum != want || overflow > 0 {
		return fmt.Errorf("consumed %d items summing to %d (want %d, %d), %d overflows", count, sum, total, want, overflow)
	}
	env.Printf("condvar: %d items, sum %d", count, sum)
	return nil
}
