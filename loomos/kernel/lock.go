package kernel

// Locker is a mutual exclusion lock owned by a kernel thread.
type Locker interface {
	Acquire()
	Release()
	IsHeldByCurrentThread() bool
}

// Lock is a blocking mutex. Waiters donate priority to the holder under the
// priority scheduler.
type Lock struct {
	k         *Kernel
	holder    *Thread
	waitQueue ThreadQueue
}

var _ Locker = (*Lock)(nil)

func NewLock(k *Kernel) *Lock {
	status := k.intr.Disable()
	q := k.sched.NewThreadQueue(true)
	k.intr.Restore(status)
	return &Lock{k: k, waitQueue: q}
}

// Acquire blocks until the lock is free and takes it. The current thread
// must not already hold it.
func (l *Lock) Acquire() {
	k := l.k
	assertf(!l.IsHeldByCurrentThread(), "lock already held by %s", k.current)

	status := k.intr.Disable()
	cur := k.current
	if l.holder != nil {
		k.debugf(dbgLock, "%s waiting for lock held by %s", cur, l.holder)
		l.waitQueue.WaitForAccess(cur)
		k.Sleep()
	} else {
		l.waitQueue.Acquire(cur)
		l.holder = cur
	}
	assertf(l.holder == cur, "lock handed to %s, not %s", l.holder, cur)
	k.intr.Restore(status)
}

// Release frees the lock, handing it straight to the next waiter if any.
func (l *Lock) Release() {
	k := l.k
	assertf(l.IsHeldByCurrentThread(), "%s released a lock it does not hold", k.current)

	status := k.intr.Disable()
	if l.holder = l.waitQueue.NextThread(); l.holder != nil {
		l.holder.Ready()
	}
	k.intr.Restore(status)
}

func (l *Lock) IsHeldByCurrentThread() bool {
	return l.holder == l.k.current
}
