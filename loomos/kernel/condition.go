package kernel

// Condition2 is a Mesa-style condition variable that blocks threads
// directly rather than through a semaphore. Woken threads must recheck
// their predicate: Wake only makes a waiter eligible to reacquire the lock.
type Condition2 struct {
	k         *Kernel
	lock      Locker
	waitQueue ThreadQueue
}

// NewCondition2 returns a condition variable guarded by lock.
func NewCondition2(k *Kernel, lock Locker) *Condition2 {
	status := k.intr.Disable()
	q := k.sched.NewThreadQueue(false)
	k.intr.Restore(status)
	return &Condition2{k: k, lock: lock, waitQueue: q}
}

// Sleep atomically releases the lock and blocks until woken, then
// reacquires the lock before returning. The lock must be held.
func (c *Condition2) Sleep() {
	k := c.k
	assertf(c.lock.IsHeldByCurrentThread(), "%s sleeps on a condition without its lock", k.current)

	status := k.intr.Disable()
	cur := k.current
	k.debugf(dbgCondition, "%s sleeping on condition", cur)

	c.waitQueue.WaitForAccess(cur)
	c.lock.Release()
	k.Sleep()
	c.lock.Acquire()

	k.intr.Restore(status)
}

// Wake readies at most one waiter. The lock must be held.
func (c *Condition2) Wake() {
	k := c.k
	assertf(c.lock.IsHeldByCurrentThread(), "%s wakes a condition without its lock", k.current)

	status := k.intr.Disable()
	if t := c.waitQueue.NextThread(); t != nil {
		k.debugf(dbgCondition, "%s woke %s", k.current, t)
		t.Ready()
	}
	k.intr.Restore(status)
}

// WakeAll readies every thread waiting when it is called. The lock must be
// held.
func (c *Condition2) WakeAll() {
	k := c.k
	assertf(c.lock.IsHeldByCurrentThread(), "%s wakes a condition without its lock", k.current)

	status := k.intr.Disable()
	for t := c.waitQueue.NextThread(); t != nil; t = c.waitQueue.NextThread() {
		k.debugf(dbgCondition, "%s woke %s", k.current, t)
		t.Ready()
	}
	k.intr.Restore(status)
}
